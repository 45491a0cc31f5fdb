package helpers

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ParseDuration reads a config duration such as "15m" or "720h". Empty values
// fall back to def silently; unparsable or non-positive values fall back with
// a warning.
func ParseDuration(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Err(err).Str("value", raw).Dur("default", def).Msg("Invalid duration in configuration, using default")
		return def
	}
	return d
}
