package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/aits/backend/internal/app/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// enumRules maps custom binding tags to their checks.
var enumRules = map[string]func(string) bool{
	"issue_status":   func(s string) bool { return models.IssueStatus(s).Valid() },
	"issue_category": func(s string) bool { return models.IssueCategory(s).Valid() },
	"issue_priority": func(s string) bool { return models.IssuePriority(s).Valid() },
	"year_of_study":  models.ValidYearOfStudy,
	"role":           func(s string) bool { return models.Role(s).Valid() },
}

// RegisterGinValidators installs the custom tags on gin's validator and makes
// field errors report JSON (or form) names. Safe to call more than once.
func RegisterGinValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		registerErr = Register(v)
	})
	return registerErr
}

// Register installs the custom tags on v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)

	for tag, check := range enumRules {
		check := check
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
