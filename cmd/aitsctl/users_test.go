package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aits/backend/internal/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubTerminal(t *testing.T, terminal bool, answers ...string) {
	t.Helper()
	origRead, origTerm := readPasswordFunc, isTerminalFunc
	t.Cleanup(func() { readPasswordFunc, isTerminalFunc = origRead, origTerm })

	isTerminalFunc = func(int) bool { return terminal }
	readPasswordFunc = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more input")
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func TestResolvePassword(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		stubTerminal(t, false)
		pw, err := resolvePassword("secret123", 0, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "secret123", pw)
	})

	t.Run("prompt", func(t *testing.T) {
		stubTerminal(t, true, "secret123", "secret123")
		var out bytes.Buffer
		pw, err := resolvePassword("", 0, &out)
		require.NoError(t, err)
		assert.Equal(t, "secret123", pw)
		assert.Contains(t, out.String(), "Repeat password")
	})

	t.Run("mismatch", func(t *testing.T) {
		stubTerminal(t, true, "secret123", "secret124")
		_, err := resolvePassword("", 0, &bytes.Buffer{})
		assert.EqualError(t, err, "passwords do not match")
	})

	t.Run("no terminal", func(t *testing.T) {
		stubTerminal(t, false)
		_, err := resolvePassword("", 0, &bytes.Buffer{})
		assert.ErrorIs(t, err, errNoPassword)
	})
}

func TestParseRole(t *testing.T) {
	role, err := parseRole(" HOD ")
	require.NoError(t, err)
	assert.Equal(t, models.RoleHOD, role)

	_, err = parseRole("dean")
	assert.Error(t, err)
}
