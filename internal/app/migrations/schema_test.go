package migrations

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../../migrations"

var (
	createTableRe = regexp.MustCompile(`(?i)^CREATE TABLE (?:IF NOT EXISTS )?(\w+)`)
	columnRefRe   = regexp.MustCompile(`(?i)^(\w+)\s+.*REFERENCES users\s*\(id\)(.*)$`)
	alterTableRe  = regexp.MustCompile(`(?i)^ALTER TABLE (\w+)`)
	addFKRe       = regexp.MustCompile(`(?i)FOREIGN KEY \((\w+)\) REFERENCES users\s*\(id\)(.*)$`)
)

// userForeignKeys replays the migrations in order and returns, per
// table.column referencing users, the ON DELETE clause in effect at the end.
func userForeignKeys(t *testing.T) map[string]string {
	t.Helper()
	files, err := sqlFiles(migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	fks := map[string]string{}
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(migrationsDir, name))
		require.NoError(t, err)

		table := ""
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if m := createTableRe.FindStringSubmatch(line); m != nil {
				table = m[1]
				continue
			}
			if m := alterTableRe.FindStringSubmatch(line); m != nil {
				table = m[1]
			}
			if m := addFKRe.FindStringSubmatch(line); m != nil && table != "" {
				fks[table+"."+m[1]] = onDelete(m[2])
				continue
			}
			if m := columnRefRe.FindStringSubmatch(line); m != nil && table != "" {
				fks[table+"."+m[1]] = onDelete(m[2])
			}
		}
	}
	return fks
}

func onDelete(rest string) string {
	rest = strings.ToUpper(rest)
	i := strings.Index(rest, "ON DELETE ")
	if i < 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(rest[i+len("ON DELETE "):]), ",;")
}

func TestUserForeignKeysAllowDeletingUsers(t *testing.T) {
	fks := userForeignKeys(t)

	for col, action := range fks {
		assert.NotEmpty(t, action, "%s has no ON DELETE action and would block deleting a user", col)
	}

	assert.Equal(t, "CASCADE", fks["issues.student_id"])
	assert.Equal(t, "SET NULL", fks["issues.assigned_to_id"])
	assert.Equal(t, "CASCADE", fks["audit_logs.user_id"])
	assert.Equal(t, "SET NULL", fks["attachments.uploaded_by"])
}

func TestMigrationFilesHaveVersionPrefix(t *testing.T) {
	files, err := sqlFiles(migrationsDir)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, f := range files {
		v := versionOf(f)
		assert.Regexp(t, `^\d{3}$`, v, f)
		assert.False(t, seen[v], "duplicate migration version %s", v)
		seen[v] = true
	}
}
