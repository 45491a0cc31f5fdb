package repositories

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/aits/backend/internal/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CS101", "CS101"},
		{"100%", `100\%`},
		{"CS_101", `CS\_101`},
		{`C:\marks`, `C:\\marks`},
		{`%_\`, `\%\_\\`},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, escapeLike(tc.in), tc.in)
	}
}

func TestIssueSearchMatchesWildcardsLiterally(t *testing.T) {
	q := applyIssueFilters(squirrel.Select("id").From("issues"), IssueListParams{
		Scope:  models.IssueScope{All: true},
		Search: "50%_off",
	})

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "title ILIKE ?")
	assert.Contains(t, sql, "description ILIKE ?")
	assert.Equal(t, []interface{}{`%50\%\_off%`, `%50\%\_off%`}, args)
}
