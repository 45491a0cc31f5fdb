package seed

import (
	"context"
	"testing"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/repositories/inmem"
	"github.com/aits/backend/internal/app/services"
	pkgAuth "github.com/aits/backend/internal/pkg/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(store *inmem.Store) *services.AuthService {
	jwt := pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       "seed-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: time.Hour,
		TokenIssuer:     "aits-test",
	})
	return services.NewAuthService(store, jwt, zerolog.Nop())
}

func TestCreateDefaultDataIsIdempotent(t *testing.T) {
	pkgAuth.BcryptCost = bcrypt.MinCost
	ctx := context.Background()
	store := inmem.NewStore()
	auth := newAuth(store)
	accounts := DefaultAccounts("COCIS", "demo12345")

	n, err := CreateDefaultData(ctx, store.Users(), auth, accounts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, len(accounts), n)

	registrar, err := store.Users().FirstByRoleAndCollege(ctx, models.RoleRegistrar, "COCIS")
	require.NoError(t, err)
	assert.Equal(t, "registrar@cocis.mak.ac.ug", registrar.Email)

	student, err := store.Users().GetByUsername(ctx, "24/U/00001")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, student.Role)

	n, err = CreateDefaultData(ctx, store.Users(), auth, accounts, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateDefaultDataCollectsFailures(t *testing.T) {
	pkgAuth.BcryptCost = bcrypt.MinCost
	store := inmem.NewStore()
	accounts := DefaultAccounts("COCIS", "short")

	n, err := CreateDefaultData(context.Background(), store.Users(), newAuth(store), accounts, zerolog.Nop())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "admin admin@mak.ac.ug")
	assert.Contains(t, err.Error(), "student student@students.mak.ac.ug")
}
