package survey

import (
	"context"
	"testing"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/security"
	"github.com/makhaen-survey/makhaen-go/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountsAreSeededAndReadable(t *testing.T) {
	db, settings := testsupport.MustOpenStore(t)
	repo := NewSQLAccountRepository(db, testsupport.NewLogger(t))
	ctx := context.Background()

	admin, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, survey.RoleAdmin, admin.Role)
	assert.True(t, security.CheckPassword(admin.PasswordHash, settings.AdminPassword))

	missing, err := repo.FindByUsername(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	accounts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "admin", accounts[0].Username)
	assert.Equal(t, "user01", accounts[1].Username)
	assert.Equal(t, survey.RoleUser, accounts[1].Role)
	assert.Empty(t, accounts[1].PasswordHash)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
