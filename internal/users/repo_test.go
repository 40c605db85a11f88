package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookinga/bookinga-backend/pkg/db/dbtest"
	"github.com/bookinga/bookinga-backend/pkg/db/models"
)

func TestRepositoryFindByIDs(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	email := "ana@example.com"
	for _, u := range []models.User{
		{ID: "u1", DisplayName: "Ana", Email: &email, Role: "customer"},
		{ID: "u2", DisplayName: "Bea", Role: "customer"},
		{ID: "u3", DisplayName: "Cy", Role: "staff"},
	} {
		user := u
		require.NoError(t, repo.Upsert(ctx, &user))
	}

	found, err := repo.FindByIDs(ctx, []string{"u1", "u3", "missing"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "u1", found[0].ID)
	assert.Equal(t, "ana@example.com", *found[0].Email)
	assert.Equal(t, "u3", found[1].ID)

	none, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepositoryUpsertRefreshesProfile(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u1", DisplayName: "Ana", Role: "customer"}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u1", DisplayName: "Ana María", Role: "customer"}))

	user, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", user.DisplayName)
}
