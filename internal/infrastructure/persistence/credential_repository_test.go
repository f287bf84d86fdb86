package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

func setupCredentialTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.CredentialModel{})
	require.NoError(t, err)

	return db
}

func TestGormCredentialRepository_Save(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()

	t.Run("saves and reloads a credential", func(t *testing.T) {
		cred, err := integration.NewCredential(
			integration.ProviderShopify, "main-store",
			"client-id", "client-secret",
			integration.CredentialEnvProduction,
		)
		require.NoError(t, err)
		cred.AccessToken = "shpat_abc"
		cred.RefreshToken = "refresh_abc"
		cred.ExpiresAt = time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		err = repo.Save(ctx, cred)
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, cred.ID, found.ID)
		assert.Equal(t, integration.ProviderShopify, found.Provider)
		assert.Equal(t, "shpat_abc", found.AccessToken)
		assert.Equal(t, "refresh_abc", found.RefreshToken)
		assert.True(t, found.ExpiresAt.Equal(cred.ExpiresAt))
		assert.True(t, found.IsActive)
		assert.False(t, found.Unusable)
	})

	t.Run("round-trips a non-expiring token as zero ExpiresAt", func(t *testing.T) {
		cred, err := integration.NewCredential(
			integration.ProviderQuickBooks, "books",
			"cid", "secret",
			integration.CredentialEnvSandbox,
		)
		require.NoError(t, err)
		cred.AccessToken = "tok"

		require.NoError(t, repo.Save(ctx, cred))

		found, err := repo.FindByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.True(t, found.ExpiresAt.IsZero())
		assert.False(t, found.IsTokenExpired())
	})

	t.Run("updates an existing credential in place", func(t *testing.T) {
		cred, err := integration.NewCredential(
			integration.ProviderAmazon, "seller",
			"cid", "secret",
			integration.CredentialEnvProduction,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, cred))

		cred.ApplyRefresh("new-access", "new-refresh", time.Now().Add(time.Hour))
		require.NoError(t, repo.Save(ctx, cred))

		found, err := repo.FindByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-access", found.AccessToken)
		assert.Equal(t, "new-refresh", found.RefreshToken)
	})
}

func TestGormCredentialRepository_FindByID(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()

	t.Run("returns ErrCredentialNotFound for unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
	})
}

func TestGormCredentialRepository_FindActive(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()

	active, err := integration.NewCredential(
		integration.ProviderShopify, "main-store",
		"cid", "secret", integration.CredentialEnvProduction,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, active))

	retired, err := integration.NewCredential(
		integration.ProviderShopify, "old-store",
		"cid", "secret", integration.CredentialEnvProduction,
	)
	require.NoError(t, err)
	retired.Deactivate()
	require.NoError(t, repo.Save(ctx, retired))

	t.Run("finds the active credential by provider and name", func(t *testing.T) {
		found, err := repo.FindActive(ctx, integration.ProviderShopify, "main-store")
		require.NoError(t, err)
		assert.Equal(t, active.ID, found.ID)
	})

	t.Run("does not return deactivated credentials", func(t *testing.T) {
		_, err := repo.FindActive(ctx, integration.ProviderShopify, "old-store")
		assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
	})

	t.Run("misses on a different provider", func(t *testing.T) {
		_, err := repo.FindActive(ctx, integration.ProviderAmazon, "main-store")
		assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
	})
}

func TestGormCredentialRepository_FindAllActive(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()

	for _, name := range []string{"a-store", "b-store"} {
		cred, err := integration.NewCredential(
			integration.ProviderShopify, name,
			"cid", "secret", integration.CredentialEnvProduction,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, cred))
	}
	retired, err := integration.NewCredential(
		integration.ProviderAmazon, "gone",
		"cid", "secret", integration.CredentialEnvProduction,
	)
	require.NoError(t, err)
	retired.Deactivate()
	require.NoError(t, repo.Save(ctx, retired))

	creds, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "a-store", creds[0].Name)
	assert.Equal(t, "b-store", creds[1].Name)
}
