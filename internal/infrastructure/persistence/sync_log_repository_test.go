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

func setupSyncLogTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.SyncLogModel{})
	require.NoError(t, err)

	return db
}

func TestGormSyncLogRepository_Save(t *testing.T) {
	db := setupSyncLogTestDB(t)
	repo := NewGormSyncLogRepository(db)
	ctx := context.Background()

	t.Run("saves a running log and updates it on completion", func(t *testing.T) {
		log := integration.StartSyncLog(uuid.New(), integration.SyncKindIncremental)
		require.NoError(t, repo.Save(ctx, log))

		found, err := repo.FindByID(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncLogStatusRunning, found.Status)
		assert.Nil(t, found.CompletedAt)

		log.Complete(100, 97, 3)
		require.NoError(t, repo.Save(ctx, log))

		found, err = repo.FindByID(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncLogStatusPartial, found.Status)
		assert.Equal(t, 100, found.RecordsProcessed)
		assert.Equal(t, 97, found.RecordsSucceeded)
		assert.Equal(t, 3, found.RecordsFailed)
		require.NotNil(t, found.CompletedAt)
	})

	t.Run("returns ErrSyncLogNotFound for unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrSyncLogNotFound)
	})
}

func TestGormSyncLogRepository_FindRecent(t *testing.T) {
	db := setupSyncLogTestDB(t)
	repo := NewGormSyncLogRepository(db)
	ctx := context.Background()

	integrationID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		log := integration.StartSyncLog(integrationID, integration.SyncKindIncremental)
		log.StartedAt = base.Add(time.Duration(i) * time.Minute)
		log.Complete(10, 10, 0)
		require.NoError(t, repo.Save(ctx, log))
	}
	// Another integration's log must not leak in.
	other := integration.StartSyncLog(uuid.New(), integration.SyncKindFull)
	require.NoError(t, repo.Save(ctx, other))

	t.Run("returns newest first with limit", func(t *testing.T) {
		logs, err := repo.FindRecent(ctx, integrationID, 3)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.True(t, logs[0].StartedAt.After(logs[1].StartedAt))
		assert.True(t, logs[1].StartedAt.After(logs[2].StartedAt))
	})

	t.Run("zero limit returns everything", func(t *testing.T) {
		logs, err := repo.FindRecent(ctx, integrationID, 0)
		require.NoError(t, err)
		assert.Len(t, logs, 5)
	})
}

func TestGormSyncLogRepository_FindSince(t *testing.T) {
	db := setupSyncLogTestDB(t)
	repo := NewGormSyncLogRepository(db)
	ctx := context.Background()

	integrationID := uuid.New()
	now := time.Now().UTC()

	recent := integration.StartSyncLog(integrationID, integration.SyncKindIncremental)
	recent.StartedAt = now.Add(-2 * time.Hour)
	require.NoError(t, repo.Save(ctx, recent))

	old := integration.StartSyncLog(integrationID, integration.SyncKindIncremental)
	old.StartedAt = now.Add(-48 * time.Hour)
	require.NoError(t, repo.Save(ctx, old))

	logs, err := repo.FindSince(ctx, integrationID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, recent.ID, logs[0].ID)
}

func TestGormSyncLogRepository_Delete(t *testing.T) {
	db := setupSyncLogTestDB(t)
	repo := NewGormSyncLogRepository(db)
	ctx := context.Background()

	integrationID := uuid.New()
	discarded := integration.StartSyncLog(integrationID, integration.SyncKindIncremental)
	require.NoError(t, repo.Save(ctx, discarded))
	kept := integration.StartSyncLog(integrationID, integration.SyncKindIncremental)
	require.NoError(t, repo.Save(ctx, kept))

	require.NoError(t, repo.Delete(ctx, discarded.ID))

	_, err := repo.FindByID(ctx, discarded.ID)
	assert.ErrorIs(t, err, integration.ErrSyncLogNotFound)
	_, err = repo.FindByID(ctx, kept.ID)
	assert.NoError(t, err)

	t.Run("deleting an unknown id is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.Delete(ctx, uuid.New()))
	})
}

func TestGormSyncLogRepository_DeleteOlderThan(t *testing.T) {
	db := setupSyncLogTestDB(t)
	repo := NewGormSyncLogRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	integrationID := uuid.New()

	old := integration.StartSyncLog(integrationID, integration.SyncKindFull)
	old.StartedAt = now.Add(-40 * 24 * time.Hour)
	require.NoError(t, repo.Save(ctx, old))

	kept := integration.StartSyncLog(integrationID, integration.SyncKindFull)
	kept.StartedAt = now.Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, kept))

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.FindRecent(ctx, integrationID, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
}
