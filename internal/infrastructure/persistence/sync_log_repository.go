package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Save persists a sync log, inserting or updating by primary key
func (r *GormSyncLogRepository) Save(ctx context.Context, log *integration.SyncLog) error {
	var model models.SyncLogModel
	model.FromDomain(log)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a sync log by its ID
func (r *GormSyncLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncLog, error) {
	var model models.SyncLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncLogNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRecent returns the integration's latest sync attempts, newest first
func (r *GormSyncLogRepository) FindRecent(ctx context.Context, integrationID uuid.UUID, limit int) ([]*integration.SyncLog, error) {
	query := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var logModels []models.SyncLogModel
	if err := query.Find(&logModels).Error; err != nil {
		return nil, err
	}
	return toDomainSyncLogs(logModels), nil
}

// FindSince returns sync attempts started within the window, newest first
func (r *GormSyncLogRepository) FindSince(ctx context.Context, integrationID uuid.UUID, since time.Time) ([]*integration.SyncLog, error) {
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND started_at >= ?", integrationID, since).
		Order("started_at DESC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	return toDomainSyncLogs(logModels), nil
}

// Delete removes a single sync log by its ID
func (r *GormSyncLogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SyncLogModel{}, "id = ?", id).Error
}

// DeleteOlderThan removes sync logs started before the cutoff (data retention)
func (r *GormSyncLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("started_at < ?", cutoff).
		Delete(&models.SyncLogModel{})
	return result.RowsAffected, result.Error
}

func toDomainSyncLogs(logModels []models.SyncLogModel) []*integration.SyncLog {
	logs := make([]*integration.SyncLog, len(logModels))
	for i := range logModels {
		logs[i] = logModels[i].ToDomain()
	}
	return logs
}

// Ensure GormSyncLogRepository implements the interface
var _ integration.SyncLogRepository = (*GormSyncLogRepository)(nil)
