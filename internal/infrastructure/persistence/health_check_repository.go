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

// GormHealthCheckRepository implements HealthCheckRepository using GORM
type GormHealthCheckRepository struct {
	db *gorm.DB
}

// NewGormHealthCheckRepository creates a new GormHealthCheckRepository
func NewGormHealthCheckRepository(db *gorm.DB) *GormHealthCheckRepository {
	return &GormHealthCheckRepository{db: db}
}

// Save persists a health check result
func (r *GormHealthCheckRepository) Save(ctx context.Context, check *integration.HealthCheck) error {
	var model models.HealthCheckModel
	model.FromDomain(check)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindSince returns probes within the rolling window, newest first
func (r *GormHealthCheckRepository) FindSince(ctx context.Context, integrationID uuid.UUID, since time.Time) ([]*integration.HealthCheck, error) {
	var checkModels []models.HealthCheckModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND checked_at >= ?", integrationID, since).
		Order("checked_at DESC").
		Find(&checkModels).Error; err != nil {
		return nil, err
	}

	checks := make([]*integration.HealthCheck, len(checkModels))
	for i := range checkModels {
		checks[i] = checkModels[i].ToDomain()
	}
	return checks, nil
}

// LastPassed returns the most recent successful probe, or nil when the
// integration has never passed
func (r *GormHealthCheckRepository) LastPassed(ctx context.Context, integrationID uuid.UUID) (*integration.HealthCheck, error) {
	var model models.HealthCheckModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND passed = ?", integrationID, true).
		Order("checked_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// DeleteOlderThan removes probes recorded before the cutoff (data retention)
func (r *GormHealthCheckRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("checked_at < ?", cutoff).
		Delete(&models.HealthCheckModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormHealthCheckRepository implements the interface
var _ integration.HealthCheckRepository = (*GormHealthCheckRepository)(nil)
