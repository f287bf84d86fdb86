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

// GormIntegrationRepository implements IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// Save persists an integration, inserting or updating by primary key
func (r *GormIntegrationRepository) Save(ctx context.Context, integ *integration.Integration) error {
	var model models.IntegrationModel
	model.FromDomain(integ)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds an integration by its ID
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds all integrations matching the filter
func (r *GormIntegrationRepository) FindAll(ctx context.Context, filter integration.IntegrationFilter) ([]*integration.Integration, error) {
	query := r.db.WithContext(ctx).Model(&models.IntegrationModel{})

	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var integModels []models.IntegrationModel
	if err := query.Order("created_at ASC").Find(&integModels).Error; err != nil {
		return nil, err
	}
	return toDomainIntegrations(integModels), nil
}

// FindDue returns active integrations whose scheduled sync time has elapsed.
// ERROR integrations are excluded until an operator intervenes; never-synced
// integrations (next_sync_at IS NULL) are due immediately.
func (r *GormIntegrationRepository) FindDue(ctx context.Context, now time.Time) ([]*integration.Integration, error) {
	var integModels []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("status <> ?", integration.StatusError).
		Where("next_sync_at IS NULL OR next_sync_at <= ?", now).
		Order("next_sync_at ASC NULLS FIRST").
		Find(&integModels).Error; err != nil {
		return nil, err
	}
	return toDomainIntegrations(integModels), nil
}

// FindActive returns all enabled integrations
func (r *GormIntegrationRepository) FindActive(ctx context.Context) ([]*integration.Integration, error) {
	var integModels []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&integModels).Error; err != nil {
		return nil, err
	}
	return toDomainIntegrations(integModels), nil
}

// FindByCredential returns all integrations bound to a credential
func (r *GormIntegrationRepository) FindByCredential(ctx context.Context, credentialID uuid.UUID) ([]*integration.Integration, error) {
	var integModels []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		Order("created_at ASC").
		Find(&integModels).Error; err != nil {
		return nil, err
	}
	return toDomainIntegrations(integModels), nil
}

func toDomainIntegrations(integModels []models.IntegrationModel) []*integration.Integration {
	integrations := make([]*integration.Integration, len(integModels))
	for i := range integModels {
		integrations[i] = integModels[i].ToDomain()
	}
	return integrations
}

// Ensure GormIntegrationRepository implements the interface
var _ integration.IntegrationRepository = (*GormIntegrationRepository)(nil)
