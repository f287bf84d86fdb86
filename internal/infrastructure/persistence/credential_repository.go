package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormCredentialRepository implements CredentialRepository using GORM
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// Save persists a credential, inserting or updating by primary key. A
// unique-violation on the active (provider, name) index surfaces as
// ErrDuplicateCredential.
func (r *GormCredentialRepository) Save(ctx context.Context, cred *integration.Credential) error {
	var model models.CredentialModel
	model.FromDomain(cred)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "23505") {
			return integration.ErrDuplicateCredential
		}
		return err
	}
	return nil
}

// FindByID finds a credential by its ID
func (r *GormCredentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Credential, error) {
	var model models.CredentialModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCredentialNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive finds the single active credential for a provider account name
func (r *GormCredentialRepository) FindActive(ctx context.Context, provider integration.Provider, name string) (*integration.Credential, error) {
	var model models.CredentialModel
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND name = ? AND is_active = ?", provider, name, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCredentialNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllActive returns every active credential across providers
func (r *GormCredentialRepository) FindAllActive(ctx context.Context) ([]*integration.Credential, error) {
	var credModels []models.CredentialModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("provider ASC, name ASC").
		Find(&credModels).Error; err != nil {
		return nil, err
	}

	creds := make([]*integration.Credential, len(credModels))
	for i := range credModels {
		creds[i] = credModels[i].ToDomain()
	}
	return creds, nil
}

// Ensure GormCredentialRepository implements the interface
var _ integration.CredentialRepository = (*GormCredentialRepository)(nil)
