package handler

import (
	"time"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// CreateCredentialRequest onboards a provider account
type CreateCredentialRequest struct {
	Provider     string `json:"provider" binding:"required,provider"`
	Name         string `json:"name" binding:"required,max=100"`
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
	Environment  string `json:"environment" binding:"omitempty,oneof=production sandbox"`
}

// CredentialResponse is the API view of a credential. Secrets never leave
// the server.
type CredentialResponse struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	Name          string     `json:"name"`
	Environment   string     `json:"environment"`
	IsActive      bool       `json:"is_active"`
	Unusable      bool       `json:"unusable"`
	UnusableCause string     `json:"unusable_cause,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toCredentialResponse(cred *integration.Credential) CredentialResponse {
	resp := CredentialResponse{
		ID:            cred.ID.String(),
		Provider:      string(cred.Provider),
		Name:          cred.Name,
		Environment:   string(cred.Environment),
		IsActive:      cred.IsActive,
		Unusable:      cred.Unusable,
		UnusableCause: cred.UnusableCause,
		CreatedAt:     cred.CreatedAt,
	}
	if !cred.ExpiresAt.IsZero() {
		expires := cred.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// CreateIntegrationRequest configures a new sync relationship
type CreateIntegrationRequest struct {
	CredentialID string   `json:"credential_id" binding:"required,uuid"`
	Provider     string   `json:"provider" binding:"required,provider"`
	Kind         string   `json:"kind" binding:"required"`
	Name         string   `json:"name" binding:"required,max=100"`
	// SyncFrequencySeconds is the steady-state interval between syncs.
	SyncFrequencySeconds int               `json:"sync_frequency_seconds" binding:"required,min=60"`
	Categories           []string          `json:"categories" binding:"omitempty,dive,oneof=orders products inventory invoices customers"`
	Config               map[string]string `json:"config"`
}

// IntegrationResponse is the API view of an integration
type IntegrationResponse struct {
	ID                 string     `json:"id"`
	CredentialID       string     `json:"credential_id"`
	Provider           string     `json:"provider"`
	Kind               string     `json:"kind"`
	Name               string     `json:"name"`
	Status             string     `json:"status"`
	IsActive           bool       `json:"is_active"`
	SyncFrequency      string     `json:"sync_frequency"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	NextSyncAt         *time.Time `json:"next_sync_at,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	RetryCount         int        `json:"retry_count"`
	RateLimitRemaining *int       `json:"rate_limit_remaining,omitempty"`
	RateLimitResetAt   *time.Time `json:"rate_limit_reset_at,omitempty"`
	Categories         []string   `json:"categories"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toIntegrationResponse(integ *integration.Integration) IntegrationResponse {
	categories := make([]string, 0, len(integ.Categories))
	for _, cat := range integ.Categories {
		categories = append(categories, string(cat))
	}
	return IntegrationResponse{
		ID:                 integ.ID.String(),
		CredentialID:       integ.CredentialID.String(),
		Provider:           string(integ.Provider),
		Kind:               string(integ.Kind),
		Name:               integ.Name,
		Status:             string(integ.Status),
		IsActive:           integ.IsActive,
		SyncFrequency:      integ.SyncFrequency.String(),
		LastSyncAt:         integ.LastSyncAt,
		NextSyncAt:         integ.NextSyncAt,
		ErrorMessage:       integ.ErrorMessage,
		RetryCount:         integ.RetryCount,
		RateLimitRemaining: integ.RateLimitRemaining,
		RateLimitResetAt:   integ.RateLimitResetAt,
		Categories:         categories,
		CreatedAt:          integ.CreatedAt,
		UpdatedAt:          integ.UpdatedAt,
	}
}

func toIntegrationResponses(integrations []*integration.Integration) []IntegrationResponse {
	responses := make([]IntegrationResponse, 0, len(integrations))
	for _, integ := range integrations {
		responses = append(responses, toIntegrationResponse(integ))
	}
	return responses
}

// TriggerSyncRequest selects the sync shape for a manual trigger
type TriggerSyncRequest struct {
	Kind string `json:"kind" binding:"omitempty,oneof=INCREMENTAL FULL"`
}

// SyncLogResponse is the API view of one sync attempt
type SyncLogResponse struct {
	ID               string     `json:"id"`
	IntegrationID    string     `json:"integration_id"`
	Kind             string     `json:"kind"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsSucceeded int        `json:"records_succeeded"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

func toSyncLogResponse(log *integration.SyncLog) SyncLogResponse {
	return SyncLogResponse{
		ID:               log.ID.String(),
		IntegrationID:    log.IntegrationID.String(),
		Kind:             string(log.Kind),
		Status:           string(log.Status),
		StartedAt:        log.StartedAt,
		CompletedAt:      log.CompletedAt,
		RecordsProcessed: log.RecordsProcessed,
		RecordsSucceeded: log.RecordsSucceeded,
		RecordsFailed:    log.RecordsFailed,
		ErrorMessage:     log.ErrorMessage,
	}
}
