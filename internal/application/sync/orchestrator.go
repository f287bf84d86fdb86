package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
)

// Orchestrator drives sync attempts through the integration status state
// machine. All writes go through the repositories; the orchestrator itself
// holds no durable state beyond per-credential refresh locks.
type Orchestrator struct {
	credentials  integration.CredentialRepository
	integrations integration.IntegrationRepository
	syncLogs     integration.SyncLogRepository
	registry     integration.Registry
	config       config.SyncConfig
	logger       *zap.Logger

	// refreshLocks serializes token refreshes per credential so two
	// concurrent syncs cannot both spend a single-use refresh token.
	refreshMu    stdsync.Mutex
	refreshLocks map[uuid.UUID]*stdsync.Mutex
}

// NewOrchestrator creates a new sync Orchestrator
func NewOrchestrator(
	credentials integration.CredentialRepository,
	integrations integration.IntegrationRepository,
	syncLogs integration.SyncLogRepository,
	registry integration.Registry,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		credentials:  credentials,
		integrations: integrations,
		syncLogs:     syncLogs,
		registry:     registry,
		config:       cfg,
		logger:       logger,
		refreshLocks: make(map[uuid.UUID]*stdsync.Mutex),
	}
}

// SyncIntegration runs one sync attempt against the integration. The returned
// SyncLog is the finalized attempt record; it is nil when no attempt started
// or when the attempt ended in a rate-limit or authentication error, which
// transition the status but keep no log entry.
func (o *Orchestrator) SyncIntegration(ctx context.Context, id uuid.UUID, kind integration.SyncKind) (*integration.SyncLog, error) {
	now := time.Now()

	integ, err := o.integrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// A rate-limited integration whose reset time has passed returns to
	// ACTIVE before the gate is evaluated.
	wasRateLimited := integ.Status == integration.StatusRateLimited
	integ.ClearRateLimit(now)
	if wasRateLimited && integ.Status != integration.StatusRateLimited {
		if err := o.integrations.Save(ctx, integ); err != nil {
			return nil, err
		}
	}

	if !integ.CanSyncAt(now) {
		o.logger.Debug("integration not eligible for sync",
			zap.String("integration_id", integ.ID.String()),
			zap.String("status", string(integ.Status)),
		)
		return nil, integration.ErrSyncNotPermitted
	}

	cred, err := o.credentials.FindByID(ctx, integ.CredentialID)
	if err != nil {
		return nil, err
	}
	if !cred.Usable() {
		return nil, integration.ErrCredentialUnusable
	}

	client, err := o.registry.Get(integ.Provider)
	if err != nil {
		return nil, err
	}

	// Provider adapters pick this logger up via logger.FromContext, so
	// their request logs carry the integration being synced.
	ctx = logger.WithContext(ctx, o.logger.With(
		zap.String("integration_id", integ.ID.String()),
		zap.String("provider", integ.Provider.String()),
	))

	if err := o.ensureFreshToken(ctx, integ, cred, client); err != nil {
		return nil, err
	}

	window := o.syncWindow(integ, kind, now)

	log := integration.StartSyncLog(integ.ID, kind)
	if err := o.syncLogs.Save(ctx, log); err != nil {
		return nil, err
	}
	integ.BeginSync()
	if err := o.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}

	report, syncErr := client.Sync(ctx, integ, cred, window)
	if syncErr != nil {
		return o.recordSyncFailure(ctx, integ, cred, log, syncErr), syncErr
	}

	log.Complete(report.Processed, report.Succeeded, report.Failed)
	integ.CompleteSync(time.Now())

	if err := o.syncLogs.Save(ctx, log); err != nil {
		return log, err
	}
	if err := o.integrations.Save(ctx, integ); err != nil {
		return log, err
	}

	o.logger.Info("sync completed",
		zap.String("integration_id", integ.ID.String()),
		zap.String("provider", string(integ.Provider)),
		zap.String("kind", string(kind)),
		zap.String("status", string(log.Status)),
		zap.Int("processed", log.RecordsProcessed),
		zap.Int("failed", log.RecordsFailed),
		zap.Duration("duration", log.Duration()),
	)
	return log, nil
}

// BatchStats summarizes one SyncAllDue pass
type BatchStats struct {
	Due       int       `json:"due"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	RanAt     time.Time `json:"ran_at"`
}

// SyncAllDue runs an incremental sync for every due integration, sequentially
// with an inter-call delay. One integration's failure never aborts the batch.
func (o *Orchestrator) SyncAllDue(ctx context.Context) (*BatchStats, error) {
	stats := &BatchStats{RanAt: time.Now()}

	due, err := o.integrations.FindDue(ctx, stats.RanAt)
	if err != nil {
		o.logger.Error("failed to query due integrations", zap.Error(err))
		return nil, err
	}
	stats.Due = len(due)
	if stats.Due == 0 {
		return stats, nil
	}

	for i, integ := range due {
		if i > 0 && o.config.InterCallDelay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(o.config.InterCallDelay):
			}
		}

		_, err := o.SyncIntegration(ctx, integ.ID, integration.SyncKindIncremental)
		switch {
		case err == nil:
			stats.Succeeded++
		case errors.Is(err, integration.ErrSyncNotPermitted) || errors.Is(err, integration.ErrCredentialUnusable):
			stats.Skipped++
		default:
			stats.Failed++
			o.logger.Warn("sync attempt failed",
				zap.String("integration_id", integ.ID.String()),
				zap.String("provider", string(integ.Provider)),
				zap.Error(err),
			)
		}
	}

	o.logger.Info("due sync batch finished",
		zap.Int("due", stats.Due),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// ForceRefreshToken performs an immediate token refresh for the credential,
// bypassing the expiry-buffer check. Used by the operator API.
func (o *Orchestrator) ForceRefreshToken(ctx context.Context, credentialID uuid.UUID) error {
	cred, err := o.credentials.FindByID(ctx, credentialID)
	if err != nil {
		return err
	}
	client, err := o.registry.Get(cred.Provider)
	if err != nil {
		return err
	}
	return o.refreshToken(ctx, nil, cred, client)
}

// ensureFreshToken refreshes the credential's access token when it expires
// within the configured buffer
func (o *Orchestrator) ensureFreshToken(ctx context.Context, integ *integration.Integration, cred *integration.Credential, client integration.ProviderClient) error {
	if !cred.NeedsRefreshAt(time.Now(), o.config.TokenRefreshBuffer) {
		return nil
	}
	return o.refreshToken(ctx, integ, cred, client)
}

func (o *Orchestrator) refreshToken(ctx context.Context, integ *integration.Integration, cred *integration.Credential, client integration.ProviderClient) error {
	lock := o.credentialLock(cred.ID)
	lock.Lock()
	defer lock.Unlock()

	// Another sync may have refreshed while this one waited for the lock.
	fresh, err := o.credentials.FindByID(ctx, cred.ID)
	if err != nil {
		return err
	}
	*cred = *fresh
	if integ != nil && !cred.NeedsRefreshAt(time.Now(), o.config.TokenRefreshBuffer) {
		return nil
	}

	if integ != nil {
		integ.BeginAuthentication()
		if err := o.integrations.Save(ctx, integ); err != nil {
			return err
		}
	}

	grant, err := client.RefreshToken(ctx, cred)
	if err != nil {
		return o.recordRefreshFailure(ctx, cred, err)
	}

	cred.ApplyRefresh(grant.AccessToken, grant.RefreshToken, grant.ExpiresAt)
	if err := o.credentials.Save(ctx, cred); err != nil {
		return err
	}

	o.logger.Info("token refreshed",
		zap.String("credential_id", cred.ID.String()),
		zap.String("provider", string(cred.Provider)),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return nil
}

// recordRefreshFailure marks the credential unusable on a permanent auth
// failure and degrades every integration using it
func (o *Orchestrator) recordRefreshFailure(ctx context.Context, cred *integration.Credential, refreshErr error) error {
	ae, isAuth := integration.IsAuthentication(refreshErr)
	if !isAuth || !ae.Permanent {
		o.logger.Warn("token refresh failed",
			zap.String("credential_id", cred.ID.String()),
			zap.Error(refreshErr),
		)
		return refreshErr
	}

	cred.MarkUnusable(refreshErr.Error())
	if err := o.credentials.Save(ctx, cred); err != nil {
		return err
	}

	dependents, err := o.integrations.FindByCredential(ctx, cred.ID)
	if err != nil {
		o.logger.Error("failed to load integrations for dead credential",
			zap.String("credential_id", cred.ID.String()),
			zap.Error(err),
		)
		return refreshErr
	}
	for _, dep := range dependents {
		dep.MarkError("credential requires re-authorization: " + ae.Reason)
		if err := o.integrations.Save(ctx, dep); err != nil {
			o.logger.Error("failed to degrade integration",
				zap.String("integration_id", dep.ID.String()),
				zap.Error(err),
			)
		}
	}

	o.logger.Error("credential marked unusable",
		zap.String("credential_id", cred.ID.String()),
		zap.String("provider", string(cred.Provider)),
		zap.Int("integrations_degraded", len(dependents)),
	)
	return refreshErr
}

// recordSyncFailure transitions the integration according to the error
// taxonomy and returns the finalized log, or nil when the attempt record was
// discarded. Rate-limit and authentication errors keep no SyncLog: the status
// transition already carries the outcome, and a throttled provider must not
// accumulate FAILED rows that the consecutive-failure alert would count.
func (o *Orchestrator) recordSyncFailure(ctx context.Context, integ *integration.Integration, cred *integration.Credential, log *integration.SyncLog, syncErr error) *integration.SyncLog {
	if rle, ok := integration.IsRateLimit(syncErr); ok {
		integ.MarkRateLimited(rle.ResetAt)
		o.discardSyncLog(ctx, log)
		o.saveIntegration(ctx, integ)
		o.logger.Warn("sync hit provider rate limit",
			zap.String("integration_id", integ.ID.String()),
			zap.String("provider", string(integ.Provider)),
			zap.Time("reset_at", rle.ResetAt),
		)
		return nil
	}

	if ae, ok := integration.IsAuthentication(syncErr); ok {
		if ae.Permanent {
			cred.MarkUnusable(syncErr.Error())
			if err := o.credentials.Save(ctx, cred); err != nil {
				o.logger.Error("failed to persist unusable credential",
					zap.String("credential_id", cred.ID.String()),
					zap.Error(err),
				)
			}
		}
		integ.MarkError(syncErr.Error())
		o.discardSyncLog(ctx, log)
		o.saveIntegration(ctx, integ)
		return nil
	}

	log.Fail(syncErr.Error())
	integ.MarkError(syncErr.Error())
	if err := o.syncLogs.Save(ctx, log); err != nil {
		o.logger.Error("failed to finalize sync log",
			zap.String("sync_log_id", log.ID.String()),
			zap.Error(err),
		)
	}
	o.saveIntegration(ctx, integ)
	return log
}

// discardSyncLog removes the running attempt record persisted before the
// provider call
func (o *Orchestrator) discardSyncLog(ctx context.Context, log *integration.SyncLog) {
	if err := o.syncLogs.Delete(ctx, log.ID); err != nil {
		o.logger.Error("failed to discard sync log",
			zap.String("sync_log_id", log.ID.String()),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) saveIntegration(ctx context.Context, integ *integration.Integration) {
	if err := o.integrations.Save(ctx, integ); err != nil {
		o.logger.Error("failed to persist integration after sync failure",
			zap.String("integration_id", integ.ID.String()),
			zap.Error(err),
		)
	}
}

// syncWindow derives the pull window: full syncs re-pull the configured
// lookback, incremental syncs resume from the last successful sync (falling
// back to the lookback on a first run)
func (o *Orchestrator) syncWindow(integ *integration.Integration, kind integration.SyncKind, now time.Time) integration.SyncWindow {
	window := integration.SyncWindow{Kind: kind, Until: now}
	if kind == integration.SyncKindFull || integ.LastSyncAt == nil {
		window.Since = now.Add(-o.config.FullSyncLookback)
	} else {
		window.Since = *integ.LastSyncAt
	}
	return window
}

func (o *Orchestrator) credentialLock(id uuid.UUID) *stdsync.Mutex {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()
	lock, ok := o.refreshLocks[id]
	if !ok {
		lock = &stdsync.Mutex{}
		o.refreshLocks[id] = lock
	}
	return lock
}
