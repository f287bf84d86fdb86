package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds the database tracing settings.
type DBTracingConfig struct {
	Enabled bool
	// SlowQueryThresh tags spans over the threshold so they stand out
	// during an incident without filtering on duration.
	SlowQueryThresh time.Duration
	DBSystem        string
	// WithoutVariables keeps bound values out of span SQL. Webhook payloads
	// and credential columns make the alternative unacceptable here.
	WithoutVariables bool
}

// DefaultDBTracingConfig returns the settings used in production.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "postgresql",
		WithoutVariables: true,
	}
}

// DBTracingPlugin layers slow-query and error annotation on top of the
// spans otelgorm opens for every statement.
type DBTracingPlugin struct {
	cfg DBTracingConfig
	log *zap.Logger
}

func NewDBTracingPlugin(cfg DBTracingConfig, log *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{cfg: cfg, log: log}
}

// traceStartKey carries the statement start time between callbacks.
const traceStartKey = "syncbridge:db_tracing:start"

// RegisterOtelGorm installs otelgorm plus the annotation callbacks on the
// GORM instance. No-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.cfg.Enabled {
		p.log.Debug("Database tracing not registered (disabled)")
		return nil
	}

	start := func(db *gorm.DB) {
		db.InstanceSet(traceStartKey, time.Now())
	}

	cb := db.Callback()
	var regErr error
	register := func(err error) {
		if regErr == nil && err != nil {
			regErr = err
		}
	}
	register(cb.Create().Before("gorm:create").Register("syncbridge:db_tracing:create_start", start))
	register(cb.Create().After("gorm:create").Register("syncbridge:db_tracing:create_done", p.annotate))
	register(cb.Query().Before("gorm:query").Register("syncbridge:db_tracing:query_start", start))
	register(cb.Query().After("gorm:query").Register("syncbridge:db_tracing:query_done", p.annotate))
	register(cb.Update().Before("gorm:update").Register("syncbridge:db_tracing:update_start", start))
	register(cb.Update().After("gorm:update").Register("syncbridge:db_tracing:update_done", p.annotate))
	register(cb.Delete().Before("gorm:delete").Register("syncbridge:db_tracing:delete_start", start))
	register(cb.Delete().After("gorm:delete").Register("syncbridge:db_tracing:delete_done", p.annotate))
	register(cb.Row().Before("gorm:row").Register("syncbridge:db_tracing:row_start", start))
	register(cb.Row().After("gorm:row").Register("syncbridge:db_tracing:row_done", p.annotate))
	register(cb.Raw().Before("gorm:raw").Register("syncbridge:db_tracing:raw_start", start))
	register(cb.Raw().After("gorm:raw").Register("syncbridge:db_tracing:raw_done", p.annotate))
	if regErr != nil {
		return regErr
	}

	// Registered after the annotation callbacks so otelgorm's span-ending
	// callback runs last and the annotations land on a live span.
	opts := []otelgorm.Option{otelgorm.WithDBName(p.cfg.DBSystem)}
	if p.cfg.WithoutVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	p.log.Info("Database tracing enabled",
		zap.Duration("slow_query_threshold", p.cfg.SlowQueryThresh),
		zap.String("db_system", p.cfg.DBSystem),
		zap.Bool("without_variables", p.cfg.WithoutVariables),
	)
	return nil
}

// annotate enriches the active statement span with outcome details.
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// Not-found is a domain answer, not a database failure.
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	if v, ok := db.InstanceGet(traceStartKey); ok {
		if started, ok := v.(time.Time); ok {
			if elapsed := time.Since(started); elapsed > p.cfg.SlowQueryThresh {
				span.SetAttributes(
					attribute.Bool("db.slow_query", true),
					attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
				)
				span.AddEvent("slow_query", trace.WithAttributes(
					attribute.Int64("threshold_ms", p.cfg.SlowQueryThresh.Milliseconds()),
				))
			}
		}
	}
}
