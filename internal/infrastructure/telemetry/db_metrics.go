package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds the database metric settings.
type DBMetricsConfig struct {
	Enabled bool
	// SlowQueryThreshold marks queries worth counting separately; sync runs
	// scanning large record batches are the usual offenders.
	SlowQueryThreshold time.Duration
}

// DefaultDBMetricsConfig returns the settings used in production.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// DBMetrics measures query traffic and connection pool pressure. Queries
// are observed through a GORM plugin; the pool is observed lazily through
// an observable gauge read at each metric export.
type DBMetrics struct {
	queries       *Counter
	queryDuration *Histogram
	slowQueries   *Counter

	slowThreshold time.Duration
	poolReg       metric.Registration
	log           *zap.Logger
}

// NewDBMetrics builds the query instruments and registers the pool gauges
// against the given sql.DB.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = DefaultDBMetricsConfig().SlowQueryThreshold
	}

	m := &DBMetrics{slowThreshold: cfg.SlowQueryThreshold, log: log}

	var err error
	if m.queries, err = NewCounter(meter,
		"syncbridge_db_queries_total",
		"Database queries by operation",
		"{query}",
	); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "syncbridge_db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueries, err = NewCounter(meter,
		"syncbridge_db_slow_queries_total",
		"Queries slower than the configured threshold, by table",
		"{query}",
	); err != nil {
		return nil, err
	}

	poolConns, err := meter.Int64ObservableGauge(
		"syncbridge_db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	poolMax, err := meter.Int64ObservableGauge(
		"syncbridge_db_pool_connections_max",
		metric.WithDescription("Configured pool ceiling"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	m.poolReg, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(poolConns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(poolConns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(poolConns, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		o.ObserveInt64(poolMax, int64(stats.MaxOpenConnections))
		return nil
	}, poolConns, poolMax)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Close unregisters the pool gauges.
func (m *DBMetrics) Close() error {
	if m.poolReg == nil {
		return nil
	}
	return m.poolReg.Unregister()
}

// observe records one completed query.
func (m *DBMetrics) observe(ctx context.Context, operation, table string, d time.Duration) {
	if operation == "" {
		operation = "OTHER"
	}
	m.queries.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, d, AttrDBOperation.String(operation))

	if d > m.slowThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueries.Inc(ctx, AttrDBTable.String(table))
	}
}

// startKey carries the query start time between the before and after
// callbacks on the statement instance.
const startKey = "syncbridge:db_metrics:start"

// dbMetricsPlugin hooks every GORM operation and feeds DBMetrics.
type dbMetricsPlugin struct {
	metrics *DBMetrics
}

func (p *dbMetricsPlugin) Name() string { return "syncbridge:db_metrics" }

func (p *dbMetricsPlugin) Initialize(db *gorm.DB) error {
	start := func(db *gorm.DB) {
		db.InstanceSet(startKey, time.Now())
	}
	finish := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			op := operation
			if op == "" {
				op = sqlOperation(db.Statement.SQL.String())
			}
			var elapsed time.Duration
			if v, ok := db.InstanceGet(startKey); ok {
				if t, ok := v.(time.Time); ok {
					elapsed = time.Since(t)
				}
			}
			p.metrics.observe(db.Statement.Context, op, db.Statement.Table, elapsed)
		}
	}

	cb := db.Callback()
	var regErr error
	register := func(err error) {
		if regErr == nil && err != nil {
			regErr = err
		}
	}
	register(cb.Create().Before("gorm:create").Register("syncbridge:db_metrics:create_start", start))
	register(cb.Create().After("gorm:create").Register("syncbridge:db_metrics:create_done", finish("INSERT")))
	register(cb.Query().Before("gorm:query").Register("syncbridge:db_metrics:query_start", start))
	register(cb.Query().After("gorm:query").Register("syncbridge:db_metrics:query_done", finish("SELECT")))
	register(cb.Update().Before("gorm:update").Register("syncbridge:db_metrics:update_start", start))
	register(cb.Update().After("gorm:update").Register("syncbridge:db_metrics:update_done", finish("UPDATE")))
	register(cb.Delete().Before("gorm:delete").Register("syncbridge:db_metrics:delete_start", start))
	register(cb.Delete().After("gorm:delete").Register("syncbridge:db_metrics:delete_done", finish("DELETE")))
	register(cb.Row().Before("gorm:row").Register("syncbridge:db_metrics:row_start", start))
	register(cb.Row().After("gorm:row").Register("syncbridge:db_metrics:row_done", finish("")))
	register(cb.Raw().Before("gorm:raw").Register("syncbridge:db_metrics:raw_start", start))
	register(cb.Raw().After("gorm:raw").Register("syncbridge:db_metrics:raw_done", finish("")))
	return regErr
}

// sqlOperation classifies raw SQL by its leading keyword.
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	default:
		return "OTHER"
	}
}

// RegisterDBMetrics wires query and pool metrics onto a GORM instance.
// Returns nil metrics without error when the pipeline is disabled.
func RegisterDBMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || meterProvider == nil || !meterProvider.IsEnabled() {
		log.Debug("Database metrics not registered (disabled)")
		return nil, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics, err := NewDBMetrics(meterProvider.Meter("syncbridge.db"), sqlDB, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := db.Use(&dbMetricsPlugin{metrics: metrics}); err != nil {
		return nil, err
	}

	log.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return metrics, nil
}
