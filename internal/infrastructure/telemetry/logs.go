package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds the log pipeline settings.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider owns the log pipeline lifecycle. The engine keeps writing
// to stdout through its normal zap core; this provider only feeds the
// second core produced by NewZapOTELCore.
type LoggerProvider struct {
	sdk *sdklog.LoggerProvider
	log *zap.Logger
	cfg LogsConfig
}

// NewLoggerProvider builds the OTLP log pipeline and installs it as the
// global logger provider.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, log *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{log: log, cfg: cfg}
	if !cfg.Enabled {
		log.Info("Log export disabled; records stay on stdout only")
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}

	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.sdk = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.sdk)

	log.Info("Log pipeline ready", zap.String("endpoint", cfg.CollectorEndpoint))
	return lp, nil
}

// IsEnabled reports whether log records are actually exported.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp.cfg.Enabled && lp.sdk != nil
}

// Shutdown flushes buffered records and stops the exporter.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, providerShutdownTimeout)
	defer cancel()

	if err := lp.sdk.Shutdown(ctx); err != nil {
		lp.log.Error("Log pipeline shutdown failed", zap.Error(err))
		return fmt.Errorf("shutdown logger provider: %w", err)
	}
	lp.log.Info("Log pipeline stopped")
	return nil
}

// ZapBridgeConfig configures the zap core that mirrors records into the
// OTEL log pipeline.
type ZapBridgeConfig struct {
	ServiceName    string
	LoggerProvider *LoggerProvider
	// MinLevel filters records below this level out of the export path.
	// Zero value (Debug) exports everything the base logger emits.
	MinLevel zapcore.Level
}

// NewZapOTELCore returns a core to tee alongside the engine's stdout core.
// When the provider is nil or disabled the returned core drops everything,
// so callers can tee it unconditionally.
func NewZapOTELCore(cfg ZapBridgeConfig) zapcore.Core {
	if cfg.LoggerProvider == nil || !cfg.LoggerProvider.IsEnabled() {
		return zapcore.NewNopCore()
	}

	core := otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(cfg.LoggerProvider.sdk))
	if cfg.MinLevel > zapcore.DebugLevel {
		return &minLevelCore{Core: core, min: cfg.MinLevel}
	}
	return core
}

// minLevelCore enforces a floor on top of a core that accepts all levels.
type minLevelCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *minLevelCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && c.Core.Enabled(lvl)
}

func (c *minLevelCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fields), min: c.min}
}
