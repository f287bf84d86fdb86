package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds the Pyroscope continuous profiling settings.
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string

	// Grafana Cloud needs basic auth; a self-hosted server does not.
	BasicAuthUser     string
	BasicAuthPassword string

	// Types selects what to collect. Nil means CPU plus the four heap
	// views, which covers day-to-day sync troubleshooting.
	Types []pyroscope.ProfileType

	// Sampling rates applied when the corresponding profile types are
	// selected. Zero picks the pyroscope-recommended value.
	MutexProfileFraction int
	BlockProfileRate     int
}

func defaultProfileTypes() []pyroscope.ProfileType {
	return []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
	}
}

// Profiler owns the pyroscope session lifecycle.
type Profiler struct {
	session  *pyroscope.Profiler
	log      *zap.Logger
	stopOnce sync.Once
}

// NewProfiler starts continuous profiling. Disabled, it returns a profiler
// whose Stop is a no-op.
func NewProfiler(cfg ProfilerConfig, log *zap.Logger) (*Profiler, error) {
	p := &Profiler{log: log}
	if !cfg.Enabled {
		log.Info("Continuous profiling disabled")
		return p, nil
	}
	if cfg.ServerAddress == "" || cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler requires server address and application name")
	}

	types := cfg.Types
	if len(types) == 0 {
		types = defaultProfileTypes()
	}
	applyRuntimeRates(cfg, types, log)

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            zapPyroscopeLogger{log.Named("pyroscope").Sugar()},
		Tags:              hostTags(),
		ProfileTypes:      types,
	})
	if err != nil {
		return nil, fmt.Errorf("start profiler: %w", err)
	}
	p.session = session

	log.Info("Continuous profiling started",
		zap.String("server", cfg.ServerAddress),
		zap.String("application", cfg.ApplicationName),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

// applyRuntimeRates turns on the runtime's mutex/block sampling when those
// profile types were requested; both default to off in Go.
func applyRuntimeRates(cfg ProfilerConfig, types []pyroscope.ProfileType, log *zap.Logger) {
	const defaultRate = 5
	for _, t := range types {
		switch t {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			fraction := cfg.MutexProfileFraction
			if fraction <= 0 {
				fraction = defaultRate
			}
			runtime.SetMutexProfileFraction(fraction)
			log.Debug("Mutex profiling enabled", zap.Int("fraction", fraction))
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			rate := cfg.BlockProfileRate
			if rate <= 0 {
				rate = defaultRate
			}
			runtime.SetBlockProfileRate(rate)
			log.Debug("Block profiling enabled", zap.Int("rate", rate))
		}
	}
}

// hostTags labels profiles with where the process runs so one noisy pod can
// be isolated in the Pyroscope UI.
func hostTags() map[string]string {
	tags := map[string]string{}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		tags["hostname"] = hostname
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		tags["pod"] = pod
	}
	return tags
}

// IsEnabled reports whether a profiling session is running.
func (p *Profiler) IsEnabled() bool {
	return p.session != nil
}

// Stop flushes pending profiles and ends the session. Safe to call more
// than once; the pyroscope SDK bounds the flush internally.
func (p *Profiler) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		if p.session == nil {
			return
		}
		if stopErr := p.session.Stop(); stopErr != nil {
			p.log.Error("Profiler stop failed", zap.Error(stopErr))
			err = fmt.Errorf("stop profiler: %w", stopErr)
			return
		}
		p.log.Info("Continuous profiling stopped")
	})
	return err
}

// zapPyroscopeLogger adapts zap to the pyroscope.Logger interface.
type zapPyroscopeLogger struct {
	s *zap.SugaredLogger
}

func (l zapPyroscopeLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l zapPyroscopeLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l zapPyroscopeLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
