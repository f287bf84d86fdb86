package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestNew(t *testing.T) {
	t.Run("builds json and console loggers", func(t *testing.T) {
		for _, format := range []string{"json", "console"} {
			log, err := New(&Config{Level: "debug", Format: format, Output: "stdout"})
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
		}
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		log, err := New(&Config{Level: "loud", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	})
}

func TestContextRoundTrip(t *testing.T) {
	log, logs := observedLogger(zapcore.InfoLevel)

	ctx := WithContext(context.Background(), log.With(zap.String("integration_id", "i-1")))
	FromContext(ctx).Info("from downstream")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "i-1", logs.All()[0].ContextMap()["integration_id"])
}

func TestFromContext_MissingLoggerIsNop(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestWithTraceContext(t *testing.T) {
	t.Run("no span leaves the logger unchanged", func(t *testing.T) {
		log, logs := observedLogger(zapcore.InfoLevel)
		WithTraceContext(context.Background(), log).Info("plain")
		assert.NotContains(t, logs.All()[0].ContextMap(), "trace_id")
	})

	t.Run("active span adds trace and span ids", func(t *testing.T) {
		provider := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
		ctx, span := provider.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		log, logs := observedLogger(zapcore.InfoLevel)
		WithTraceContext(ctx, log).Info("traced")

		fields := logs.All()[0].ContextMap()
		assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("logs the request and seeds the request context", func(t *testing.T) {
		log, logs := observedLogger(zapcore.InfoLevel)

		engine := gin.New()
		engine.Use(func(c *gin.Context) { c.Set("request_id", "req-9"); c.Next() })
		engine.Use(GinMiddleware(log))
		engine.GET("/integrations", func(c *gin.Context) {
			FromContext(c.Request.Context()).Info("handler work")
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/integrations?limit=5", nil))
		require.Equal(t, http.StatusOK, w.Code)

		require.Equal(t, 2, logs.Len())
		handlerEntry := logs.All()[0]
		assert.Equal(t, "req-9", handlerEntry.ContextMap()["request_id"])

		requestEntry := logs.All()[1]
		assert.Equal(t, "request", requestEntry.Message)
		assert.Equal(t, zapcore.InfoLevel, requestEntry.Level)
		assert.Equal(t, int64(http.StatusOK), requestEntry.ContextMap()["status"])
		assert.Equal(t, "limit=5", requestEntry.ContextMap()["query"])
	})

	t.Run("server errors log at error level", func(t *testing.T) {
		log, logs := observedLogger(zapcore.InfoLevel)

		engine := gin.New()
		engine.Use(GinMiddleware(log))
		engine.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, logs := observedLogger(zapcore.InfoLevel)

	engine := gin.New()
	engine.Use(Recovery(log))
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
}

func TestGormLoggerTrace(t *testing.T) {
	fc := func() (string, int64) { return "SELECT * FROM sync_runs", 3 }

	t.Run("not found is suppressed by default", func(t *testing.T) {
		log, logs := observedLogger(zapcore.DebugLevel)
		gl := NewGormLogger(log, gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)

		assert.Zero(t, logs.Len())
	})

	t.Run("not found kept when opted in", func(t *testing.T) {
		log, logs := observedLogger(zapcore.DebugLevel)
		gl := NewGormLogger(log, gormlogger.Error, WithNotFoundLogging())

		gl.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
	})

	t.Run("failures log with the statement", func(t *testing.T) {
		log, logs := observedLogger(zapcore.DebugLevel)
		gl := NewGormLogger(log, gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), fc, errors.New("connection reset"))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "query failed", logs.All()[0].Message)
		assert.Equal(t, "SELECT * FROM sync_runs", logs.All()[0].ContextMap()["sql"])
	})

	t.Run("slow queries warn", func(t *testing.T) {
		log, logs := observedLogger(zapcore.DebugLevel)
		gl := NewGormLogger(log, gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

		gl.Trace(context.Background(), time.Now().Add(-time.Millisecond), fc, nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	})

	t.Run("silent level drops everything", func(t *testing.T) {
		log, logs := observedLogger(zapcore.DebugLevel)
		gl := NewGormLogger(log, gormlogger.Silent)

		gl.Trace(context.Background(), time.Now(), fc, errors.New("ignored"))

		assert.Zero(t, logs.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapGormLogLevel(tt.in), tt.in)
	}
}
