package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "mnemo", config.ServiceName)
	assert.Equal(t, "dev", config.ServiceVersion)
	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "http://localhost:4318/v1/traces", config.OTLPEndpoint)
	assert.Equal(t, 1.0, config.SampleRate)
	assert.False(t, config.Enabled)
	assert.True(t, config.UseStdout)
}

func TestManagerDisabledIsNoOp(t *testing.T) {
	m := NewManager(Config{Enabled: false}, testLogger())

	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerEnabledWithStdout(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.UseStdout = true
	m := NewManager(config, testLogger())

	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Shutdown(ctx))

	// Shutdown after shutdown stays a no-op
	require.NoError(t, m.Shutdown(ctx))
}

func TestSpanHelpers(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.UseStdout = true
	m := NewManager(config, testLogger())

	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	defer func() {
		_ = m.Shutdown(ctx)
	}()

	spanCtx, span := StartSpan(ctx, "test-span",
		attribute.String("test.key", "test.value"),
	)
	assert.NotNil(t, span)
	assert.True(t, span.SpanContext().IsValid())

	AddSpanAttributes(spanCtx,
		attribute.Int("test.count", 3),
		attribute.Bool("test.flag", true),
	)
	RecordError(spanCtx, errors.New("something went wrong"),
		attribute.String("test.stage", "replay"),
	)

	span.End()
}

func TestSpanHelpersWithoutActiveSpan(t *testing.T) {
	// No provider, no span in context: helpers must not panic
	ctx := context.Background()
	AddSpanAttributes(ctx, attribute.String("k", "v"))
	RecordError(ctx, errors.New("ignored"))
}
