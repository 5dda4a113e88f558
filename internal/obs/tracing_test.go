package obs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "quotedesk-test", Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingConfig{ServiceName: "quotedesk-test", Exporter: "zipkin"})
	require.ErrorContains(t, err, "zipkin")
}

func TestSamplerDescription(t *testing.T) {
	require.True(t, strings.Contains(Sampler(0).Description(), "AlwaysOnSampler"))
	require.True(t, strings.Contains(Sampler(0.25).Description(), "TraceIDRatioBased"))
}

func TestPGXHelpers(t *testing.T) {
	require.Equal(t, "SELECT", sqlVerb("\n  select id from quotes"))
	require.Equal(t, "query", sqlVerb("   "))
	require.Equal(t, "UPDATE quotes SET status = $1", clipSQL("UPDATE quotes\n\tSET status = $1"))
	require.Len(t, clipSQL(strings.Repeat("x ", 400)), maxTracedSQL+3)
}
