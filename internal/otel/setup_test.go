package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestSampler(t *testing.T) {
	assert.Equal(t, trace.AlwaysSample().Description(), Options{}.sampler().Description())
	assert.Equal(t, trace.AlwaysSample().Description(), Options{SampleRatio: 1}.sampler().Description())
	assert.Contains(t, Options{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}

func TestSetupStdout(t *testing.T) {
	var out bytes.Buffer

	shutdown, err := Setup(context.Background(), Options{
		ServiceName: "submissions-api-test",
		Environment: "test",
		Writer:      &out,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "exported")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), `"Name":"exported"`)
	assert.Contains(t, out.String(), "submissions-api-test")

	assert.NoError(t, shutdown(context.Background()), "second shutdown is a no-op")
}
