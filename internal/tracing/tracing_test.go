package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := NewProvider("pokeagent-test", sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestInit_NoEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSpansNestAndRecordErrors(t *testing.T) {
	rec := withRecorder(t)

	ctx, tick := StartTickSpan(context.Background(), "four-module", 12)
	_, stage := StartStageSpan(ctx, "perception")
	End(stage, errors.New("oracle down"))
	End(tick, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	stageSpan, tickSpan := spans[0], spans[1]
	assert.Equal(t, "stage.perception", stageSpan.Name())
	assert.Equal(t, "agent.tick", tickSpan.Name())
	assert.Equal(t, tickSpan.SpanContext().SpanID(), stageSpan.Parent().SpanID())
	assert.Equal(t, codes.Error, stageSpan.Status().Code)
	assert.Equal(t, "oracle down", stageSpan.Status().Description)
	assert.Equal(t, codes.Unset, tickSpan.Status().Code)
}

func TestStartOracleSpan_Attributes(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartOracleSpan(context.Background(), "gemini", "ACTION", true)
	End(span, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "gemini", attrs["oracle.backend"])
	assert.Equal(t, "ACTION", attrs["oracle.label"])
	assert.Equal(t, "true", attrs["oracle.image"])
}
