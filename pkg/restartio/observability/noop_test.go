package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordWrite(ctx, "/", 10, time.Millisecond, "")
		m.RecordRead(ctx, "/", 10, time.Millisecond, "io")
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartOpSpan(ctx, SpanWrite, "s", "/", "a")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(ctx, "evt", attribute.String("k", "v"))
		sm.EndSpanWithError(span, errors.New("ignored"))
	})
}
