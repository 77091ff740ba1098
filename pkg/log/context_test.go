package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.Same(t, Std(), FromContext(context.Background()))

	core, logs := observer.New(zap.DebugLevel)
	l := &zapLogger{core: zap.New(core)}
	ctx := NewContext(context.Background(), l.WithValues("cycle", "c-1"))

	FromContext(ctx).Info("checking", "running", "v1.0.7")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "c-1", fields["cycle"])
		assert.Equal(t, "v1.0.7", fields["running"])
	}
}

func TestSync(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	l := &zapLogger{core: zap.New(core)}
	assert.NoError(t, l.Sync())
}
