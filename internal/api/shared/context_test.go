package shared

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	traceID := GetTraceID(traced)
	require.NotEmpty(t, traceID)
	_, err := ulid.ParseStrict(traceID)
	assert.NoError(t, err, "trace IDs are ULIDs")

	assert.Empty(t, GetTraceID(ctx), "parent context is unchanged")
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestNewTraceIDUnique(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]struct{}, iterations)
	for i := 0; i < iterations; i++ {
		id := NewTraceID()
		assert.Len(t, id, 26)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, iterations)
}
