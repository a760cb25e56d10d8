package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassValues(t *testing.T) {
	ctx := context.Background()
	_, ok := GetCDCKey(ctx)
	assert.False(t, ok)
	assert.Empty(t, Fields(ctx))

	ctx = SetRunID(ctx, "run-1")
	ctx = SetStage(ctx, "raw")
	ctx = SetCDCKey(ctx, 42)
	ctx = SetRequestID(ctx, "req-1")

	cdcKey, ok := GetCDCKey(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), cdcKey)
	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Equal(t, "raw", GetStage(ctx))
	assert.Equal(t, map[string]any{
		"request_id": "req-1",
		"run_id":     "run-1",
		"stage":      "raw",
		"cdc_key":    "42",
	}, Fields(ctx))
}
