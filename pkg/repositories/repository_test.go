package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name          string
		offset, limit int
		wantO, wantL  int
	}{
		{"defaults", 0, 0, 0, DefaultLimit},
		{"negative offset", -5, 10, 0, 10},
		{"capped limit", 20, 5000, 20, MaxLimit},
		{"passthrough", 3, 7, 3, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, l := NormalizePage(tt.offset, tt.limit)
			assert.Equal(t, tt.wantO, o)
			assert.Equal(t, tt.wantL, l)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "name=T1, source_id=2, stage_id=3", describe(map[string]any{
		"stage_id":  3,
		"source_id": 2,
		"name":      "T1",
	}))
}
