package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logger"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestPromotionParams(t *testing.T) {
	from := models.Table{Base: models.Base{ID: 1}, Name: "orders", StageID: 1, SourceID: 3}
	to := models.Table{Base: models.Base{ID: 9}, Name: "orders", StageID: 2, SourceID: 3}

	params := promotionParams(from, to, 1700000000)
	assert.Equal(t, int64(1), params["from_id"])
	assert.Equal(t, int64(9), params["to_id"])
	assert.Equal(t, int64(2), params["to_stage_id"])
	assert.Equal(t, int64(1700000000), params["cdc_key"])
}

func TestToPromotion(t *testing.T) {
	p, err := toPromotion(1, map[string]any{"to_id": int64(9), "cdc_key": int64(42)})
	require.NoError(t, err)
	assert.Equal(t, Promotion{FromTableID: 1, ToTableID: 9, CDCKey: 42}, p)

	_, err = toPromotion(1, map[string]any{"to_id": "9", "cdc_key": int64(42)})
	assert.Error(t, err)
}

func TestNewClient_RequiresURI(t *testing.T) {
	_, err := NewClient(Config{}, logger.Nop())
	assert.Error(t, err)

	client, err := NewClient(Config{URI: "bolt://localhost:7687", Username: "neo4j", Password: "pw"}, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, client)
}
