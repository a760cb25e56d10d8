package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator(t *testing.T) {
	e := NewEvaluator()
	data := map[string]any{
		"status": "ok",
		"result": map[string]any{"rows": float64(12), "count": "7", "ratio": 1.5},
		"items":  []any{},
	}

	ok, err := e.EvaluateBool("status == 'ok'", data)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateBool("items", data)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.EvaluateBool("missing", data)
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := e.EvaluateInt64("result.rows", data)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rows)

	rows, err = e.EvaluateInt64("result.count", data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rows)

	_, err = e.EvaluateInt64("result.ratio", data)
	assert.Error(t, err)

	assert.Error(t, e.Validate("result.["))
}

func TestTemplate(t *testing.T) {
	e := NewEvaluator()
	data := map[string]any{"source": map[string]any{"name": "acme corp"}, "table": map[string]any{"name": "orders"}}

	out, err := NewTemplate(e).Render("{{ source.name }}/{{table.name}}", data)
	require.NoError(t, err)
	assert.Equal(t, "acme corp/orders", out)

	out, err = NewURLTemplate(e).Render("http://mover/{{ source.name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "http://mover/acme%20corp", out)

	_, err = NewTemplate(e).Render("{{ [ }}", data)
	assert.Error(t, err)

	assert.True(t, HasTemplates("a {{ b }}"))
	assert.False(t, HasTemplates("plain"))
}
