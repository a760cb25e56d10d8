package httpmover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logger"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestration"
)

func testRef() orchestration.TableRef {
	location := "landing/orders.csv"
	return orchestration.TableRef{
		Table:  models.Table{Base: models.Base{ID: 4}, Name: "orders", SourceLocation: &location, StageID: 1, SourceID: 2},
		Source: models.Source{Base: models.Base{ID: 2}, Name: "acme"},
		Stage:  models.Stage{Base: models.Base{ID: 1}, Name: "raw"},
	}
}

func TestMover_Ingest(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movers/acme/ingest", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"ok":true,"written":42}}`))
	}))
	defer server.Close()

	m, err := New(Config{
		URL:         server.URL + "/movers/{{ source }}",
		SuccessExpr: "result.ok",
		RowsExpr:    "result.written",
	}, logger.Nop())
	require.NoError(t, err)

	outcome, err := m.Ingest(context.Background(), testRef(), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, orchestration.Outcome{Success: true, Rows: 42}, outcome)

	assert.Equal(t, "ingest", got.Operation)
	assert.Equal(t, "orders", got.Table)
	assert.Equal(t, "landing/orders.csv", got.SourceLocation)
	assert.Equal(t, int64(1700000000), got.RunKey)
}

func TestMover_EnrichDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enrich", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"rows":0}`))
	}))
	defer server.Close()

	m, err := New(Config{URL: server.URL + "/"}, logger.Nop())
	require.NoError(t, err)

	outcome, err := m.Enrich(context.Background(), testRef(), 1)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Zero(t, outcome.Rows)
}

func TestMover_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
	}{
		{"server error", http.StatusInternalServerError, "application/json", `{"error":"boom"}`},
		{"negative rows", http.StatusOK, "application/json", `{"success":true,"rows":-1}`},
		{"non integer rows", http.StatusOK, "application/json", `{"success":true,"rows":"many"}`},
		{"non json body", http.StatusOK, "text/plain", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			m, err := New(Config{URL: server.URL}, logger.Nop())
			require.NoError(t, err)

			_, err = m.Ingest(context.Background(), testRef(), 1)
			assert.Error(t, err)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, logger.Nop())
	assert.Error(t, err)

	_, err = New(Config{URL: "http://mover", RowsExpr: "rows.["}, logger.Nop())
	assert.Error(t, err)
}
