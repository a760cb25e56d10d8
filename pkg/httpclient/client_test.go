package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logger"
)

func TestClient_PostJSON(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"rows":3}`))
	}))
	defer server.Close()

	client := NewClient(DefaultConfig(), logger.Nop())
	resp, err := client.PostJSON(context.Background(), server.URL, map[string]any{"table": "orders"}, map[string]string{"Authorization": "secret"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, IsSuccessStatus(resp.StatusCode))
	assert.Equal(t, map[string]any{"success": true, "rows": float64(3)}, resp.Data)
	assert.Equal(t, "orders", received["table"])
}

func TestClient_ResponseLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxResponseSize = 16
	client := NewClient(cfg, logger.Nop())

	_, err := client.PostJSON(context.Background(), server.URL, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        any
	}{
		{"json", "application/json; charset=utf-8", `{"a":1}`, map[string]any{"a": float64(1)}},
		{"json suffix", "application/vnd.mover+json", `{"rows":4}`, map[string]any{"rows": float64(4)}},
		{"text is kept raw", "text/plain", "done", nil},
		{"empty body", "application/json", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{ContentType: tt.contentType, Body: []byte(tt.body)}
			require.NoError(t, ParseResponse(resp))
			assert.Equal(t, tt.want, resp.Data)
		})
	}

	resp := &Response{ContentType: "application/json", Body: []byte("{")}
	assert.Error(t, ParseResponse(resp))
}
