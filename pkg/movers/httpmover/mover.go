// Package httpmover delegates data movement to an HTTP service. Each table is
// POSTed to {url}/ingest or {url}/enrich and the JSON answer is read with
// JMESPath expressions.
package httpmover

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/orchestration"
)

const (
	DefaultSuccessExpr = "success"
	DefaultRowsExpr    = "rows"
)

type Config struct {
	// URL is the service base. It may contain {{ expression }} placeholders
	// evaluated against the request.
	URL          string
	Timeout      time.Duration
	SuccessExpr  string
	RowsExpr     string
	MaxBodyBytes int64
	Headers      map[string]string
}

// Request is the body sent for every table.
type Request struct {
	Operation      string `json:"operation"`
	TableID        int64  `json:"table_id"`
	Table          string `json:"table"`
	SourceID       int64  `json:"source_id"`
	Source         string `json:"source"`
	StageID        int64  `json:"stage_id"`
	Stage          string `json:"stage"`
	SourceLocation string `json:"source_location,omitempty"`
	RunKey         int64  `json:"run_key"`
}

type Mover struct {
	client    *httpclient.Client
	evaluator *expressions.Evaluator
	endpoint  *expressions.Template
	cfg       Config
	logger    ectologger.Logger
}

// New validates the expressions of cfg and builds a mover.
func New(cfg Config, logger ectologger.Logger) (*Mover, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mover url is required")
	}
	if cfg.SuccessExpr == "" {
		cfg.SuccessExpr = DefaultSuccessExpr
	}
	if cfg.RowsExpr == "" {
		cfg.RowsExpr = DefaultRowsExpr
	}

	evaluator := expressions.NewEvaluator()
	for _, expr := range []string{cfg.SuccessExpr, cfg.RowsExpr} {
		if err := evaluator.Validate(expr); err != nil {
			return nil, fmt.Errorf("invalid mover expression %q: %w", expr, err)
		}
	}

	clientCfg := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		clientCfg.Timeout = cfg.Timeout
	}
	if cfg.MaxBodyBytes > 0 {
		clientCfg.MaxResponseSize = cfg.MaxBodyBytes
	}

	return &Mover{
		client:    httpclient.NewClient(clientCfg, logger),
		evaluator: evaluator,
		endpoint:  expressions.NewURLTemplate(evaluator),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

func (m *Mover) Ingest(ctx context.Context, ref orchestration.TableRef, runKey int64) (orchestration.Outcome, error) {
	return m.call(ctx, "ingest", ref, runKey)
}

func (m *Mover) Enrich(ctx context.Context, ref orchestration.TableRef, runKey int64) (orchestration.Outcome, error) {
	return m.call(ctx, "enrich", ref, runKey)
}

func newRequest(op string, ref orchestration.TableRef, runKey int64) Request {
	return Request{
		Operation:      op,
		TableID:        ref.Table.ID,
		Table:          ref.Table.Name,
		SourceID:       ref.Source.ID,
		Source:         ref.Source.Name,
		StageID:        ref.Stage.ID,
		Stage:          ref.Stage.Name,
		SourceLocation: ref.Table.Location(),
		RunKey:         runKey,
	}
}

// url renders the endpoint for op. Placeholders see the request as JSON.
func (m *Mover) url(op string, req Request) (string, error) {
	base := strings.TrimRight(m.cfg.URL, "/")
	if !expressions.HasTemplates(base) {
		return base + "/" + op, nil
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", err
	}
	rendered, err := m.endpoint.Render(base, data)
	if err != nil {
		return "", err
	}
	return rendered + "/" + op, nil
}

func (m *Mover) call(ctx context.Context, op string, ref orchestration.TableRef, runKey int64) (orchestration.Outcome, error) {
	req := newRequest(op, ref, runKey)
	url, err := m.url(op, req)
	if err != nil {
		return orchestration.Outcome{}, fmt.Errorf("failed to build mover url: %w", err)
	}

	resp, err := m.client.PostJSON(ctx, url, req, m.cfg.Headers)
	if err != nil {
		return orchestration.Outcome{}, err
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return orchestration.Outcome{}, fmt.Errorf("mover %s returned status %d: %s", op, resp.StatusCode, truncate(string(resp.Body), 256))
	}
	if resp.Data == nil {
		return orchestration.Outcome{}, fmt.Errorf("mover %s returned a non-JSON response (%s): %s", op, resp.ContentType, truncate(string(resp.Body), 256))
	}

	success, err := m.evaluator.EvaluateBool(m.cfg.SuccessExpr, resp.Data)
	if err != nil {
		return orchestration.Outcome{}, err
	}
	rows, err := m.evaluator.EvaluateInt64(m.cfg.RowsExpr, resp.Data)
	if err != nil {
		return orchestration.Outcome{}, err
	}
	if rows < 0 {
		return orchestration.Outcome{}, fmt.Errorf("mover %s reported negative row count %d", op, rows)
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"operation": op,
		"table_id":  ref.Table.ID,
		"success":   success,
		"rows":      rows,
	}).Debug("Mover responded")
	return orchestration.Outcome{Success: success, Rows: rows}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
