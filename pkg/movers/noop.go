// Package movers holds the DatasetMover implementations selected by the MOVER
// setting.
package movers

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/orchestration"
)

// Noop reports success with zero rows without touching any data. Because
// nothing is processed, an enrich pass after a noop ingest has no candidates.
type Noop struct {
	logger ectologger.Logger
}

func NewNoop(logger ectologger.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Ingest(ctx context.Context, ref orchestration.TableRef, runKey int64) (orchestration.Outcome, error) {
	n.logger.WithContext(ctx).Debugf("noop ingest of %s/%s (run %d)", ref.Source.Name, ref.Table.Name, runKey)
	return orchestration.Outcome{Success: true}, nil
}

func (n *Noop) Enrich(ctx context.Context, ref orchestration.TableRef, runKey int64) (orchestration.Outcome, error) {
	n.logger.WithContext(ctx).Debugf("noop enrich of %s/%s (run %d)", ref.Source.Name, ref.Table.Name, runKey)
	return orchestration.Outcome{Success: true}, nil
}
