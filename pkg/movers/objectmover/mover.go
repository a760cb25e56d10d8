// Package objectmover moves datasets between prefixes of an object store.
// Ingest copies a table's landing file into the raw stage; enrich copies the
// raw object of a run into the enriched stage. Rows are counted as newline
// delimited records while copying.
package objectmover

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/orchestration"
)

type Mover struct {
	store   Store
	landing string
	logger  ectologger.Logger
}

func New(store Store, landingPrefix string, logger ectologger.Logger) *Mover {
	return &Mover{store: store, landing: landingPrefix, logger: logger}
}

// landingObject is where the source file of ref is expected.
func (m *Mover) landingObject(ref orchestration.TableRef) string {
	if loc := ref.Table.Location(); loc != "" {
		return path.Join(m.landing, loc)
	}
	return path.Join(m.landing, ref.Source.Name, ref.Table.Name)
}

// runObject is the object written for ref in its own stage.
func runObject(ref orchestration.TableRef, runKey int64, ext string) string {
	return path.Join(ref.Stage.Name, ref.Source.Name, ref.Table.Name, strconv.FormatInt(runKey, 10)) + ext
}

// findRunObject locates the object a run wrote under the location a promoted
// table was derived from, whatever its extension.
func (m *Mover) findRunObject(ctx context.Context, ref orchestration.TableRef, runKey int64) (string, error) {
	dir := path.Clean(ref.Table.Location())
	key := strconv.FormatInt(runKey, 10)
	names, err := m.store.List(ctx, path.Join(dir, key))
	if err != nil {
		return "", err
	}
	for _, name := range names {
		base := path.Base(name)
		if path.Dir(name) == dir && strings.TrimSuffix(base, path.Ext(base)) == key {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: run %s under %s", ErrObjectNotFound, key, dir)
}

func (m *Mover) Ingest(ctx context.Context, ref orchestration.TableRef, runKey int64) (orchestration.Outcome, error) {
	src := m.landingObject(ref)
	return m.copy(ctx, src, runObject(ref, runKey, path.Ext(src)))
}

func (m *Mover) Enrich(ctx context.Context, ref orchestration.TableRef, runKey int64) (orchestration.Outcome, error) {
	src, err := m.findRunObject(ctx, ref, runKey)
	if err != nil {
		return orchestration.Outcome{}, err
	}
	return m.copy(ctx, src, runObject(ref, runKey, path.Ext(src)))
}

func (m *Mover) copy(ctx context.Context, src, dst string) (orchestration.Outcome, error) {
	reader, err := m.store.Download(ctx, src)
	if err != nil {
		return orchestration.Outcome{}, err
	}
	defer reader.Close()

	counter := &recordCounter{}
	if err := m.store.Upload(ctx, dst, &countingReader{r: reader, counter: counter}, -1); err != nil {
		return orchestration.Outcome{}, err
	}

	rows := counter.records()
	if strings.EqualFold(path.Ext(src), ".csv") && rows > 0 {
		rows-- // header
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"from": src,
		"to":   dst,
		"rows": rows,
	}).Debug("Copied object")
	return orchestration.Outcome{Success: true, Rows: rows}, nil
}
