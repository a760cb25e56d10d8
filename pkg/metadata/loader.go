package metadata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Store is the catalog surface used by the loader. Every Find returns an
// errs.NotFound error when the row is absent.
type Store interface {
	FindSource(ctx context.Context, name string, connectionDetails *string) (models.Source, error)
	CreateSource(ctx context.Context, in models.SourceCreate) (models.Source, error)
	FindStage(ctx context.Context, name string) (models.Stage, error)
	CreateStage(ctx context.Context, in models.StageCreate) (models.Stage, error)
	FindDataTypeMapping(ctx context.Context, sourceID int64, sourceDataType string) (models.DataTypeMapping, error)
	CreateDataTypeMapping(ctx context.Context, in models.DataTypeMappingCreate) (models.DataTypeMapping, error)
	FindTable(ctx context.Context, stageID, sourceID int64, name string) (models.Table, error)
	CreateTable(ctx context.Context, in models.TableCreate) (models.Table, error)
	FindColumn(ctx context.Context, tableID int64, name string) (models.Column, error)
	CreateColumn(ctx context.Context, in models.ColumnCreate) (models.Column, error)
}

// Kinds in load order.
const (
	KindSources          = "sources"
	KindStages           = "stages"
	KindDataTypeMappings = "data_type_mappings"
	KindTables           = "tables"
	KindColumns          = "columns"
)

// Count is the tally of one kind.
type Count struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Summary tallies a load per kind.
type Summary map[string]*Count

func (s Summary) count(kind string) *Count {
	if s[kind] == nil {
		s[kind] = &Count{}
	}
	return s[kind]
}

func (s Summary) String() string {
	kinds := make([]string, 0, len(s))
	for kind := range s {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	lines := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		lines = append(lines, fmt.Sprintf("%-20s created=%d skipped=%d", kind, s[kind].Created, s[kind].Skipped))
	}
	return strings.Join(lines, "\n")
}

type Loader struct {
	store  Store
	logger ectologger.Logger
}

func NewLoader(store Store, logger ectologger.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// Load creates the rows of doc that do not exist yet. It stops at the first
// failure; callers wanting all-or-nothing run it inside a transaction.
func (l *Loader) Load(ctx context.Context, doc *Document) (Summary, error) {
	summary := Summary{}
	for _, kind := range []string{KindSources, KindStages, KindDataTypeMappings, KindTables, KindColumns} {
		summary.count(kind)
	}

	for _, in := range doc.Sources {
		_, created, err := ensure(
			func() (models.Source, error) { return l.store.FindSource(ctx, in.Name, in.ConnectionDetails) },
			func() (models.Source, error) { return l.store.CreateSource(ctx, in) },
		)
		if err != nil {
			return summary, fmt.Errorf("source %q: %w", in.Name, err)
		}
		tally(summary, KindSources, created)
	}

	for _, in := range doc.Stages {
		_, created, err := ensure(
			func() (models.Stage, error) { return l.store.FindStage(ctx, in.Name) },
			func() (models.Stage, error) { return l.store.CreateStage(ctx, in) },
		)
		if err != nil {
			return summary, fmt.Errorf("stage %q: %w", in.Name, err)
		}
		tally(summary, KindStages, created)
	}

	for _, entry := range doc.DataTypeMappings {
		source, err := l.findSource(ctx, doc, entry.SourceRef)
		if err != nil {
			return summary, fmt.Errorf("data type mapping %q: %w", entry.SourceDataType, err)
		}
		in := entry.DataTypeMappingCreate
		in.SourceID = source.ID
		_, created, err := ensure(
			func() (models.DataTypeMapping, error) {
				return l.store.FindDataTypeMapping(ctx, source.ID, in.SourceDataType)
			},
			func() (models.DataTypeMapping, error) { return l.store.CreateDataTypeMapping(ctx, in) },
		)
		if err != nil {
			return summary, fmt.Errorf("data type mapping %q: %w", in.SourceDataType, err)
		}
		tally(summary, KindDataTypeMappings, created)
	}

	for _, entry := range doc.Tables {
		if err := l.loadTable(ctx, doc, summary, entry); err != nil {
			return summary, fmt.Errorf("table %q: %w", entry.Name, err)
		}
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"sources": summary[KindSources].Created,
		"stages":  summary[KindStages].Created,
		"tables":  summary[KindTables].Created,
		"columns": summary[KindColumns].Created,
	}).Info("Catalog loaded")
	return summary, nil
}

// findSource resolves ref. Without connection details the document's own
// declaration of the name supplies them; a name declared more than once is
// ambiguous.
func (l *Loader) findSource(ctx context.Context, doc *Document, ref SourceRef) (models.Source, error) {
	conn := ref.SourceConnectionDetails
	if conn == nil {
		declared := 0
		for _, in := range doc.Sources {
			if in.Name == ref.Source {
				declared++
				conn = in.ConnectionDetails
			}
		}
		if declared > 1 {
			return models.Source{}, errs.Validation("source %q is declared %d times; set source_connection_details", ref.Source, declared)
		}
	}
	return l.store.FindSource(ctx, ref.Source, conn)
}

func (l *Loader) loadTable(ctx context.Context, doc *Document, summary Summary, entry Table) error {
	source, err := l.findSource(ctx, doc, entry.SourceRef)
	if err != nil {
		return err
	}
	stage, err := l.store.FindStage(ctx, entry.Stage)
	if err != nil {
		return err
	}

	in := entry.TableCreate
	in.SourceID = source.ID
	in.StageID = stage.ID
	table, created, err := ensure(
		func() (models.Table, error) { return l.store.FindTable(ctx, stage.ID, source.ID, in.Name) },
		func() (models.Table, error) { return l.store.CreateTable(ctx, in) },
	)
	if err != nil {
		return err
	}
	tally(summary, KindTables, created)

	for _, col := range entry.Columns {
		colIn := col.ColumnCreate
		colIn.TableID = table.ID
		if col.DataTypeMapping != "" {
			mapping, err := l.store.FindDataTypeMapping(ctx, source.ID, col.DataTypeMapping)
			if err != nil {
				return fmt.Errorf("column %q: %w", col.Name, err)
			}
			colIn.DataTypeMappingID = &mapping.ID
		}
		_, created, err := ensure(
			func() (models.Column, error) { return l.store.FindColumn(ctx, table.ID, colIn.Name) },
			func() (models.Column, error) { return l.store.CreateColumn(ctx, colIn) },
		)
		if err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
		tally(summary, KindColumns, created)
	}
	return nil
}

// ensure returns the existing row from find, or the row from create when find
// reports NotFound.
func ensure[T any](find, create func() (T, error)) (T, bool, error) {
	existing, err := find()
	if err == nil {
		return existing, false, nil
	}
	if !errs.IsNotFound(err) {
		return existing, false, err
	}
	created, err := create()
	return created, err == nil, err
}

func tally(summary Summary, kind string, created bool) {
	if created {
		summary.count(kind).Created++
		return
	}
	summary.count(kind).Skipped++
}
