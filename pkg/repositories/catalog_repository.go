package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// Creatable is a create projection. Columns maps column names to the values
// of a new row.
type Creatable interface {
	Columns() map[string]any
}

// Patchable is an update projection. Changes holds only the fields the
// caller set.
type Patchable interface {
	Changes() map[string]any
}

// Entity names the table behind a catalog entity and how its rows are
// referred to in messages.
type Entity struct {
	Table    string
	Singular string
}

// CatalogRepository implements create, read, update and soft or hard delete
// for one catalog entity.
type CatalogRepository[E any, C Creatable, U Patchable] struct {
	*Repository
	entity    Entity
	structure *database.Struct
}

// NewCatalogRepository creates a repository for entity E stored in entity.Table.
func NewCatalogRepository[E any, C Creatable, U Patchable](db database.DB, logger ectologger.Logger, entity Entity) *CatalogRepository[E, C, U] {
	return &CatalogRepository[E, C, U]{
		Repository: NewRepository(db, logger),
		entity:     entity,
		structure:  database.NewStruct(new(E)),
	}
}

// Entity returns the entity descriptor.
func (r *CatalogRepository[E, C, U]) Entity() Entity {
	return r.entity
}

func (r *CatalogRepository[E, C, U]) span(ctx context.Context, op string) (context.Context, func()) {
	ctx, span := tracing.StartSpan(ctx, "CatalogRepository."+op)
	span.SetAttributes(attribute.String("db.sql.table", r.entity.Table))
	return ctx, func() { span.End() }
}

func (r *CatalogRepository[E, C, U]) notFound(id int64) error {
	return errs.NotFound("%s with ID: %d not found.", r.entity.Singular, id)
}

// Create validates in and inserts a new active row.
func (r *CatalogRepository[E, C, U]) Create(ctx context.Context, in C) (E, error) {
	ctx, end := r.span(ctx, "Create")
	defer end()

	var entity E
	if _, err := validation.Validate(in); err != nil {
		return entity, err
	}

	values := in.Columns()
	cols := sortedKeys(values)
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		args = append(args, values[col])
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(r.entity.Table).Cols(cols...).Values(args...).Returning("*")

	query, queryArgs := ib.Build()
	if err := r.Q(ctx).QueryRowxContext(ctx, query, queryArgs...).StructScan(&entity); err != nil {
		return entity, r.fail(ctx, err, r.entity.Singular, "failed to create "+r.entity.Singular, map[string]any{
			"table": r.entity.Table,
		})
	}

	r.logger.WithContext(ctx).Debugf("Created %s", r.entity.Table)
	return entity, nil
}

// GetByID returns the row with id whether or not it is active.
func (r *CatalogRepository[E, C, U]) GetByID(ctx context.Context, id int64) (E, error) {
	ctx, end := r.span(ctx, "GetByID")
	defer end()

	var entity E
	sb := r.structure.SelectFrom(r.entity.Table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	err := r.Q(ctx).GetContext(ctx, &entity, query, args...)
	if isNoRows(err) {
		return entity, r.notFound(id)
	}
	if err != nil {
		return entity, r.fail(ctx, err, r.entity.Singular, "failed to get "+r.entity.Singular+" by ID", map[string]any{
			"id": id,
		})
	}

	r.logger.WithContext(ctx).Debugf("Retrieved %s by ID: %d", r.entity.Table, id)
	return entity, nil
}

// List returns one page of rows in id order. An empty page is NotFound.
func (r *CatalogRepository[E, C, U]) List(ctx context.Context, offset, limit int) ([]E, error) {
	ctx, end := r.span(ctx, "List")
	defer end()

	offset, limit = NormalizePage(offset, limit)

	sb := r.structure.SelectFrom(r.entity.Table)
	sb.OrderBy("id").Asc()
	sb.Page(offset, limit)

	query, args := sb.Build()
	var entities []E
	if err := r.Q(ctx).SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, r.fail(ctx, err, r.entity.Singular, "failed to list "+r.entity.Table, map[string]any{
			"offset": offset,
			"limit":  limit,
		})
	}
	if len(entities) == 0 {
		return nil, errs.NotFound("no %s found.", r.entity.Table)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"count": len(entities),
	}).Debugf("Listed %s", r.entity.Table)
	return entities, nil
}

// Update applies the fields set in patch. An empty patch returns the row
// unchanged.
func (r *CatalogRepository[E, C, U]) Update(ctx context.Context, id int64, patch U) (E, error) {
	ctx, end := r.span(ctx, "Update")
	defer end()

	var entity E
	if _, err := validation.Validate(patch); err != nil {
		return entity, err
	}

	changes := patch.Changes()
	if len(changes) == 0 {
		return r.GetByID(ctx, id)
	}

	ub := database.NewUpdateBuilder()
	assignments := make([]string, 0, len(changes)+1)
	for _, col := range sortedKeys(changes) {
		assignments = append(assignments, ub.Assign(col, changes[col]))
	}
	assignments = append(assignments, ub.Assign("datetime_updated", database.Now()))
	ub.Update(r.entity.Table).Set(assignments...).Where(ub.Equal("id", id))
	ub.Returning("*")

	query, args := ub.Build()
	err := r.Q(ctx).QueryRowxContext(ctx, query, args...).StructScan(&entity)
	if isNoRows(err) {
		return entity, r.notFound(id)
	}
	if err != nil {
		return entity, r.fail(ctx, err, r.entity.Singular, "failed to update "+r.entity.Singular, map[string]any{
			"id": id,
		})
	}

	r.logger.WithContext(ctx).Debugf("Updated %s %d", r.entity.Table, id)
	return entity, nil
}

// Delete marks the row inactive, or removes it when hard is set.
func (r *CatalogRepository[E, C, U]) Delete(ctx context.Context, id int64, hard bool) error {
	ctx, end := r.span(ctx, "Delete")
	defer end()

	var (
		query string
		args  []any
	)
	if hard {
		dlb := database.NewDeleteBuilder()
		dlb.DeleteFrom(r.entity.Table).Where(dlb.Equal("id", id))
		query, args = dlb.Build()
	} else {
		ub := database.NewUpdateBuilder()
		ub.Update(r.entity.Table).
			Set(ub.Assign("is_active", false), ub.Assign("datetime_updated", database.Now())).
			Where(ub.Equal("id", id))
		query, args = ub.Build()
	}

	result, err := r.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, err, r.entity.Singular, "failed to delete "+r.entity.Singular, map[string]any{
			"id":   id,
			"hard": hard,
		})
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return r.fail(ctx, err, r.entity.Singular, "failed to delete "+r.entity.Singular, map[string]any{
			"id":   id,
			"hard": hard,
		})
	}
	if affected == 0 {
		return r.notFound(id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":   id,
		"hard": hard,
	}).Debugf("Deleted %s", r.entity.Table)
	return nil
}

// FindBy returns the rows whose columns equal every value in where, in id
// order. No match yields an empty slice.
func (r *CatalogRepository[E, C, U]) FindBy(ctx context.Context, where map[string]any) ([]E, error) {
	ctx, end := r.span(ctx, "FindBy")
	defer end()

	sb := r.structure.SelectFrom(r.entity.Table)
	for _, col := range sortedKeys(where) {
		if where[col] == nil {
			sb.Where(sb.IsNull(col))
			continue
		}
		sb.Where(sb.Equal(col, where[col]))
	}
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	entities := []E{}
	if err := r.Q(ctx).SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, r.fail(ctx, err, r.entity.Singular, "failed to find "+r.entity.Table, where)
	}
	return entities, nil
}

// FindOneBy returns the first row matching where, or NotFound. A nil value
// in where matches NULL.
func (r *CatalogRepository[E, C, U]) FindOneBy(ctx context.Context, where map[string]any) (E, error) {
	var entity E
	entities, err := r.FindBy(ctx, where)
	if err != nil {
		return entity, err
	}
	if len(entities) == 0 {
		return entity, errs.NotFound("%s matching %s not found.", r.entity.Singular, describe(where))
	}
	return entities[0], nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func describe(where map[string]any) string {
	parts := make([]string, 0, len(where))
	for _, col := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", col, where[col]))
	}
	return strings.Join(parts, ", ")
}
