package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errs"
)

// List paging defaults.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Repository provides the database handle and error translation shared by
// every repository.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}

// Q returns the transaction carried by ctx, or the database.
func (r *Repository) Q(ctx context.Context) database.Querier {
	return r.db.Executor(ctx)
}

// fail logs err and returns the taxonomy error for it. Constraint errors map
// to 409/400, anything else is hidden behind a 500 with message.
func (r *Repository) fail(ctx context.Context, err error, entity, message string, fields map[string]any) error {
	if translated, ok := errs.FromPostgres(err, entity); ok {
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Warn(message)
		return translated
	}
	r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error(message)
	return errs.Internal("%s", message)
}

// NormalizePage applies the list defaults and bounds.
func NormalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
