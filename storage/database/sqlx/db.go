// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx and squirrel.
// Guarded units run in one transaction holding a transaction-level advisory lock per key.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/schedule"
	"github.com/trezcool/tutorias/core/tutoring"
	"github.com/trezcool/tutorias/core/user"
)

// postgres error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqExclusionViolation  = "23P01"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	DB struct {
		db *sqlx.DB
	}

	// executor is either the pool or the transaction of the current unit.
	executor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	repo struct {
		exec executor
	}
)

func NewDB(db *sql.DB) *DB {
	return &DB{db: sqlx.NewDb(db, "postgres")}
}

// mapErr turns driver errors into the core error taxonomy.
func mapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return core.NewDuplicateError(msg + ": " + pqErr.Detail)
		case pqExclusionViolation:
			return core.NewConflictError(pqErr.Constraint, msg+": "+pqErr.Detail)
		case pqForeignKeyViolation:
			return core.NewNotFoundError(pqErr.Table + " reference")
		case pqCheckViolation:
			return core.NewValidationError(pqErr, core.FieldError{Field: pqErr.Column, Error: pqErr.Message})
		}
	}
	return core.NewStorageError(err, msg)
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

// get runs the query built by b and scans the single row into dest; sql.ErrNoRows becomes notFound.
func (r *repo) get(ctx context.Context, dest interface{}, b sq.Sqlizer, notFound error, msg string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = r.exec.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		return mapErr(err, msg)
	}
	return nil
}

func (r *repo) selectRows(ctx context.Context, dest interface{}, b sq.Sqlizer, msg string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return mapErr(r.exec.SelectContext(ctx, dest, query, args...), msg)
}

func (r *repo) execute(ctx context.Context, b sq.Sqlizer, msg string) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := r.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err, msg)
	}
	return n, nil
}

func (db *DB) atomic(ctx context.Context, keys []core.LockKey, fn func(r *repo) error) error {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStorageError(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	for _, key := range core.SortKeys(keys) {
		if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", string(key)); err != nil {
			return core.NewStorageError(err, "acquiring lock "+string(key))
		}
	}

	if err = fn(&repo{exec: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return core.NewStorageError(err, "committing")
	}
	return nil
}

func (db *DB) repo() *repo {
	return &repo{exec: db.db}
}

type (
	scheduleStore struct {
		*repo
		db *DB
	}
	enrollmentStore struct {
		*repo
		db *DB
	}
	paymentStore struct {
		*repo
		db *DB
	}
)

var (
	_ schedule.Store   = scheduleStore{}   // interface compliance check
	_ enrollment.Store = enrollmentStore{} // interface compliance check
	_ payment.Store    = paymentStore{}    // interface compliance check
)

func NewScheduleStore(db *DB) schedule.Store {
	return scheduleStore{repo: db.repo(), db: db}
}

func (s scheduleStore) Atomic(ctx context.Context, keys []core.LockKey, fn func(repo schedule.Repository) error) error {
	return s.db.atomic(ctx, keys, func(r *repo) error { return fn(r) })
}

func NewEnrollmentStore(db *DB) enrollment.Store {
	return enrollmentStore{repo: db.repo(), db: db}
}

func (s enrollmentStore) Atomic(ctx context.Context, keys []core.LockKey, fn func(repo enrollment.Repository) error) error {
	return s.db.atomic(ctx, keys, func(r *repo) error { return fn(r) })
}

func NewPaymentStore(db *DB) payment.Store {
	return paymentStore{repo: db.repo(), db: db}
}

func (s paymentStore) Atomic(ctx context.Context, keys []core.LockKey, fn func(repo payment.Repository) error) error {
	return s.db.atomic(ctx, keys, func(r *repo) error { return fn(r) })
}

func NewTutoringRepository(db *DB) tutoring.Repository {
	return db.repo()
}

func NewUserRepository(db *DB) user.Repository {
	return db.repo()
}
