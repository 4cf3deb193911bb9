package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mediatheque/backend/internal/db"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapPgError converts well-known constraint violations into the
// repository sentinel errors, wrapping anything else.
func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// withTx runs fn inside a single transaction acquired from the pool.
// Every multi-statement write (entity update plus association rewrite,
// explicit cascade deletes) goes through here so a mid-operation failure
// rolls the whole operation back.
func withTx(ctx context.Context, pool db.Pool, fn func(tx pgx.Tx) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// whereClause assembles a WHERE fragment from the collected conditions.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// pageClause appends deterministic ordering plus LIMIT/OFFSET. A
// non-positive limit means the full matching set, used when recomputing
// visible totals.
func pageClause(orderBy string, limit, offset int, args *[]any) string {
	clause := " ORDER BY " + orderBy
	if limit > 0 {
		*args = append(*args, limit, offset)
		clause += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(*args)-1, len(*args))
	}
	return clause
}
