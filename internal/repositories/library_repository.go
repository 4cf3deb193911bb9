package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mediatheque/backend/internal/db"
	"github.com/mediatheque/backend/internal/models"
)

// LibraryFilter narrows library searches. When RestrictVisible is set the
// store query itself is narrowed to public rows plus, when ViewerID is
// non-zero, rows owned by the viewer; trusted/admin callers leave it
// unset and see everything.
type LibraryFilter struct {
	Query           string
	OwnerID         int
	Visibility      string
	RestrictVisible bool
	ViewerID        int
	Limit           int
	Offset          int
}

// PostgresLibraryRepository provides PostgreSQL-backed persistence for libraries.
type PostgresLibraryRepository struct {
	pool db.Pool
}

// NewPostgresLibraryRepository constructs a library repository backed by PostgreSQL.
func NewPostgresLibraryRepository(pool db.Pool) *PostgresLibraryRepository {
	return &PostgresLibraryRepository{pool: pool}
}

const libraryColumns = `id, owner_id, name, description, visibility, created_at`

func scanLibrary(row pgx.Row) (models.Library, error) {
	var lib models.Library
	err := row.Scan(&lib.ID, &lib.OwnerID, &lib.Name, &lib.Description, &lib.Visibility, &lib.CreatedAt)
	return lib, err
}

// Create persists a new library and returns its generated id.
func (r *PostgresLibraryRepository) Create(ctx context.Context, lib models.Library) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var id int
	err = conn.QueryRow(ctx, `
        INSERT INTO libraries (owner_id, name, description, visibility, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, lib.OwnerID, lib.Name, lib.Description, lib.Visibility, lib.CreatedAt).Scan(&id)
	if err != nil {
		return 0, mapPgError("insert library", err)
	}
	return id, nil
}

// FindByID fetches a library by primary key.
func (r *PostgresLibraryRepository) FindByID(ctx context.Context, id int) (models.Library, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Library{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	lib, err := scanLibrary(conn.QueryRow(ctx, `SELECT `+libraryColumns+` FROM libraries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Library{}, ErrNotFound
		}
		return models.Library{}, fmt.Errorf("select library by id: %w", err)
	}
	return lib, nil
}

// ListByOwner returns all libraries owned by the given user.
func (r *PostgresLibraryRepository) ListByOwner(ctx context.Context, ownerID int) ([]models.Library, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+libraryColumns+` FROM libraries WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query libraries by owner: %w", err)
	}
	defer rows.Close()

	return collectLibraries(rows)
}

// Update rewrites the mutable fields of an existing library record.
func (r *PostgresLibraryRepository) Update(ctx context.Context, lib models.Library) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE libraries
        SET owner_id = $2, name = $3, description = $4, visibility = $5
        WHERE id = $1
    `, lib.ID, lib.OwnerID, lib.Name, lib.Description, lib.Visibility)
	if err != nil {
		return mapPgError("update library", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a library and, in the same transaction, its media and
// their association rows.
func (r *PostgresLibraryRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		libraryMedia := `SELECT id FROM media WHERE library_id = $1`

		if _, err := tx.Exec(ctx, `DELETE FROM media_persons WHERE media_id IN (`+libraryMedia+`)`, id); err != nil {
			return fmt.Errorf("delete cast rows: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM media_genres WHERE media_id IN (`+libraryMedia+`)`, id); err != nil {
			return fmt.Errorf("delete genre links: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM media WHERE library_id = $1`, id); err != nil {
			return fmt.Errorf("delete media: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM libraries WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete library: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Search returns libraries matching the filter, name or description
// matched case-insensitively. A non-positive limit returns the full
// matching set.
func (r *PostgresLibraryRepository) Search(ctx context.Context, f LibraryFilter) ([]models.Library, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	conds, args := libraryConditions(f)
	sql := `SELECT ` + libraryColumns + ` FROM libraries` + whereClause(conds) + pageClause("id", f.Limit, f.Offset, &args)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query libraries: %w", err)
	}
	defer rows.Close()

	return collectLibraries(rows)
}

// Count returns the number of libraries matching the filter.
func (r *PostgresLibraryRepository) Count(ctx context.Context, f LibraryFilter) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	conds, args := libraryConditions(f)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM libraries`+whereClause(conds), args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count libraries: %w", err)
	}
	return total, nil
}

func libraryConditions(f LibraryFilter) ([]string, []any) {
	var conds []string
	var args []any

	if f.RestrictVisible {
		if f.ViewerID != 0 {
			args = append(args, models.VisibilityPublic, f.ViewerID)
			conds = append(conds, fmt.Sprintf("(visibility = $%d OR owner_id = $%d)", len(args)-1, len(args)))
		} else {
			args = append(args, models.VisibilityPublic)
			conds = append(conds, fmt.Sprintf("visibility = $%d", len(args)))
		}
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.OwnerID != 0 {
		args = append(args, f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Visibility != "" {
		args = append(args, f.Visibility)
		conds = append(conds, fmt.Sprintf("visibility = $%d", len(args)))
	}
	return conds, args
}

func collectLibraries(rows pgx.Rows) ([]models.Library, error) {
	var libs []models.Library
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		libs = append(libs, lib)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate libraries: %w", err)
	}
	return libs, nil
}
