package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mediatheque/backend/internal/db"
	"github.com/mediatheque/backend/internal/models"
)

// TaxonomyFilter narrows genre/franchise/person searches by a
// case-insensitive name query.
type TaxonomyFilter struct {
	Query  string
	Limit  int
	Offset int
}

// PostgresGenreRepository provides PostgreSQL-backed persistence for genres.
type PostgresGenreRepository struct {
	pool db.Pool
}

// NewPostgresGenreRepository constructs a genre repository backed by PostgreSQL.
func NewPostgresGenreRepository(pool db.Pool) *PostgresGenreRepository {
	return &PostgresGenreRepository{pool: pool}
}

// Create persists a genre. A duplicate name yields ErrConflict.
func (r *PostgresGenreRepository) Create(ctx context.Context, genre models.Genre) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var id int
	if err := conn.QueryRow(ctx, `INSERT INTO genres (name) VALUES ($1) RETURNING id`, genre.Name).Scan(&id); err != nil {
		return 0, mapPgError("insert genre", err)
	}
	return id, nil
}

// FindByID fetches a genre by primary key.
func (r *PostgresGenreRepository) FindByID(ctx context.Context, id int) (models.Genre, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Genre{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var genre models.Genre
	err = conn.QueryRow(ctx, `SELECT id, name FROM genres WHERE id = $1`, id).Scan(&genre.ID, &genre.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Genre{}, ErrNotFound
		}
		return models.Genre{}, fmt.Errorf("select genre by id: %w", err)
	}
	return genre, nil
}

// FindByIDs returns the subset of the requested genres that exist.
func (r *PostgresGenreRepository) FindByIDs(ctx context.Context, ids []int) ([]models.Genre, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT id, name FROM genres WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query genres by ids: %w", err)
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genres: %w", err)
	}
	return genres, nil
}

// Update renames a genre. Uniqueness is enforced again here: a rename
// onto an existing name yields ErrConflict.
func (r *PostgresGenreRepository) Update(ctx context.Context, genre models.Genre) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE genres SET name = $2 WHERE id = $1`, genre.ID, genre.Name)
	if err != nil {
		return mapPgError("update genre", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a genre along with its media links in one transaction.
func (r *PostgresGenreRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM media_genres WHERE genre_id = $1`, id); err != nil {
			return fmt.Errorf("delete genre links: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM genres WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete genre: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Search returns genres whose name matches the query.
func (r *PostgresGenreRepository) Search(ctx context.Context, f TaxonomyFilter) ([]models.Genre, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	conds, args := nameConditions(f.Query, "name")
	sql := `SELECT id, name FROM genres` + whereClause(conds) + pageClause("id", f.Limit, f.Offset, &args)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query genres: %w", err)
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genres: %w", err)
	}
	return genres, nil
}

// Count returns the number of genres matching the query.
func (r *PostgresGenreRepository) Count(ctx context.Context, f TaxonomyFilter) (int, error) {
	return countRows(ctx, r.pool, `genres`, nameConditionsPair(f.Query, "name"))
}

// PostgresFranchiseRepository provides PostgreSQL-backed persistence for franchises.
type PostgresFranchiseRepository struct {
	pool db.Pool
}

// NewPostgresFranchiseRepository constructs a franchise repository backed by PostgreSQL.
func NewPostgresFranchiseRepository(pool db.Pool) *PostgresFranchiseRepository {
	return &PostgresFranchiseRepository{pool: pool}
}

// Create persists a franchise and returns its generated id.
func (r *PostgresFranchiseRepository) Create(ctx context.Context, franchise models.Franchise) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var id int
	err = conn.QueryRow(ctx, `
        INSERT INTO franchises (name, description) VALUES ($1, $2) RETURNING id
    `, franchise.Name, franchise.Description).Scan(&id)
	if err != nil {
		return 0, mapPgError("insert franchise", err)
	}
	return id, nil
}

// FindByID fetches a franchise by primary key.
func (r *PostgresFranchiseRepository) FindByID(ctx context.Context, id int) (models.Franchise, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Franchise{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var f models.Franchise
	err = conn.QueryRow(ctx, `SELECT id, name, description FROM franchises WHERE id = $1`, id).
		Scan(&f.ID, &f.Name, &f.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Franchise{}, ErrNotFound
		}
		return models.Franchise{}, fmt.Errorf("select franchise by id: %w", err)
	}
	return f, nil
}

// Update rewrites a franchise record.
func (r *PostgresFranchiseRepository) Update(ctx context.Context, franchise models.Franchise) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE franchises SET name = $2, description = $3 WHERE id = $1
    `, franchise.ID, franchise.Name, franchise.Description)
	if err != nil {
		return mapPgError("update franchise", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a franchise. Its media are kept and orphaned: the
// franchise reference is nulled in the same transaction (deleting a
// franchise never deletes media).
func (r *PostgresFranchiseRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE media SET franchise_id = NULL, franchise_order = NULL WHERE franchise_id = $1`, id); err != nil {
			return fmt.Errorf("orphan franchise media: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM franchises WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete franchise: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Search returns franchises whose name or description matches the query.
func (r *PostgresFranchiseRepository) Search(ctx context.Context, f TaxonomyFilter) ([]models.Franchise, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var conds []string
	var args []any
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	sql := `SELECT id, name, description FROM franchises` + whereClause(conds) + pageClause("id", f.Limit, f.Offset, &args)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query franchises: %w", err)
	}
	defer rows.Close()

	var franchises []models.Franchise
	for rows.Next() {
		var fr models.Franchise
		if err := rows.Scan(&fr.ID, &fr.Name, &fr.Description); err != nil {
			return nil, fmt.Errorf("scan franchise: %w", err)
		}
		franchises = append(franchises, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate franchises: %w", err)
	}
	return franchises, nil
}

// Count returns the number of franchises matching the query.
func (r *PostgresFranchiseRepository) Count(ctx context.Context, f TaxonomyFilter) (int, error) {
	var conds []string
	var args []any
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	return countRows(ctx, r.pool, `franchises`, condPair{conds: conds, args: args})
}

// PostgresPersonRepository provides PostgreSQL-backed persistence for persons.
type PostgresPersonRepository struct {
	pool db.Pool
}

// NewPostgresPersonRepository constructs a person repository backed by PostgreSQL.
func NewPostgresPersonRepository(pool db.Pool) *PostgresPersonRepository {
	return &PostgresPersonRepository{pool: pool}
}

// Create persists a person and returns its generated id.
func (r *PostgresPersonRepository) Create(ctx context.Context, person models.Person) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var id int
	err = conn.QueryRow(ctx, `
        INSERT INTO persons (name, birthdate) VALUES ($1, $2) RETURNING id
    `, person.Name, person.Birthdate).Scan(&id)
	if err != nil {
		return 0, mapPgError("insert person", err)
	}
	return id, nil
}

// FindByID fetches a person by primary key.
func (r *PostgresPersonRepository) FindByID(ctx context.Context, id int) (models.Person, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Person{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var p models.Person
	err = conn.QueryRow(ctx, `SELECT id, name, birthdate FROM persons WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Birthdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Person{}, ErrNotFound
		}
		return models.Person{}, fmt.Errorf("select person by id: %w", err)
	}
	return p, nil
}

// Update rewrites a person record.
func (r *PostgresPersonRepository) Update(ctx context.Context, person models.Person) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE persons SET name = $2, birthdate = $3 WHERE id = $1
    `, person.ID, person.Name, person.Birthdate)
	if err != nil {
		return mapPgError("update person", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a person and their cast rows in one transaction,
// leaving the associated media intact.
func (r *PostgresPersonRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM media_persons WHERE person_id = $1`, id); err != nil {
			return fmt.Errorf("delete cast rows: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Search returns persons whose name matches the query.
func (r *PostgresPersonRepository) Search(ctx context.Context, f TaxonomyFilter) ([]models.Person, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	conds, args := nameConditions(f.Query, "name")
	sql := `SELECT id, name, birthdate FROM persons` + whereClause(conds) + pageClause("id", f.Limit, f.Offset, &args)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Birthdate); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}

// Count returns the number of persons matching the query.
func (r *PostgresPersonRepository) Count(ctx context.Context, f TaxonomyFilter) (int, error) {
	return countRows(ctx, r.pool, `persons`, nameConditionsPair(f.Query, "name"))
}

// Filmography returns the cast rows of a person joined with their media,
// owners resolved so callers can apply the visibility check.
func (r *PostgresPersonRepository) Filmography(ctx context.Context, personID int) ([]models.FilmographyEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+mediaColumns+`, mp.role, mp.character_name`+mediaFrom+`
        JOIN media_persons mp ON mp.media_id = m.id
        WHERE mp.person_id = $1
        ORDER BY m.id, mp.role
    `, personID)
	if err != nil {
		return nil, fmt.Errorf("query filmography: %w", err)
	}
	defer rows.Close()

	var entries []models.FilmographyEntry
	for rows.Next() {
		var e models.FilmographyEntry
		err := rows.Scan(&e.Media.ID, &e.Media.Title, &e.Media.Type, &e.Media.ReleaseYear, &e.Media.Duration,
			&e.Media.Synopsis, &e.Media.CoverImageURL, &e.Media.TrailerURL, &e.Media.LibraryID,
			&e.Media.FranchiseID, &e.Media.FranchiseOrder, &e.Media.Visibility, &e.Media.CreatedAt,
			&e.Media.OwnerID, &e.Media.OwnerName, &e.Role, &e.CharacterName)
		if err != nil {
			return nil, fmt.Errorf("scan filmography entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filmography: %w", err)
	}
	return entries, nil
}

type condPair struct {
	conds []string
	args  []any
}

func nameConditions(query, column string) ([]string, []any) {
	if query == "" {
		return nil, nil
	}
	return []string{fmt.Sprintf("%s ILIKE $1", column)}, []any{"%" + query + "%"}
}

func nameConditionsPair(query, column string) condPair {
	conds, args := nameConditions(query, column)
	return condPair{conds: conds, args: args}
}

func countRows(ctx context.Context, pool db.Pool, table string, cp condPair) (int, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+whereClause(cp.conds), cp.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}
