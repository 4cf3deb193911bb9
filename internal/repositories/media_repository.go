package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mediatheque/backend/internal/db"
	"github.com/mediatheque/backend/internal/models"
)

// MediaFilter narrows media searches. Zero-valued fields are absent.
type MediaFilter struct {
	Query       string
	LibraryID   int
	Visibility  string
	GenreID     int
	PersonID    int
	FranchiseID int
	Limit       int
	Offset      int
}

// PostgresMediaRepository provides PostgreSQL-backed persistence for
// media and their genre/cast associations.
type PostgresMediaRepository struct {
	pool db.Pool
}

// NewPostgresMediaRepository constructs a media repository backed by PostgreSQL.
func NewPostgresMediaRepository(pool db.Pool) *PostgresMediaRepository {
	return &PostgresMediaRepository{pool: pool}
}

// mediaColumns always joins through libraries (and users) so the
// effective owner travels with every loaded row.
const mediaColumns = `m.id, m.title, m.type, m.release_year, m.duration, m.synopsis,
       m.cover_image_url, m.trailer_url, m.library_id, m.franchise_id,
       m.franchise_order, m.visibility, m.created_at, l.owner_id, u.username`

const mediaFrom = ` FROM media m
        JOIN libraries l ON l.id = m.library_id
        JOIN users u ON u.id = l.owner_id`

func scanMedia(row pgx.Row) (models.Media, error) {
	var m models.Media
	err := row.Scan(&m.ID, &m.Title, &m.Type, &m.ReleaseYear, &m.Duration, &m.Synopsis,
		&m.CoverImageURL, &m.TrailerURL, &m.LibraryID, &m.FranchiseID,
		&m.FranchiseOrder, &m.Visibility, &m.CreatedAt, &m.OwnerID, &m.OwnerName)
	return m, err
}

// Create persists a media row together with its initial genre links and
// cast entries in one transaction. Returns the generated id. A dangling
// genre or person id surfaces as ErrNotFound and rolls everything back.
func (r *PostgresMediaRepository) Create(ctx context.Context, media models.Media, genreIDs []int, cast []models.CastEntry) (int, error) {
	var id int
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO media (title, type, release_year, duration, synopsis, cover_image_url,
                               trailer_url, library_id, franchise_id, franchise_order, visibility, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
            RETURNING id
        `, media.Title, media.Type, media.ReleaseYear, media.Duration, media.Synopsis, media.CoverImageURL,
			media.TrailerURL, media.LibraryID, media.FranchiseID, media.FranchiseOrder, media.Visibility, media.CreatedAt).Scan(&id)
		if err != nil {
			return mapPgError("insert media", err)
		}

		if err := insertGenreLinks(ctx, tx, id, genreIDs); err != nil {
			return err
		}
		return insertCastEntries(ctx, tx, id, cast)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByID fetches a media with its owner, genres and cast resolved.
func (r *PostgresMediaRepository) FindByID(ctx context.Context, id int) (models.Media, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Media{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	media, err := scanMedia(conn.QueryRow(ctx, `SELECT `+mediaColumns+mediaFrom+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Media{}, ErrNotFound
		}
		return models.Media{}, fmt.Errorf("select media by id: %w", err)
	}

	genres, err := r.genresOf(ctx, id)
	if err != nil {
		return models.Media{}, err
	}
	media.Genres = genres

	cast, err := r.ListCast(ctx, id)
	if err != nil {
		return models.Media{}, err
	}
	media.Cast = cast

	return media, nil
}

// Update rewrites a media row and, when genreIDs or cast is non-nil,
// replaces the corresponding association set entirely, all inside one
// transaction, so a failed rewrite rolls back the entity update too.
// A nil slice leaves the associations untouched; an empty one clears them.
func (r *PostgresMediaRepository) Update(ctx context.Context, media models.Media, genreIDs []int, cast []models.CastEntry, replaceGenres, replaceCast bool) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE media
            SET title = $2, type = $3, release_year = $4, duration = $5, synopsis = $6,
                cover_image_url = $7, trailer_url = $8, franchise_id = $9,
                franchise_order = $10, visibility = $11
            WHERE id = $1
        `, media.ID, media.Title, media.Type, media.ReleaseYear, media.Duration, media.Synopsis,
			media.CoverImageURL, media.TrailerURL, media.FranchiseID, media.FranchiseOrder, media.Visibility)
		if err != nil {
			return mapPgError("update media", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		if replaceGenres {
			if _, err := tx.Exec(ctx, `DELETE FROM media_genres WHERE media_id = $1`, media.ID); err != nil {
				return fmt.Errorf("clear genre links: %w", err)
			}
			if err := insertGenreLinks(ctx, tx, media.ID, genreIDs); err != nil {
				return err
			}
		}

		if replaceCast {
			if _, err := tx.Exec(ctx, `DELETE FROM media_persons WHERE media_id = $1`, media.ID); err != nil {
				return fmt.Errorf("clear cast rows: %w", err)
			}
			if err := insertCastEntries(ctx, tx, media.ID, cast); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a media and its association rows in one transaction.
func (r *PostgresMediaRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM media_persons WHERE media_id = $1`, id); err != nil {
			return fmt.Errorf("delete cast rows: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM media_genres WHERE media_id = $1`, id); err != nil {
			return fmt.Errorf("delete genre links: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete media: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListByLibrary returns the media of one library, owners resolved.
func (r *PostgresMediaRepository) ListByLibrary(ctx context.Context, libraryID int) ([]models.Media, error) {
	return r.list(ctx, `SELECT `+mediaColumns+mediaFrom+` WHERE m.library_id = $1 ORDER BY m.id`, libraryID)
}

// ListByOwner returns every media across the owner's libraries.
func (r *PostgresMediaRepository) ListByOwner(ctx context.Context, ownerID int) ([]models.Media, error) {
	return r.list(ctx, `SELECT `+mediaColumns+mediaFrom+` WHERE l.owner_id = $1 ORDER BY m.id`, ownerID)
}

// Search returns media matching the filter, title matched
// case-insensitively, genre/person filters applied through the
// association tables. A non-positive limit returns the full matching set
// (used for the visible-total recompute).
func (r *PostgresMediaRepository) Search(ctx context.Context, f MediaFilter) ([]models.Media, error) {
	conds, args := mediaConditions(f)
	sql := `SELECT ` + mediaColumns + mediaFrom + whereClause(conds) + pageClause("m.id", f.Limit, f.Offset, &args)
	return r.list(ctx, sql, args...)
}

// Count returns the number of media matching the filter. Visibility is
// ignored; the caller decides whether the count needs a visibility pass.
func (r *PostgresMediaRepository) Count(ctx context.Context, f MediaFilter) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	conds, args := mediaConditions(f)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*)`+mediaFrom+whereClause(conds), args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return total, nil
}

// ListCast returns the cast entries of a media with person names resolved.
func (r *PostgresMediaRepository) ListCast(ctx context.Context, mediaID int) ([]models.CastEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT mp.media_id, mp.person_id, p.name, mp.role, mp.character_name
        FROM media_persons mp
        JOIN persons p ON p.id = mp.person_id
        WHERE mp.media_id = $1
        ORDER BY mp.person_id, mp.role
    `, mediaID)
	if err != nil {
		return nil, fmt.Errorf("query cast: %w", err)
	}
	defer rows.Close()

	var cast []models.CastEntry
	for rows.Next() {
		var entry models.CastEntry
		if err := rows.Scan(&entry.MediaID, &entry.PersonID, &entry.PersonName, &entry.Role, &entry.CharacterName); err != nil {
			return nil, fmt.Errorf("scan cast entry: %w", err)
		}
		cast = append(cast, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cast: %w", err)
	}
	return cast, nil
}

// AddCastEntry inserts a single cast row. A duplicate
// (media, person, role) triple yields ErrConflict, a dangling person or
// media id ErrNotFound.
func (r *PostgresMediaRepository) AddCastEntry(ctx context.Context, entry models.CastEntry) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO media_persons (media_id, person_id, role, character_name)
        VALUES ($1, $2, $3, $4)
    `, entry.MediaID, entry.PersonID, entry.Role, entry.CharacterName)
	if err != nil {
		return mapPgError("insert cast entry", err)
	}
	return nil
}

// RemoveCastEntry deletes one cast row identified by its full key.
func (r *PostgresMediaRepository) RemoveCastEntry(ctx context.Context, mediaID, personID int, role string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM media_persons WHERE media_id = $1 AND person_id = $2 AND role = $3
    `, mediaID, personID, role)
	if err != nil {
		return fmt.Errorf("delete cast entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCoverImage updates only the cover image URL of a media.
func (r *PostgresMediaRepository) SetCoverImage(ctx context.Context, mediaID int, url string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE media SET cover_image_url = $2 WHERE id = $1`, mediaID, url)
	if err != nil {
		return fmt.Errorf("update cover image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresMediaRepository) list(ctx context.Context, sql string, args ...any) ([]models.Media, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return media, nil
}

func (r *PostgresMediaRepository) genresOf(ctx context.Context, mediaID int) ([]models.Genre, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT g.id, g.name
        FROM genres g
        JOIN media_genres mg ON mg.genre_id = g.id
        WHERE mg.media_id = $1
        ORDER BY g.id
    `, mediaID)
	if err != nil {
		return nil, fmt.Errorf("query media genres: %w", err)
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
		return nil, fmt.Errorf("iterate media genres: %w", err)
	}
	return genres, nil
}

func insertGenreLinks(ctx context.Context, tx pgx.Tx, mediaID int, genreIDs []int) error {
	for _, genreID := range genreIDs {
		if _, err := tx.Exec(ctx, `
            INSERT INTO media_genres (media_id, genre_id) VALUES ($1, $2)
            ON CONFLICT DO NOTHING
        `, mediaID, genreID); err != nil {
			return mapPgError("insert genre link", err)
		}
	}
	return nil
}

func insertCastEntries(ctx context.Context, tx pgx.Tx, mediaID int, cast []models.CastEntry) error {
	for _, entry := range cast {
		if _, err := tx.Exec(ctx, `
            INSERT INTO media_persons (media_id, person_id, role, character_name)
            VALUES ($1, $2, $3, $4)
        `, mediaID, entry.PersonID, entry.Role, entry.CharacterName); err != nil {
			return mapPgError("insert cast entry", err)
		}
	}
	return nil
}

func mediaConditions(f MediaFilter) ([]string, []any) {
	var conds []string
	var args []any

	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		conds = append(conds, fmt.Sprintf("m.title ILIKE $%d", len(args)))
	}
	if f.LibraryID != 0 {
		args = append(args, f.LibraryID)
		conds = append(conds, fmt.Sprintf("m.library_id = $%d", len(args)))
	}
	if f.Visibility != "" {
		args = append(args, f.Visibility)
		conds = append(conds, fmt.Sprintf("m.visibility = $%d", len(args)))
	}
	if f.GenreID != 0 {
		args = append(args, f.GenreID)
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM media_genres mg WHERE mg.media_id = m.id AND mg.genre_id = $%d)", len(args)))
	}
	if f.PersonID != 0 {
		args = append(args, f.PersonID)
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM media_persons mp WHERE mp.media_id = m.id AND mp.person_id = $%d)", len(args)))
	}
	if f.FranchiseID != 0 {
		args = append(args, f.FranchiseID)
		conds = append(conds, fmt.Sprintf("m.franchise_id = $%d", len(args)))
	}
	return conds, args
}
