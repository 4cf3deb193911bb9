package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mediatheque/backend/internal/db"
	"github.com/mediatheque/backend/internal/models"
)

// UserFilter narrows user searches. A zero value means the criterion is
// absent.
type UserFilter struct {
	Query  string
	Role   string
	Limit  int
	Offset int
}

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, bio, role, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.Bio, &user.Role, &user.CreatedAt)
	return user, err
}

// Create persists a new user and returns its generated id.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var id int
	err = conn.QueryRow(ctx, `
        INSERT INTO users (username, email, password_hash, bio, role, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, user.Username, user.Email, user.Password, user.Bio, user.Role, user.CreatedAt).Scan(&id)
	if err != nil {
		return 0, mapPgError("insert user", err)
	}

	return id, nil
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id int) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by id: %w", err)
	}
	return user, nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by email: %w", err)
	}
	return user, nil
}

// Update rewrites the mutable fields of an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET username = $2, email = $3, password_hash = $4, bio = $5, role = $6
        WHERE id = $1
    `, user.ID, user.Username, user.Email, user.Password, user.Bio, user.Role)
	if err != nil {
		return mapPgError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user and, in the same transaction, everything they
// own: cast and genre links of media in their libraries, those media,
// and the libraries themselves.
func (r *PostgresUserRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		ownedMedia := `SELECT m.id FROM media m JOIN libraries l ON l.id = m.library_id WHERE l.owner_id = $1`

		if _, err := tx.Exec(ctx, `DELETE FROM media_persons WHERE media_id IN (`+ownedMedia+`)`, id); err != nil {
			return fmt.Errorf("delete owned cast rows: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM media_genres WHERE media_id IN (`+ownedMedia+`)`, id); err != nil {
			return fmt.Errorf("delete owned genre links: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM media WHERE library_id IN (SELECT id FROM libraries WHERE owner_id = $1)`, id); err != nil {
			return fmt.Errorf("delete owned media: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM libraries WHERE owner_id = $1`, id); err != nil {
			return fmt.Errorf("delete owned libraries: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Search returns users matching the filter. The query matches username
// or email case-insensitively. A non-positive limit returns the full
// matching set.
func (r *PostgresUserRepository) Search(ctx context.Context, f UserFilter) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	conds, args := userConditions(f)
	sql := `SELECT ` + userColumns + ` FROM users` + whereClause(conds) + pageClause("id", f.Limit, f.Offset, &args)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Count returns the number of users matching the filter.
func (r *PostgresUserRepository) Count(ctx context.Context, f UserFilter) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	conds, args := userConditions(f)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`+whereClause(conds), args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

func userConditions(f UserFilter) ([]string, []any) {
	var conds []string
	var args []any

	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		conds = append(conds, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	return conds, args
}
