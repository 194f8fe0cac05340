package user

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// defaultName is assigned to accounts auto-created through the battle
// flow; the account system fills the real profile in later.
const defaultName = "computer"

// PostgresDirectory is the production Directory, shared with the account
// system's users table.
type PostgresDirectory struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ Directory = (*PostgresDirectory)(nil)

// NewPostgresDirectory wraps an existing connection pool.
func NewPostgresDirectory(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresDirectory {
	return &PostgresDirectory{
		pool:   pool,
		logger: logger.With().Str("component", "user_directory").Logger(),
	}
}

// GetOrCreate inserts the username if new and returns the stored record
// either way. The upsert keeps concurrent first-connects of the same user
// from racing into duplicate rows.
func (d *PostgresDirectory) GetOrCreate(ctx context.Context, username string) (User, error) {
	const q = `
		INSERT INTO users (username, name)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING user_id, username, name`

	var u User
	if err := d.pool.QueryRow(ctx, q, username, defaultName).Scan(&u.ID, &u.Username, &u.Name); err != nil {
		return User{}, fmt.Errorf("get or create user %q: %w", username, err)
	}
	return u, nil
}
