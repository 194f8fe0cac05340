package problem

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads problem pools from the problems table, honoring a
// difficulty ceiling in SQL. This backs the level-bounded topic variant;
// single-topic deployments can keep using FileSource instead.
type PostgresSource struct {
	pool *pgxpool.Pool
}

var _ Source = (*PostgresSource)(nil)

// NewPostgresSource wraps an existing connection pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Problems fetches the pool for topic. maxLevel > 0 restricts the pool to
// problems at or below that level; unranked problems (level 0) always
// qualify.
func (s *PostgresSource) Problems(ctx context.Context, topic string, maxLevel int) ([]Problem, error) {
	const q = `
		SELECT problem, options, answer, level
		FROM problems
		WHERE topic = $1
		  AND ($2 <= 0 OR level = 0 OR level <= $2)`

	rows, err := s.pool.Query(ctx, q, topic, maxLevel)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()

	var pool []Problem
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.Text, &p.Options, &p.Answer, &p.Level); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("topic %s: %w", topic, err)
		}
		pool = append(pool, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problems: %w", err)
	}

	if len(pool) == 0 {
		// Distinguish "no such topic" from "nothing under the ceiling".
		var n int
		if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM problems WHERE topic = $1`, topic).Scan(&n); err != nil {
			return nil, fmt.Errorf("count problems: %w", err)
		}
		if n == 0 {
			return nil, &UnknownTopicError{Topic: topic}
		}
	}
	return pool, nil
}
