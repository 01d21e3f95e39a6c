package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
)

// PostgresAuthorityRepository implements AuthorityRepository using PostgreSQL
type PostgresAuthorityRepository struct {
	db *sql.DB
}

// NewPostgresAuthorityRepository creates a new PostgreSQL authority repository
func NewPostgresAuthorityRepository(db *sql.DB) repositories.AuthorityRepository {
	return &PostgresAuthorityRepository{db: db}
}

// Create stores the authority; an existing authority keeps its creation time
func (r *PostgresAuthorityRepository) Create(ctx context.Context, authority *entities.Authority) error {
	query := `
		INSERT INTO authorities (name, created_at)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, query, authority.Name, time.Now()).Scan(&authority.CreatedAt); err != nil {
		return fmt.Errorf("failed to create authority: %w", err)
	}
	return nil
}

// Get retrieves an authority by name
func (r *PostgresAuthorityRepository) Get(ctx context.Context, name string) (*entities.Authority, error) {
	var a entities.Authority
	err := r.db.QueryRowContext(ctx, `SELECT name, created_at FROM authorities WHERE name = $1`, name).
		Scan(&a.Name, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authority: %w", err)
	}
	return &a, nil
}

// List returns all authorities ordered by name
func (r *PostgresAuthorityRepository) List(ctx context.Context) ([]*entities.Authority, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, created_at FROM authorities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorities: %w", err)
	}
	defer rows.Close()

	result := []*entities.Authority{}
	for rows.Next() {
		var a entities.Authority
		if err := rows.Scan(&a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan authority: %w", err)
		}
		result = append(result, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating authorities: %w", err)
	}

	return result, nil
}

// Delete removes the authority. The foreign key (ON DELETE RESTRICT) rejects
// the delete while functionalities still reference it.
func (r *PostgresAuthorityRepository) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM authorities WHERE name = $1`, name)
	if isPQError(err, foreignKeyViolation) {
		return repositories.ErrAuthorityInUse
	}
	if err != nil {
		return fmt.Errorf("failed to delete authority: %w", err)
	}
	return nil
}
