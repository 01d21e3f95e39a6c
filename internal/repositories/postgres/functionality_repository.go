package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/lib/pq"
)

// PostgreSQL error codes we translate into repository errors
const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

const functionalityColumns = "id, name, authority_name, created_at, updated_at"

// PostgresFunctionalityRepository implements FunctionalityRepository using PostgreSQL
type PostgresFunctionalityRepository struct {
	db *sql.DB
}

// NewPostgresFunctionalityRepository creates a new PostgreSQL functionality repository
func NewPostgresFunctionalityRepository(db *sql.DB) repositories.FunctionalityRepository {
	return &PostgresFunctionalityRepository{db: db}
}

// Find returns the entry matching (name, authorityName) exactly, or nil if absent
func (r *PostgresFunctionalityRepository) Find(ctx context.Context, name, authorityName string) (*entities.Functionality, error) {
	query := `
		SELECT ` + functionalityColumns + `
		FROM functionalities
		WHERE name = $1 AND authority_name = $2
	`
	f, err := scanFunctionality(r.db.QueryRowContext(ctx, query, name, authorityName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find functionality: %w", err)
	}
	return f, nil
}

// Insert stores the pair if absent and returns the stored row.
// The no-op conflict update makes RETURNING yield the existing row in one statement.
func (r *PostgresFunctionalityRepository) Insert(ctx context.Context, name, authorityName string) (*entities.Functionality, error) {
	query := `
		INSERT INTO functionalities (name, authority_name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name, authority_name)
		DO UPDATE SET name = EXCLUDED.name
		RETURNING ` + functionalityColumns
	f, err := scanFunctionality(r.db.QueryRowContext(ctx, query, name, authorityName, time.Now()))
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return nil, repositories.ErrAuthorityNotFound
		}
		return nil, fmt.Errorf("failed to insert functionality: %w", err)
	}
	return f, nil
}

// Delete removes the pair; deleting an absent pair is not an error
func (r *PostgresFunctionalityRepository) Delete(ctx context.Context, name, authorityName string) error {
	query := `DELETE FROM functionalities WHERE name = $1 AND authority_name = $2`
	if _, err := r.db.ExecContext(ctx, query, name, authorityName); err != nil {
		return fmt.Errorf("failed to delete functionality: %w", err)
	}
	return nil
}

// GetByID retrieves an entry by id
func (r *PostgresFunctionalityRepository) GetByID(ctx context.Context, id int64) (*entities.Functionality, error) {
	query := `SELECT ` + functionalityColumns + ` FROM functionalities WHERE id = $1`
	f, err := scanFunctionality(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get functionality: %w", err)
	}
	return f, nil
}

// Update changes name and authority of an existing entry
func (r *PostgresFunctionalityRepository) Update(ctx context.Context, f *entities.Functionality) error {
	query := `
		UPDATE functionalities
		SET name = $1, authority_name = $2, updated_at = $3
		WHERE id = $4
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, f.Name, f.AuthorityName, time.Now(), f.ID).Scan(&f.CreatedAt, &f.UpdatedAt)
	switch {
	case err == sql.ErrNoRows:
		return repositories.ErrNotFound
	case isPQError(err, foreignKeyViolation):
		return repositories.ErrAuthorityNotFound
	case isPQError(err, uniqueViolation):
		return repositories.ErrDuplicateFunctionality
	case err != nil:
		return fmt.Errorf("failed to update functionality: %w", err)
	}
	return nil
}

// DeleteByID removes an entry by id; absent is not an error
func (r *PostgresFunctionalityRepository) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM functionalities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete functionality: %w", err)
	}
	return nil
}

// List returns entries matching the filter ordered by id
func (r *PostgresFunctionalityRepository) List(ctx context.Context, filter *repositories.FunctionalityFilter) ([]*entities.Functionality, error) {
	query := `SELECT ` + functionalityColumns + ` FROM functionalities WHERE 1 = 1`
	args := []interface{}{}
	argIdx := 1

	// Build dynamic WHERE clause based on filter
	if filter != nil {
		if filter.Name != "" {
			query += fmt.Sprintf(" AND name = $%d", argIdx)
			args = append(args, filter.Name)
			argIdx++
		}
		if filter.AuthorityName != "" {
			query += fmt.Sprintf(" AND authority_name = $%d", argIdx)
			args = append(args, filter.AuthorityName)
			argIdx++
		}
	}

	query += " ORDER BY id"

	if filter != nil {
		if filter.Limit > 0 {
			query += fmt.Sprintf(" LIMIT $%d", argIdx)
			args = append(args, filter.Limit)
			argIdx++
		}
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argIdx)
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list functionalities: %w", err)
	}
	defer rows.Close()

	result := []*entities.Functionality{}
	for rows.Next() {
		f, err := scanFunctionality(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan functionality: %w", err)
		}
		result = append(result, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating functionalities: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFunctionality(row rowScanner) (*entities.Functionality, error) {
	var f entities.Functionality
	if err := row.Scan(&f.ID, &f.Name, &f.AuthorityName, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func isPQError(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}
