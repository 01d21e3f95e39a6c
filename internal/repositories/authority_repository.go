package repositories

import (
	"context"

	"github.com/asakaida/kanmon/internal/entities"
)

// AuthorityRepository defines the interface for authority data access
type AuthorityRepository interface {
	// Create stores the authority; creating an existing authority is not an error
	Create(ctx context.Context, authority *entities.Authority) error

	// Get retrieves an authority by name (ErrNotFound if absent)
	Get(ctx context.Context, name string) (*entities.Authority, error)

	// List returns all authorities ordered by name
	List(ctx context.Context) ([]*entities.Authority, error)

	// Delete removes the authority. Returns ErrAuthorityInUse while functionalities reference it.
	Delete(ctx context.Context, name string) error
}
