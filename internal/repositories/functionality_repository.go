package repositories

import (
	"context"
	"errors"

	"github.com/asakaida/kanmon/internal/entities"
)

var (
	// ErrNotFound is returned when a functionality or authority does not exist
	ErrNotFound = errors.New("not found")

	// ErrAuthorityNotFound is returned when an entry references an unknown authority
	ErrAuthorityNotFound = errors.New("authority not found")

	// ErrAuthorityInUse is returned when deleting an authority still referenced by functionalities
	ErrAuthorityInUse = errors.New("authority is referenced by functionalities")

	// ErrDuplicateFunctionality is returned when an update would collide with an existing (name, authority) pair
	ErrDuplicateFunctionality = errors.New("functionality already exists for authority")
)

// FunctionalityFilter defines filter criteria for listing functionalities
type FunctionalityFilter struct {
	Name          string // Filter by operation name (optional)
	AuthorityName string // Filter by authority name (optional)
	Limit         int    // Maximum number of rows (0 = no limit)
	Offset        int
}

// FunctionalityRepository is the permission registry.
// Find is the only call on the check path; the rest are administrative.
type FunctionalityRepository interface {
	// Find returns the entry matching (name, authorityName) exactly, or nil if absent
	Find(ctx context.Context, name, authorityName string) (*entities.Functionality, error)

	// Insert stores the pair if it is not present yet and returns the stored entry
	Insert(ctx context.Context, name, authorityName string) (*entities.Functionality, error)

	// Delete removes the pair; deleting an absent pair is not an error
	Delete(ctx context.Context, name, authorityName string) error

	// GetByID retrieves an entry by its surrogate identifier
	GetByID(ctx context.Context, id int64) (*entities.Functionality, error)

	// Update changes the name and authority of an existing entry
	Update(ctx context.Context, f *entities.Functionality) error

	// DeleteByID removes an entry by its surrogate identifier; absent is not an error
	DeleteByID(ctx context.Context, id int64) error

	// List returns entries matching the filter ordered by id
	List(ctx context.Context, filter *FunctionalityFilter) ([]*entities.Functionality, error)
}
