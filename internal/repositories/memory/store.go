// Package memory provides an in-process permission registry.
// It is used when STORAGE_DRIVER=memory and by tests that do not need PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
)

// Store holds authorities and functionalities behind a single lock so that
// every mutation is observed either completely or not at all.
type Store struct {
	mu              sync.RWMutex
	authorities     map[string]*entities.Authority
	functionalities map[int64]*entities.Functionality
	byKey           map[entities.PermissionKey]int64
	nextID          int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		authorities:     make(map[string]*entities.Authority),
		functionalities: make(map[int64]*entities.Functionality),
		byKey:           make(map[entities.PermissionKey]int64),
	}
}

// Functionalities returns the functionality repository view of the store
func (s *Store) Functionalities() repositories.FunctionalityRepository {
	return &FunctionalityRepository{s: s}
}

// Authorities returns the authority repository view of the store
func (s *Store) Authorities() repositories.AuthorityRepository {
	return &AuthorityRepository{s: s}
}

// FunctionalityRepository implements repositories.FunctionalityRepository in memory
type FunctionalityRepository struct {
	s *Store
}

// Find returns the entry matching (name, authorityName) exactly
func (r *FunctionalityRepository) Find(ctx context.Context, name, authorityName string) (*entities.Functionality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.byKey[entities.PermissionKey{Operation: name, Authority: authorityName}]
	if !ok {
		return nil, nil
	}
	return copyFunctionality(r.s.functionalities[id]), nil
}

// Insert stores the pair if absent
func (r *FunctionalityRepository) Insert(ctx context.Context, name, authorityName string) (*entities.Functionality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.authorities[authorityName]; !ok {
		return nil, repositories.ErrAuthorityNotFound
	}

	key := entities.PermissionKey{Operation: name, Authority: authorityName}
	if id, ok := r.s.byKey[key]; ok {
		return copyFunctionality(r.s.functionalities[id]), nil
	}

	r.s.nextID++
	now := time.Now()
	f := &entities.Functionality{
		ID:            r.s.nextID,
		Name:          name,
		AuthorityName: authorityName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.s.functionalities[f.ID] = f
	r.s.byKey[key] = f.ID

	return copyFunctionality(f), nil
}

// Delete removes the pair if present
func (r *FunctionalityRepository) Delete(ctx context.Context, name, authorityName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := entities.PermissionKey{Operation: name, Authority: authorityName}
	if id, ok := r.s.byKey[key]; ok {
		delete(r.s.byKey, key)
		delete(r.s.functionalities, id)
	}
	return nil
}

// GetByID retrieves an entry by id
func (r *FunctionalityRepository) GetByID(ctx context.Context, id int64) (*entities.Functionality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.functionalities[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyFunctionality(f), nil
}

// Update replaces name and authority of an existing entry
func (r *FunctionalityRepository) Update(ctx context.Context, f *entities.Functionality) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.functionalities[f.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if _, ok := r.s.authorities[f.AuthorityName]; !ok {
		return repositories.ErrAuthorityNotFound
	}

	newKey := f.Key()
	if id, ok := r.s.byKey[newKey]; ok && id != f.ID {
		return repositories.ErrDuplicateFunctionality
	}

	delete(r.s.byKey, current.Key())
	current.Name = f.Name
	current.AuthorityName = f.AuthorityName
	current.UpdatedAt = time.Now()
	r.s.byKey[newKey] = current.ID

	f.CreatedAt = current.CreatedAt
	f.UpdatedAt = current.UpdatedAt
	return nil
}

// DeleteByID removes an entry by id if present
func (r *FunctionalityRepository) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if f, ok := r.s.functionalities[id]; ok {
		delete(r.s.byKey, f.Key())
		delete(r.s.functionalities, id)
	}
	return nil
}

// List returns entries matching the filter ordered by id
func (r *FunctionalityRepository) List(ctx context.Context, filter *repositories.FunctionalityFilter) ([]*entities.Functionality, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	result := make([]*entities.Functionality, 0, len(r.s.functionalities))
	for _, f := range r.s.functionalities {
		if filter != nil {
			if filter.Name != "" && f.Name != filter.Name {
				continue
			}
			if filter.AuthorityName != "" && f.AuthorityName != filter.AuthorityName {
				continue
			}
		}
		result = append(result, copyFunctionality(f))
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*entities.Functionality{}, nil
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}

	return result, nil
}

// AuthorityRepository implements repositories.AuthorityRepository in memory
type AuthorityRepository struct {
	s *Store
}

// Create stores the authority if absent
func (r *AuthorityRepository) Create(ctx context.Context, authority *entities.Authority) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.authorities[authority.Name]; ok {
		authority.CreatedAt = existing.CreatedAt
		return nil
	}

	stored := &entities.Authority{Name: authority.Name, CreatedAt: time.Now()}
	r.s.authorities[stored.Name] = stored
	authority.CreatedAt = stored.CreatedAt
	return nil
}

// Get retrieves an authority by name
func (r *AuthorityRepository) Get(ctx context.Context, name string) (*entities.Authority, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.authorities[name]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

// List returns all authorities ordered by name
func (r *AuthorityRepository) List(ctx context.Context) ([]*entities.Authority, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	result := make([]*entities.Authority, 0, len(r.s.authorities))
	for _, a := range r.s.authorities {
		copied := *a
		result = append(result, &copied)
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes an unreferenced authority
func (r *AuthorityRepository) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, f := range r.s.functionalities {
		if f.AuthorityName == name {
			return repositories.ErrAuthorityInUse
		}
	}
	delete(r.s.authorities, name)
	return nil
}

func copyFunctionality(f *entities.Functionality) *entities.Functionality {
	copied := *f
	return &copied
}
