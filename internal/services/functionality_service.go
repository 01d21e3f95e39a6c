package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/sirupsen/logrus"
)

// FunctionalityServiceInterface defines the administrative operations on the permission registry
type FunctionalityServiceInterface interface {
	Create(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error)
	Update(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error)
	Get(ctx context.Context, id int64) (*entities.Functionality, error)
	List(ctx context.Context, filter *repositories.FunctionalityFilter) ([]*entities.Functionality, error)
	Delete(ctx context.Context, id int64) error
}

// FunctionalityService manages registry entries by id
type FunctionalityService struct {
	repo   repositories.FunctionalityRepository
	logger logrus.FieldLogger
}

// NewFunctionalityService creates a new FunctionalityService
func NewFunctionalityService(repo repositories.FunctionalityRepository, logger logrus.FieldLogger) *FunctionalityService {
	return &FunctionalityService{
		repo:   repo,
		logger: logger,
	}
}

// Create registers a new entry. Creating an existing pair returns the stored entry.
func (s *FunctionalityService) Create(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: functionality is required", ErrValidation)
	}
	if f.ID != 0 {
		return nil, ErrIDExists
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	created, err := s.repo.Insert(ctx, f.Name, f.AuthorityName)
	if err != nil {
		return nil, fmt.Errorf("failed to create functionality: %w", err)
	}

	s.logger.WithField("functionality", created.String()).WithField("id", created.ID).Info("functionality created")
	return created, nil
}

// Update changes name and authority of an existing entry
func (s *FunctionalityService) Update(ctx context.Context, f *entities.Functionality) (*entities.Functionality, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: functionality is required", ErrValidation)
	}
	if f.ID == 0 {
		return nil, ErrIDRequired
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	updated := *f
	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrFunctionalityNotFound
		}
		return nil, fmt.Errorf("failed to update functionality: %w", err)
	}

	s.logger.WithField("functionality", updated.String()).WithField("id", updated.ID).Info("functionality updated")
	return &updated, nil
}

// Get retrieves an entry by id
func (s *FunctionalityService) Get(ctx context.Context, id int64) (*entities.Functionality, error) {
	if id <= 0 {
		return nil, ErrIDRequired
	}

	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrFunctionalityNotFound
		}
		return nil, fmt.Errorf("failed to get functionality: %w", err)
	}
	return f, nil
}

// List returns entries matching the filter
func (s *FunctionalityService) List(ctx context.Context, filter *repositories.FunctionalityFilter) ([]*entities.Functionality, error) {
	if filter != nil && (filter.Limit < 0 || filter.Offset < 0) {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrValidation)
	}

	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list functionalities: %w", err)
	}
	return list, nil
}

// Delete removes an entry by id; deleting an absent entry is not an error
func (s *FunctionalityService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrIDRequired
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete functionality: %w", err)
	}

	s.logger.WithField("id", id).Info("functionality deleted")
	return nil
}
