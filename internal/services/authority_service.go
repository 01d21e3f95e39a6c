package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/sirupsen/logrus"
)

// AuthorityServiceInterface defines the administrative operations on authorities
type AuthorityServiceInterface interface {
	Create(ctx context.Context, name string) (*entities.Authority, error)
	Get(ctx context.Context, name string) (*entities.Authority, error)
	List(ctx context.Context) ([]*entities.Authority, error)
	Delete(ctx context.Context, name string) error
}

// AuthorityService manages authorities
type AuthorityService struct {
	repo   repositories.AuthorityRepository
	logger logrus.FieldLogger
}

// NewAuthorityService creates a new AuthorityService
func NewAuthorityService(repo repositories.AuthorityRepository, logger logrus.FieldLogger) *AuthorityService {
	return &AuthorityService{
		repo:   repo,
		logger: logger,
	}
}

// Create stores an authority; creating an existing one returns it unchanged
func (s *AuthorityService) Create(ctx context.Context, name string) (*entities.Authority, error) {
	a := &entities.Authority{Name: name}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create authority: %w", err)
	}

	s.logger.WithField("authority", a.Name).Info("authority created")
	return a, nil
}

// Get retrieves an authority by name
func (s *AuthorityService) Get(ctx context.Context, name string) (*entities.Authority, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: authority name is required", ErrValidation)
	}

	a, err := s.repo.Get(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAuthorityNotFound
		}
		return nil, fmt.Errorf("failed to get authority: %w", err)
	}
	return a, nil
}

// List returns every authority
func (s *AuthorityService) List(ctx context.Context) ([]*entities.Authority, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorities: %w", err)
	}
	return list, nil
}

// Delete removes an authority that no functionality references.
// Returns repositories.ErrAuthorityInUse otherwise.
func (s *AuthorityService) Delete(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: authority name is required", ErrValidation)
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		if errors.Is(err, repositories.ErrAuthorityInUse) {
			return err
		}
		return fmt.Errorf("failed to delete authority: %w", err)
	}

	s.logger.WithField("authority", name).Info("authority deleted")
	return nil
}
