package services

import (
	"errors"
	"fmt"

	"github.com/asakaida/kanmon/internal/repositories"
)

var (
	// ErrIDExists is returned when creating an entry that already carries an id
	ErrIDExists = errors.New("a new functionality cannot already have an id")

	// ErrIDRequired is returned when updating an entry without an id
	ErrIDRequired = errors.New("functionality id is required")

	// ErrValidation is returned for entities failing field validation
	ErrValidation = errors.New("validation failed")

	// ErrFunctionalityNotFound matches repositories.ErrNotFound too
	ErrFunctionalityNotFound = fmt.Errorf("functionality %w", repositories.ErrNotFound)

	// ErrAuthorityNotFound matches repositories.ErrNotFound too
	ErrAuthorityNotFound = fmt.Errorf("authority %w", repositories.ErrNotFound)
)
