package authorization

import "errors"

var (
	// ErrForbidden is the single denial value reported to the dispatcher.
	// It carries no detail about why the call was denied.
	ErrForbidden = errors.New("access denied")

	// ErrRegistryUnavailable wraps infrastructure failures during lookup.
	// Checks that fail this way are never treated as permitted.
	ErrRegistryUnavailable = errors.New("permission registry unavailable")

	// ErrInvalidConfiguration is returned at startup when a guarded operation
	// is declared without an operation or authority name.
	ErrInvalidConfiguration = errors.New("invalid guard configuration")

	// ErrInvalidArgument is returned for malformed gate calls
	ErrInvalidArgument = errors.New("invalid argument")
)
