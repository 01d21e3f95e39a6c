package authorization

import (
	"context"
	"fmt"
	"sort"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
)

// Requirement declares what a guarded operation needs.
// It is fixed at startup and never derived from request data.
type Requirement struct {
	Operation string // Registry operation name (e.g. "deleteUser")
	Authority string // Required authority (e.g. "ROLE_ADMIN")

	// RequireRole additionally demands that the caller literally holds
	// Authority, even when the registry entry exists.
	RequireRole bool
}

// Validate checks that the requirement names both an operation and an authority
func (r Requirement) Validate() error {
	if r.Operation == "" {
		return fmt.Errorf("%w: operation name is required", ErrInvalidConfiguration)
	}
	if r.Authority == "" {
		return fmt.Errorf("%w: operation %q has no required authority", ErrInvalidConfiguration, r.Operation)
	}
	return nil
}

// GuardTable maps dispatch keys (e.g. gRPC full method names) to requirements
type GuardTable struct {
	requirements map[string]Requirement
	public       map[string]struct{}
}

// NewGuardTable validates every requirement and builds the table.
// publicMethods are dispatched without any check (health probes and the like).
func NewGuardTable(requirements map[string]Requirement, publicMethods ...string) (*GuardTable, error) {
	t := &GuardTable{
		requirements: make(map[string]Requirement, len(requirements)),
		public:       make(map[string]struct{}, len(publicMethods)),
	}

	for method, req := range requirements {
		if method == "" {
			return nil, fmt.Errorf("%w: empty method name", ErrInvalidConfiguration)
		}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("method %s: %w", method, err)
		}
		t.requirements[method] = req
	}

	for _, method := range publicMethods {
		if _, guarded := t.requirements[method]; guarded {
			return nil, fmt.Errorf("%w: method %s is both public and guarded", ErrInvalidConfiguration, method)
		}
		t.public[method] = struct{}{}
	}

	return t, nil
}

// Lookup returns the requirement of a method
func (t *GuardTable) Lookup(method string) (Requirement, bool) {
	req, ok := t.requirements[method]
	return req, ok
}

// IsPublic reports whether a method is exempt from checks
func (t *GuardTable) IsPublic(method string) bool {
	_, ok := t.public[method]
	return ok
}

// Methods returns the guarded method names in sorted order
func (t *GuardTable) Methods() []string {
	methods := make([]string, 0, len(t.requirements))
	for m := range t.requirements {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Authorize decides whether caller may invoke method.
// Unknown methods are forbidden.
func (t *GuardTable) Authorize(ctx context.Context, gate GateInterface, method string, caller entities.Principal) error {
	if t.IsPublic(method) {
		return nil
	}

	req, ok := t.requirements[method]
	if !ok {
		return ErrForbidden
	}

	if req.RequireRole && !caller.HasAuthority(req.Authority) {
		return ErrForbidden
	}

	return gate.Authorize(ctx, req.Operation, req.Authority, caller.Authorities)
}

// Unregistered returns the requirements whose (operation, authority) pair is
// missing from the registry. Those operations are forbidden for everyone.
func (t *GuardTable) Unregistered(ctx context.Context, registry repositories.FunctionalityRepository) ([]Requirement, error) {
	var missing []Requirement
	for _, method := range t.Methods() {
		req := t.requirements[method]
		f, err := registry.Find(ctx, req.Operation, req.Authority)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
		}
		if f == nil {
			missing = append(missing, req)
		}
	}
	return missing, nil
}
