package authorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/sirupsen/logrus"
)

// Decision is the outcome of a single gate check, for metrics
type Decision int

const (
	DecisionAllowed Decision = iota
	DecisionDenied
	DecisionError
)

// String returns the metric label of the decision
func (d Decision) String() string {
	switch d {
	case DecisionAllowed:
		return "allowed"
	case DecisionDenied:
		return "denied"
	default:
		return "error"
	}
}

// DecisionObserver is notified of every check
type DecisionObserver interface {
	ObserveDecision(operation string, decision Decision)
}

// GateInterface defines the authorization gate
type GateInterface interface {
	IsPermitted(ctx context.Context, operation, requiredAuthority string, callerAuthorities []string) (bool, error)
	Authorize(ctx context.Context, operation, requiredAuthority string, callerAuthorities []string) error
	RegisterPermission(ctx context.Context, operation, authority string) error
	RevokePermission(ctx context.Context, operation, authority string) error
}

// Gate decides whether a caller may invoke a guarded operation by looking up
// the (operation, authority) pair in the permission registry.
// It holds no mutable state; concurrent checks need no coordination.
type Gate struct {
	registry           repositories.FunctionalityRepository
	anonymousAuthority string
	logger             logrus.FieldLogger
	observer           DecisionObserver
}

// NewGate creates a gate over the given registry.
// anonymousAuthority is the wildcard role satisfied by any caller.
func NewGate(registry repositories.FunctionalityRepository, anonymousAuthority string, logger logrus.FieldLogger) *Gate {
	if anonymousAuthority == "" {
		anonymousAuthority = entities.AuthorityAnonymous
	}
	return &Gate{
		registry:           registry,
		anonymousAuthority: anonymousAuthority,
		logger:             logger,
	}
}

// SetObserver sets the decision observer
func (g *Gate) SetObserver(o DecisionObserver) {
	g.observer = o
}

// AnonymousAuthority returns the wildcard authority name
func (g *Gate) AnonymousAuthority() string {
	return g.anonymousAuthority
}

// IsPermitted reports whether a caller holding callerAuthorities may invoke
// operation, which is declared to require requiredAuthority.
//
// An unregistered pair is denied. A registered pair is permitted when the
// required authority is the anonymous wildcard or is held by the caller
// (exact, case-sensitive match). Registry failures return false together
// with an error wrapping ErrRegistryUnavailable.
func (g *Gate) IsPermitted(ctx context.Context, operation, requiredAuthority string, callerAuthorities []string) (bool, error) {
	if operation == "" {
		return false, fmt.Errorf("%w: operation name is required", ErrInvalidArgument)
	}
	if requiredAuthority == "" {
		return false, fmt.Errorf("%w: required authority is required", ErrInvalidArgument)
	}

	entry, err := g.registry.Find(ctx, operation, requiredAuthority)
	if err != nil {
		g.observe(operation, DecisionError)
		g.logger.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"authority": requiredAuthority,
		}).Error("permission registry lookup failed")
		return false, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}

	allowed := entry != nil && (requiredAuthority == g.anonymousAuthority || containsAuthority(callerAuthorities, requiredAuthority))

	if allowed {
		g.observe(operation, DecisionAllowed)
	} else {
		g.observe(operation, DecisionDenied)
		g.logger.WithFields(logrus.Fields{
			"operation":  operation,
			"authority":  requiredAuthority,
			"registered": entry != nil,
		}).Debug("permission denied")
	}

	return allowed, nil
}

// Authorize is IsPermitted for dispatchers: nil when permitted, ErrForbidden
// when denied, and infrastructure errors unchanged.
func (g *Gate) Authorize(ctx context.Context, operation, requiredAuthority string, callerAuthorities []string) error {
	allowed, err := g.IsPermitted(ctx, operation, requiredAuthority, callerAuthorities)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// RegisterPermission idempotently adds (operation, authority) to the registry
func (g *Gate) RegisterPermission(ctx context.Context, operation, authority string) error {
	f := &entities.Functionality{Name: operation, AuthorityName: authority}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if _, err := g.registry.Insert(ctx, operation, authority); err != nil {
		return registryError("register permission", err)
	}

	g.logger.WithFields(logrus.Fields{
		"operation": operation,
		"authority": authority,
	}).Info("permission registered")
	return nil
}

// RevokePermission removes (operation, authority) from the registry.
// Revoking an absent pair is a no-op.
func (g *Gate) RevokePermission(ctx context.Context, operation, authority string) error {
	if operation == "" || authority == "" {
		return fmt.Errorf("%w: operation and authority are required", ErrInvalidArgument)
	}

	if err := g.registry.Delete(ctx, operation, authority); err != nil {
		return registryError("revoke permission", err)
	}

	g.logger.WithFields(logrus.Fields{
		"operation": operation,
		"authority": authority,
	}).Info("permission revoked")
	return nil
}

func (g *Gate) observe(operation string, d Decision) {
	if g.observer != nil {
		g.observer.ObserveDecision(operation, d)
	}
}

// registryError keeps domain errors as they are and marks everything else
// as an infrastructure failure.
func registryError(action string, err error) error {
	if errors.Is(err, repositories.ErrAuthorityNotFound) {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", action, ErrRegistryUnavailable, err)
}

func containsAuthority(authorities []string, name string) bool {
	for _, a := range authorities {
		if a == name {
			return true
		}
	}
	return false
}
