// Package identity resolves the authenticated caller of a request.
package identity

import (
	"context"
	"strings"

	"github.com/asakaida/kanmon/internal/entities"
	"google.golang.org/grpc/metadata"
)

// Metadata keys set by the trusted gateway in front of the service
const (
	SubjectKey     = "x-subject"
	AuthoritiesKey = "x-authorities"
)

// Provider returns the principal of the current request
type Provider interface {
	Principal(ctx context.Context) entities.Principal
}

type principalKey struct{}

// ContextWithPrincipal stores the principal in ctx for handlers downstream of the guard
func ContextWithPrincipal(ctx context.Context, p entities.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by ContextWithPrincipal
func FromContext(ctx context.Context) (entities.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(entities.Principal)
	return p, ok
}

// MetadataProvider reads the principal from incoming gRPC metadata.
// Requests without metadata are anonymous.
type MetadataProvider struct{}

// NewMetadataProvider creates a new MetadataProvider
func NewMetadataProvider() *MetadataProvider {
	return &MetadataProvider{}
}

// Principal implements Provider
func (p *MetadataProvider) Principal(ctx context.Context) entities.Principal {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return entities.AnonymousPrincipal()
	}

	principal := entities.Principal{Authorities: []string{}}
	if subjects := md.Get(SubjectKey); len(subjects) > 0 {
		principal.Subject = strings.TrimSpace(subjects[0])
	}

	// Repeated headers and comma separated lists are both accepted
	seen := make(map[string]struct{})
	for _, value := range md.Get(AuthoritiesKey) {
		for _, name := range strings.Split(value, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			principal.Authorities = append(principal.Authorities, name)
		}
	}

	return principal
}

// OutgoingContext attaches the principal to an outgoing gRPC context.
// Used by clients and tests that call the service on behalf of a caller.
func OutgoingContext(ctx context.Context, p entities.Principal) context.Context {
	pairs := []string{}
	if p.Subject != "" {
		pairs = append(pairs, SubjectKey, p.Subject)
	}
	if len(p.Authorities) > 0 {
		pairs = append(pairs, AuthoritiesKey, strings.Join(p.Authorities, ","))
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// StaticProvider always returns the same principal
type StaticProvider struct {
	P entities.Principal
}

// Principal implements Provider
func (s StaticProvider) Principal(ctx context.Context) entities.Principal {
	return s.P
}
