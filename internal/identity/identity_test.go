package identity

import (
	"context"
	"reflect"
	"testing"

	"github.com/asakaida/kanmon/internal/entities"
	"google.golang.org/grpc/metadata"
)

func TestMetadataProvider_Principal(t *testing.T) {
	tests := []struct {
		name            string
		md              metadata.MD
		wantSubject     string
		wantAuthorities []string
	}{
		{
			name:            "no metadata",
			md:              nil,
			wantAuthorities: nil,
		},
		{
			name:            "subject only",
			md:              metadata.Pairs(SubjectKey, "alice"),
			wantSubject:     "alice",
			wantAuthorities: []string{},
		},
		{
			name:            "comma separated authorities",
			md:              metadata.Pairs(SubjectKey, "admin", AuthoritiesKey, "ROLE_ADMIN, ROLE_USER"),
			wantSubject:     "admin",
			wantAuthorities: []string{"ROLE_ADMIN", "ROLE_USER"},
		},
		{
			name:            "repeated header with duplicates and blanks",
			md:              metadata.Pairs(AuthoritiesKey, "ROLE_USER,,", AuthoritiesKey, "ROLE_USER,ROLE_ADMIN"),
			wantAuthorities: []string{"ROLE_USER", "ROLE_ADMIN"},
		},
	}

	p := NewMetadataProvider()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}

			got := p.Principal(ctx)
			if got.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", got.Subject, tt.wantSubject)
			}
			if !reflect.DeepEqual(got.Authorities, tt.wantAuthorities) {
				t.Errorf("Authorities = %v, want %v", got.Authorities, tt.wantAuthorities)
			}
		})
	}
}

func TestOutgoingContext_RoundTrip(t *testing.T) {
	caller := entities.Principal{Subject: "bob", Authorities: []string{"ROLE_USER", "ROLE_ADMIN"}}

	out := OutgoingContext(context.Background(), caller)
	md, ok := metadata.FromOutgoingContext(out)
	if !ok {
		t.Fatal("no outgoing metadata")
	}

	got := NewMetadataProvider().Principal(metadata.NewIncomingContext(context.Background(), md))
	if got.Subject != caller.Subject || !reflect.DeepEqual(got.Authorities, caller.Authorities) {
		t.Errorf("round trip = %+v, want %+v", got, caller)
	}
}

func TestContextWithPrincipal(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should not carry a principal")
	}

	ctx := ContextWithPrincipal(context.Background(), entities.Principal{Subject: "carol"})
	p, ok := FromContext(ctx)
	if !ok || p.Subject != "carol" {
		t.Errorf("FromContext() = %+v, %v", p, ok)
	}
}
