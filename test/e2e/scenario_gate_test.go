package e2e

import (
	"testing"

	"github.com/asakaida/kanmon/internal/entities"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TestScenario_AnonymousOperation checks that an operation granted to the
// anonymous authority is open to every caller, including one with no identity.
func TestScenario_AnonymousOperation(t *testing.T) {
	testServer := SetupE2ETest(t)

	for _, caller := range []entities.Principal{anonymousCaller, userCaller, adminCaller} {
		ctx, cancel := as(caller)
		defer cancel()

		allowed, err := testServer.Client.Check(ctx, "activateAccount", entities.AuthorityAnonymous, nil)
		if err != nil {
			t.Fatalf("Check as %q failed: %v", caller.Subject, err)
		}
		if !allowed {
			t.Errorf("activateAccount denied for %q", caller.Subject)
		}
	}

	// An explicitly empty authority set is still satisfied by the wildcard
	ctx, cancel := as(anonymousCaller)
	defer cancel()
	allowed, err := testServer.Client.Check(ctx, "activateAccount", entities.AuthorityAnonymous, []string{})
	if err != nil || !allowed {
		t.Errorf("Check with empty authorities = %v, %v; want true, nil", allowed, err)
	}
}

// TestScenario_AdminOperation checks that deleteUser requires ROLE_ADMIN
func TestScenario_AdminOperation(t *testing.T) {
	testServer := SetupE2ETest(t)

	tests := []struct {
		name        string
		authorities []string
		want        bool
	}{
		{"admin", []string{entities.AuthorityAdmin}, true},
		{"admin among others", []string{entities.AuthorityUser, entities.AuthorityAdmin}, true},
		{"user", []string{entities.AuthorityUser}, false},
		{"no authorities", []string{}, false},
		{"lower-case admin", []string{"role_admin"}, false},
	}

	ctx, cancel := as(anonymousCaller)
	defer cancel()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := testServer.Client.Check(ctx, "deleteUser", entities.AuthorityAdmin, tt.authorities)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if allowed != tt.want {
				t.Errorf("Check(deleteUser, %v) = %v, want %v", tt.authorities, allowed, tt.want)
			}
		})
	}

	// Registered pair with a different authority does not satisfy the check
	allowed, err := testServer.Client.Check(ctx, "deleteUser", entities.AuthorityUser, []string{entities.AuthorityUser})
	if err != nil || allowed {
		t.Errorf("Check(deleteUser, ROLE_USER) = %v, %v; want false, nil", allowed, err)
	}

	if got := testServer.Server.Collector.GetDecisionMetrics(); got.Allowed == 0 || got.Denied == 0 {
		t.Errorf("decision metrics not recorded: %+v", got)
	}
}

// TestScenario_RegisterRevoke checks that permission changes take effect
// immediately, with and without the registry cache.
func TestScenario_RegisterRevoke(t *testing.T) {
	variants := []struct {
		name string
		opts []Option
	}{
		{"uncached", nil},
		{"cached", []Option{WithCache()}},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			testServer := SetupE2ETest(t, v.opts...)

			adminCtx, cancel := as(adminCaller)
			defer cancel()
			userCtx, cancelUser := as(userCaller)
			defer cancelUser()

			check := func() bool {
				t.Helper()
				allowed, err := testServer.Client.Check(userCtx, "exportReport", entities.AuthorityUser, nil)
				if err != nil {
					t.Fatalf("Check failed: %v", err)
				}
				return allowed
			}

			// Warm the cache with the negative answer
			if check() {
				t.Fatal("exportReport allowed before registration")
			}

			if err := testServer.Client.Register(adminCtx, "exportReport", entities.AuthorityUser); err != nil {
				t.Fatalf("Register failed: %v", err)
			}
			// Idempotent
			if err := testServer.Client.Register(adminCtx, "exportReport", entities.AuthorityUser); err != nil {
				t.Fatalf("second Register failed: %v", err)
			}
			if !check() {
				t.Fatal("exportReport denied after registration")
			}

			if err := testServer.Client.Revoke(adminCtx, "exportReport", entities.AuthorityUser); err != nil {
				t.Fatalf("Revoke failed: %v", err)
			}
			if check() {
				t.Fatal("exportReport allowed after revocation")
			}

			// Revoking an absent pair is a no-op
			if err := testServer.Client.Revoke(adminCtx, "exportReport", entities.AuthorityUser); err != nil {
				t.Errorf("second Revoke failed: %v", err)
			}
		})
	}
}

// TestScenario_GuardedRPCs checks that the dispatcher rejects callers
// before any handler runs.
func TestScenario_GuardedRPCs(t *testing.T) {
	testServer := SetupE2ETest(t)

	userCtx, cancel := as(userCaller)
	defer cancel()
	anonCtx, cancelAnon := as(anonymousCaller)
	defer cancelAnon()

	err := testServer.Client.Register(userCtx, "exportReport", entities.AuthorityUser)
	assertCode(t, err, codes.PermissionDenied)
	if st, _ := status.FromError(err); st.Message() != "access denied" {
		t.Errorf("denial message = %q, want %q", st.Message(), "access denied")
	}

	_, err = testServer.Client.ListAuthorities(anonCtx)
	assertCode(t, err, codes.PermissionDenied)

	_, err = testServer.Client.CreateAuthority(userCtx, "ROLE_AUDITOR")
	assertCode(t, err, codes.PermissionDenied)

	// The rejected Register must not have reached the registry
	adminCtx, cancelAdmin := as(adminCaller)
	defer cancelAdmin()
	list, err := testServer.Client.ListFunctionalities(adminCtx, filterByName("exportReport"))
	if err != nil {
		t.Fatalf("ListFunctionalities failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("rejected Register stored %d entries", len(list))
	}

	// Read-only registry listing is open to anonymous callers
	if _, err := testServer.Client.ListFunctionalities(anonCtx, filterByName("deleteUser")); err != nil {
		t.Errorf("anonymous ListFunctionalities failed: %v", err)
	}
}

// TestScenario_GuardFailsClosed checks that revoking a guard operation's own
// registry entry locks the operation for everyone, admins included.
func TestScenario_GuardFailsClosed(t *testing.T) {
	testServer := SetupE2ETest(t, WithCache())

	adminCtx, cancel := as(adminCaller)
	defer cancel()

	if err := testServer.Client.Revoke(adminCtx, "createAuthority", entities.AuthorityAdmin); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	_, err := testServer.Client.CreateAuthority(adminCtx, "ROLE_AUDITOR")
	assertCode(t, err, codes.PermissionDenied)

	if err := testServer.Client.Register(adminCtx, "createAuthority", entities.AuthorityAdmin); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := testServer.Client.CreateAuthority(adminCtx, "ROLE_AUDITOR"); err != nil {
		t.Errorf("CreateAuthority after re-registration failed: %v", err)
	}
}

// TestScenario_InvalidCheck checks that malformed checks are rejected rather than denied
func TestScenario_InvalidCheck(t *testing.T) {
	testServer := SetupE2ETest(t)

	ctx, cancel := as(anonymousCaller)
	defer cancel()

	_, err := testServer.Client.Check(ctx, "", entities.AuthorityAdmin, nil)
	assertCode(t, err, codes.InvalidArgument)

	_, err = testServer.Client.Check(ctx, "deleteUser", "", nil)
	assertCode(t, err, codes.InvalidArgument)
}
