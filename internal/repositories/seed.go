package repositories

import (
	"context"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
)

// DefaultFunctionalities is the permission set shipped with the service.
// It mirrors migration 000002 and is used to seed non-SQL registries.
var DefaultFunctionalities = []entities.PermissionKey{
	{Operation: "registerAccount", Authority: entities.AuthorityAnonymous},
	{Operation: "activateAccount", Authority: entities.AuthorityAnonymous},
	{Operation: "isAuthenticated", Authority: entities.AuthorityAnonymous},
	{Operation: "getAccount", Authority: entities.AuthorityUser},
	{Operation: "saveAccount", Authority: entities.AuthorityUser},
	{Operation: "changePassword", Authority: entities.AuthorityAnonymous},
	{Operation: "finishPasswordReset", Authority: entities.AuthorityAnonymous},
	{Operation: "createUser", Authority: entities.AuthorityAdmin},
	{Operation: "updateUser", Authority: entities.AuthorityAdmin},
	{Operation: "getAllUsers", Authority: entities.AuthorityAdmin},
	{Operation: "getAuthorities", Authority: entities.AuthorityAdmin},
	{Operation: "getUser", Authority: entities.AuthorityAdmin},
	{Operation: "deleteUser", Authority: entities.AuthorityAdmin},
	{Operation: "createFunctionality", Authority: entities.AuthorityAdmin},
	{Operation: "updateFunctionality", Authority: entities.AuthorityAdmin},
	{Operation: "getAllFunctionalities", Authority: entities.AuthorityAnonymous},
	{Operation: "getFunctionality", Authority: entities.AuthorityAnonymous},
	{Operation: "deleteFunctionality", Authority: entities.AuthorityAdmin},
	{Operation: "checkPermission", Authority: entities.AuthorityAnonymous},
	{Operation: "registerPermission", Authority: entities.AuthorityAdmin},
	{Operation: "revokePermission", Authority: entities.AuthorityAdmin},
	{Operation: "createAuthority", Authority: entities.AuthorityAdmin},
	{Operation: "deleteAuthority", Authority: entities.AuthorityAdmin},
}

// SeedDefaults creates the built-in authorities and DefaultFunctionalities.
// It is idempotent.
func SeedDefaults(ctx context.Context, authorities AuthorityRepository, functionalities FunctionalityRepository) error {
	return SeedDefaultsAs(ctx, authorities, functionalities, entities.AuthorityAdmin, entities.AuthorityAnonymous)
}

// SeedDefaultsAs is SeedDefaults with the admin and anonymous authorities
// renamed, for deployments that configure other names for them.
func SeedDefaultsAs(ctx context.Context, authorities AuthorityRepository, functionalities FunctionalityRepository, admin, anonymous string) error {
	rename := func(name string) string {
		switch name {
		case entities.AuthorityAdmin:
			return admin
		case entities.AuthorityAnonymous:
			return anonymous
		}
		return name
	}

	for _, name := range []string{entities.AuthorityAdmin, entities.AuthorityUser, entities.AuthorityAnonymous} {
		if err := authorities.Create(ctx, &entities.Authority{Name: rename(name)}); err != nil {
			return fmt.Errorf("failed to seed authority %s: %w", rename(name), err)
		}
	}

	for _, key := range DefaultFunctionalities {
		if _, err := functionalities.Insert(ctx, key.Operation, rename(key.Authority)); err != nil {
			return fmt.Errorf("failed to seed functionality %s: %w", key.Operation, err)
		}
	}

	return nil
}
