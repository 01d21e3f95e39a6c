package entities

import (
	"fmt"
	"time"
)

// PermissionKey identifies a permission registry entry.
// Matching is exact and case-sensitive on both parts.
type PermissionKey struct {
	Operation string
	Authority string
}

// String returns the key as operation@authority
func (k PermissionKey) String() string {
	return fmt.Sprintf("%s@%s", k.Operation, k.Authority)
}

// Functionality represents a guardable operation paired with the authority
// permitted to invoke it. One row exists per allowed authority.
// Example: deleteUser@ROLE_ADMIN
type Functionality struct {
	ID            int64  // Surrogate identifier (0 until stored)
	Name          string `validate:"required,max=100" label:"functionality name"`
	AuthorityName string `validate:"required,max=50,excludesall=0x2C" label:"authority name"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the registry key of the functionality
func (f *Functionality) Key() PermissionKey {
	return PermissionKey{Operation: f.Name, Authority: f.AuthorityName}
}

// String returns a string representation of the functionality
func (f *Functionality) String() string {
	return f.Key().String()
}

// Validate checks if the functionality is valid
func (f *Functionality) Validate() error {
	return validateStruct(f)
}
