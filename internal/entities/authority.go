package entities

import "time"

// Built-in authority names seeded by the initial migration.
const (
	AuthorityAdmin     = "ROLE_ADMIN"
	AuthorityUser      = "ROLE_USER"
	AuthorityAnonymous = "ROLE_ANONYMOUS"
)

// Authority represents a named role that can be granted to a caller
// Example: ROLE_ADMIN
type Authority struct {
	Name      string `validate:"required,max=50,excludesall=0x2C" label:"authority name"`
	CreatedAt time.Time
}

// Validate checks if the authority is valid
func (a *Authority) Validate() error {
	return validateStruct(a)
}
