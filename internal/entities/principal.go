package entities

// Principal is the acting caller of a guarded operation.
// An empty authority set represents an unauthenticated caller.
type Principal struct {
	Subject     string
	Authorities []string
}

// AnonymousPrincipal returns a caller with no subject and no authorities
func AnonymousPrincipal() Principal {
	return Principal{}
}

// IsAnonymous reports whether the caller carries no identity at all
func (p Principal) IsAnonymous() bool {
	return p.Subject == "" && len(p.Authorities) == 0
}

// HasAuthority reports whether the caller literally holds the named authority.
// No hierarchy is applied.
func (p Principal) HasAuthority(name string) bool {
	for _, a := range p.Authorities {
		if a == name {
			return true
		}
	}
	return false
}
