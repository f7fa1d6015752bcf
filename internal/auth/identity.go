package auth

import "github.com/spec-kit/issue-tracker/internal/domain"

// Identity is the acting user as seen by the services.
type Identity interface {
	CurrentUser() domain.User
	HasCapability(name string) bool
}

// Principal represents the authenticated caller.
type Principal struct {
	User        domain.User
	Permissions map[string]struct{}
}

// NewPrincipal builds a principal holding the given capabilities.
func NewPrincipal(user domain.User, permissions ...string) *Principal {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return &Principal{User: user, Permissions: set}
}

// CurrentUser implements Identity.
func (p *Principal) CurrentUser() domain.User {
	return p.User
}

// HasCapability implements Identity.
func (p *Principal) HasCapability(name string) bool {
	_, ok := p.Permissions[name]
	return ok
}
