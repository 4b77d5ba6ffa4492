// Package auth gates filter compilation on the caller's identity.
package auth

import (
	"context"
	"errors"
	"slices"
)

var (
	// ErrAuthenticationRequired means no user is bound and guests are not
	// allowed.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrAuthorizationDenied means the user lacks the required ability.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// User is an authenticated caller.
type User interface {
	Subject() string
}

// Authorizable users can be checked for abilities. A User that does not
// implement it is denied every ability.
type Authorizable interface {
	User
	Can(ability string) bool
}

// Principal is a User with a fixed ability list.
type Principal struct {
	ID        string   `mapstructure:"subject" json:"subject"`
	Abilities []string `mapstructure:"abilities" json:"abilities"`
}

// Subject implements User.
func (p Principal) Subject() string { return p.ID }

// Can implements Authorizable. The ability "*" grants everything.
func (p Principal) Can(ability string) bool {
	return slices.Contains(p.Abilities, ability) || slices.Contains(p.Abilities, "*")
}

// Guard holds the user bound to one unit of work.
type Guard struct {
	user User
}

// NewGuard returns a guard bound to user, which may be nil for a guest.
func NewGuard(user User) *Guard {
	return &Guard{user: user}
}

// ForUser rebinds the guard. nil makes the caller a guest.
func (g *Guard) ForUser(user User) {
	g.user = user
}

// User returns the bound user or nil.
func (g *Guard) User() User {
	return g.user
}

// RequireUser fails unless a user is bound.
func (g *Guard) RequireUser() error {
	if g.user == nil {
		return ErrAuthenticationRequired
	}
	return nil
}

// UserOrFail returns the bound user or ErrAuthenticationRequired.
func (g *Guard) UserOrFail() (User, error) {
	if err := g.RequireUser(); err != nil {
		return nil, err
	}
	return g.user, nil
}

// RequireAbility fails unless the user can perform ability. A guest passes
// only when allowGuest is set.
func (g *Guard) RequireAbility(ability string, allowGuest bool) error {
	return g.RequireAnyAbility([]string{ability}, allowGuest)
}

// RequireAnyAbility fails unless the user can perform at least one of
// abilities. A guest passes only when allowGuest is set.
func (g *Guard) RequireAnyAbility(abilities []string, allowGuest bool) error {
	if g.user == nil {
		if allowGuest {
			return nil
		}
		return ErrAuthenticationRequired
	}
	authz, ok := g.user.(Authorizable)
	if !ok {
		return ErrAuthorizationDenied
	}
	for _, ability := range abilities {
		if authz.Can(ability) {
			return nil
		}
	}
	return ErrAuthorizationDenied
}

// Tokens maps bearer tokens to principals.
type Tokens map[string]Principal

// Authenticate returns the principal for token.
func (t Tokens) Authenticate(token string) (User, bool) {
	if token == "" {
		return nil, false
	}
	p, ok := t[token]
	if !ok {
		return nil, false
	}
	return p, true
}

type ctxKey struct{}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// FromContext returns the user stored by WithUser, or nil.
func FromContext(ctx context.Context) User {
	user, _ := ctx.Value(ctxKey{}).(User)
	return user
}
