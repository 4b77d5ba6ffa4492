package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type anonymous struct{}

func (anonymous) Subject() string { return "anon" }

func TestGuard_RequireUser(t *testing.T) {
	g := NewGuard(nil)
	assert.ErrorIs(t, g.RequireUser(), ErrAuthenticationRequired)
	_, err := g.UserOrFail()
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	alice := Principal{ID: "alice"}
	g.ForUser(alice)
	require.NoError(t, g.RequireUser())
	user, err := g.UserOrFail()
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Subject())
	assert.Equal(t, alice, g.User())
}

func TestGuard_RequireAbility(t *testing.T) {
	tests := []struct {
		name       string
		user       User
		allowGuest bool
		want       error
	}{
		{"guest rejected", nil, false, ErrAuthenticationRequired},
		{"guest allowed", nil, true, nil},
		{"has ability", Principal{ID: "a", Abilities: []string{"search:users"}}, false, nil},
		{"wildcard", Principal{ID: "a", Abilities: []string{"*"}}, false, nil},
		{"lacks ability", Principal{ID: "a", Abilities: []string{"search:orders"}}, true, ErrAuthorizationDenied},
		{"not authorizable", anonymous{}, true, ErrAuthorizationDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGuard(tt.user).RequireAbility("search:users", tt.allowGuest)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGuard_RequireAnyAbility(t *testing.T) {
	g := NewGuard(Principal{ID: "a", Abilities: []string{"read"}})
	assert.NoError(t, g.RequireAnyAbility([]string{"write", "read"}, false))
	assert.ErrorIs(t, g.RequireAnyAbility([]string{"write"}, false), ErrAuthorizationDenied)
	assert.ErrorIs(t, g.RequireAnyAbility(nil, false), ErrAuthorizationDenied)
}

func TestTokens_Authenticate(t *testing.T) {
	tokens := Tokens{"s3cret": {ID: "ops", Abilities: []string{"*"}}}

	user, ok := tokens.Authenticate("s3cret")
	require.True(t, ok)
	assert.Equal(t, "ops", user.Subject())

	_, ok = tokens.Authenticate("")
	assert.False(t, ok)
	_, ok = tokens.Authenticate("nope")
	assert.False(t, ok)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	ctx = WithUser(ctx, Principal{ID: "bob"})
	require.NotNil(t, FromContext(ctx))
	assert.Equal(t, "bob", FromContext(ctx).Subject())
}
