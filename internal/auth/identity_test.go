package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/siamonitor/oidc"
)

func claimsWith(realm []string, client map[string][]string) *oidc.Claims {
	c := &oidc.Claims{
		RegisteredClaims:  jwt.RegisteredClaims{Subject: "sub-1"},
		PreferredUsername: "anna",
		Email:             " anna@example.com ",
		GivenName:         "Anna",
		FamilyName:        "Ivanova",
	}
	if realm != nil {
		c.RealmAccess = &oidc.RoleSet{Roles: realm}
	}
	if client != nil {
		c.ResourceAccess = make(map[string]oidc.RoleSet)
		for id, roles := range client {
			c.ResourceAccess[id] = oidc.RoleSet{Roles: roles}
		}
	}
	return c
}

func TestIdentityOf(t *testing.T) {
	t.Run("copies display fields", func(t *testing.T) {
		id, err := IdentityOf(claimsWith([]string{"student"}, nil), Options{ClientID: "frontend"})
		require.NoError(t, err)

		assert.Equal(t, "sub-1", id.Subject)
		assert.Equal(t, "anna", id.Username)
		assert.Equal(t, "anna@example.com", id.Email)
		assert.Equal(t, "Anna Ivanova", id.FullName())
		assert.Equal(t, []string{"student"}, id.Roles)
	})

	t.Run("missing subject", func(t *testing.T) {
		c := claimsWith(nil, nil)
		c.Subject = ""
		_, err := IdentityOf(c, Options{})
		assert.ErrorIs(t, err, ErrMissingSubject)

		_, err = IdentityOf(nil, Options{})
		assert.ErrorIs(t, err, ErrMissingSubject)
	})

	t.Run("teacher in realm roles", func(t *testing.T) {
		c := claimsWith([]string{"teacher"}, nil)
		for _, fallback := range []bool{false, true} {
			id, err := IdentityOf(c, Options{ClientID: "frontend", ClientRoleFallback: fallback})
			require.NoError(t, err)
			assert.True(t, id.IsTeacher())
		}
	})

	t.Run("teacher only in client roles, realm-only policy", func(t *testing.T) {
		c := claimsWith(nil, map[string][]string{"frontend": {"teacher"}})
		id, err := IdentityOf(c, Options{ClientID: "frontend"})
		require.NoError(t, err)
		assert.False(t, id.IsTeacher())
		assert.Empty(t, id.Roles)
	})

	t.Run("teacher only in client roles, fallback policy", func(t *testing.T) {
		c := claimsWith(nil, map[string][]string{"frontend": {"teacher"}})
		id, err := IdentityOf(c, Options{ClientID: "frontend", ClientRoleFallback: true})
		require.NoError(t, err)
		assert.True(t, id.IsTeacher())
	})

	t.Run("fallback never merges with realm roles", func(t *testing.T) {
		c := claimsWith([]string{"student"}, map[string][]string{"frontend": {"teacher"}})
		id, err := IdentityOf(c, Options{ClientID: "frontend", ClientRoleFallback: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"student"}, id.Roles)
	})

	t.Run("roles are copied", func(t *testing.T) {
		c := claimsWith([]string{"student"}, nil)
		id, err := IdentityOf(c, Options{})
		require.NoError(t, err)
		c.RealmAccess.Roles[0] = "teacher"
		assert.Equal(t, []string{"student"}, id.Roles)
	})
}

func TestHasRole(t *testing.T) {
	id := &Identity{Subject: "s", Roles: []string{"student", "offline_access"}}

	assert.True(t, HasRole(id, RoleStudent))
	assert.False(t, HasRole(id, RoleTeacher))
	assert.False(t, HasRole(nil, RoleStudent))
	assert.False(t, HasRole(id, ""))
	assert.True(t, id.HasRole("offline_access"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Anna Ivanova", (&Identity{Subject: "s", GivenName: "Anna", FamilyName: "Ivanova"}).DisplayName())
	assert.Equal(t, "anna", (&Identity{Subject: "s", Username: "anna"}).DisplayName())
	assert.Equal(t, "s", (&Identity{Subject: "s"}).DisplayName())
}
