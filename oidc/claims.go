package oidc

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleSet is the {"roles": [...]} object Keycloak uses for realm and client roles
type RoleSet struct {
	Roles []string `json:"roles,omitempty"`
}

// Claims is the verified payload of an access token. Optional nested role
// maps are pointers or maps so absence is distinguishable from empty.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string             `json:"preferred_username,omitempty"`
	Email             string             `json:"email,omitempty"`
	GivenName         string             `json:"given_name,omitempty"`
	FamilyName        string             `json:"family_name,omitempty"`
	RealmAccess       *RoleSet           `json:"realm_access,omitempty"`
	ResourceAccess    map[string]RoleSet `json:"resource_access,omitempty"`
}

// RealmRoles returns realm-level roles, or nil
func (c *Claims) RealmRoles() []string {
	if c == nil || c.RealmAccess == nil {
		return nil
	}
	return c.RealmAccess.Roles
}

// ClientRoles returns the roles granted for clientID, or nil
func (c *Claims) ClientRoles(clientID string) []string {
	if c == nil || c.ResourceAccess == nil {
		return nil
	}
	return c.ResourceAccess[clientID].Roles
}

// EffectiveRoles returns realm roles, or the client's roles when the realm
// list is empty. The two are alternatives and never merged.
func (c *Claims) EffectiveRoles(clientID string) []string {
	if roles := c.RealmRoles(); len(roles) > 0 {
		return roles
	}
	return c.ClientRoles(clientID)
}
