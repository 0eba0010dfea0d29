package auth

import (
	"errors"
	"strings"

	"github.com/upb/siamonitor/oidc"
)

// ErrMissingSubject is returned when verified claims carry no sub
var ErrMissingSubject = errors.New("token has no subject")

// Identity is the normalized caller view used by the policy layer
type Identity struct {
	Subject    string
	Username   string
	Email      string
	GivenName  string
	FamilyName string
	Roles      []string
}

// Options controls how roles are derived
type Options struct {
	// ClientID is the client whose resource roles may stand in for realm roles
	ClientID string
	// ClientRoleFallback uses the client's roles when realm roles are empty
	ClientRoleFallback bool
}

// IdentityOf derives an Identity from verified claims
func IdentityOf(claims *oidc.Claims, opts Options) (*Identity, error) {
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMissingSubject
	}

	var roles []string
	if opts.ClientRoleFallback {
		roles = claims.EffectiveRoles(opts.ClientID)
	} else {
		roles = claims.RealmRoles()
	}

	return &Identity{
		Subject:    claims.Subject,
		Username:   claims.PreferredUsername,
		Email:      strings.TrimSpace(claims.Email),
		GivenName:  strings.TrimSpace(claims.GivenName),
		FamilyName: strings.TrimSpace(claims.FamilyName),
		Roles:      append([]string(nil), roles...),
	}, nil
}

// FullName joins given and family names, empty when both are absent
func (i *Identity) FullName() string {
	return strings.TrimSpace(i.GivenName + " " + i.FamilyName)
}

// DisplayName picks the best human-readable label
func (i *Identity) DisplayName() string {
	if name := i.FullName(); name != "" {
		return name
	}
	if i.Username != "" {
		return i.Username
	}
	return i.Subject
}
