package oidc

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrMalformedToken is returned when the token cannot be decoded
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnknownSigningKey is returned when the token's kid is not in the key set
	ErrUnknownSigningKey = errors.New("unknown signing key")

	// ErrSignatureInvalid is returned when the RS256 signature does not verify
	ErrSignatureInvalid = errors.New("invalid token signature")

	// ErrIssuerMismatch is returned when iss differs from the configured issuer
	ErrIssuerMismatch = errors.New("issuer mismatch")

	// ErrAudienceRejected is returned when aud names neither accepted audience
	ErrAudienceRejected = errors.New("audience rejected")

	// ErrTokenExpired is returned when exp is in the past
	ErrTokenExpired = errors.New("token expired")

	// ErrRoleMissing is returned when a required role is not granted
	ErrRoleMissing = errors.New("required role missing")
)

// KeyResolver looks up a verification key by key id
type KeyResolver interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// VerificationObserver is notified of every verification outcome
type VerificationObserver interface {
	ObserveVerification(err error)
}

// VerifierConfig holds configuration for Verifier
type VerifierConfig struct {
	Issuer           string
	FrontendClientID string
	BackendAudience  string

	// RequireExp rejects tokens that carry no exp claim
	RequireExp bool
	// RequireAudience rejects tokens that carry no aud claim
	RequireAudience bool
}

// Verifier validates bearer access tokens issued by the identity provider
type Verifier struct {
	cfg    VerifierConfig
	keys   KeyResolver
	clock  Clock
	parser *jwt.Parser
	logger *zap.Logger
	obs    VerificationObserver
}

// NewVerifier creates a token verifier
func NewVerifier(cfg VerifierConfig, keys KeyResolver, clock Clock, logger *zap.Logger) *Verifier {
	if cfg.FrontendClientID == "" {
		cfg.FrontendClientID = "frontend"
	}
	if cfg.BackendAudience == "" {
		cfg.BackendAudience = "account"
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Verifier{
		cfg:   cfg,
		keys:  keys,
		clock: clock,
		// time-based claims are checked below against the injected clock
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		logger: logger,
	}
}

// SetObserver attaches a verification observer (metrics)
func (v *Verifier) SetObserver(obs VerificationObserver) {
	v.obs = obs
}

// FrontendClientID returns the client id whose resource roles act as fallback
func (v *Verifier) FrontendClientID() string {
	return v.cfg.FrontendClientID
}

// Verify validates the token and returns its claims
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	return v.VerifyWithRoles(ctx, token, nil)
}

// VerifyWithRoles validates the token and additionally requires every role in
// required to be present in the effective role set.
func (v *Verifier) VerifyWithRoles(ctx context.Context, token string, required []string) (*Claims, error) {
	claims, err := v.verify(ctx, token, required)
	if v.obs != nil {
		v.obs.ObserveVerification(err)
	}
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *Verifier) verify(ctx context.Context, token string, required []string) (*Claims, error) {
	unverified, _, err := v.parser.ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: kid header not found", ErrUnknownSigningKey)
	}

	key, err := v.keys.PublicKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	if claims.Issuer != v.cfg.Issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrIssuerMismatch, v.cfg.Issuer, claims.Issuer)
	}

	if err := v.checkAudience(claims.Audience); err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil {
		if v.cfg.RequireExp {
			return nil, fmt.Errorf("%w: exp claim missing", ErrTokenExpired)
		}
	} else if v.clock.Now().Unix() > claims.ExpiresAt.Unix() {
		return nil, ErrTokenExpired
	}

	if len(required) > 0 {
		granted := claims.EffectiveRoles(v.cfg.FrontendClientID)
		for _, role := range required {
			if !contains(granted, role) {
				return nil, fmt.Errorf("%w: %s", ErrRoleMissing, role)
			}
		}
	}

	return claims, nil
}

func (v *Verifier) checkAudience(aud jwt.ClaimStrings) error {
	// "aud": "" decodes to [""] and counts as absent, like [] and null
	if len(aud) == 0 || (len(aud) == 1 && aud[0] == "") {
		if v.cfg.RequireAudience {
			return fmt.Errorf("%w: aud claim missing", ErrAudienceRejected)
		}
		return nil
	}
	if contains(aud, v.cfg.FrontendClientID) || contains(aud, v.cfg.BackendAudience) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrAudienceRejected, []string(aud))
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Kind returns a short label for a verification error, used for logs and metrics
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrKeySetUnavailable):
		return "key_set_unavailable"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrUnknownSigningKey):
		return "unknown_key"
	case errors.Is(err, ErrSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, ErrIssuerMismatch):
		return "issuer_mismatch"
	case errors.Is(err, ErrAudienceRejected):
		return "audience_rejected"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrRoleMissing):
		return "role_missing"
	default:
		return "other"
	}
}

// StatusFor maps a verification error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrRoleMissing):
		return http.StatusForbidden
	case errors.Is(err, ErrKeySetUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}
