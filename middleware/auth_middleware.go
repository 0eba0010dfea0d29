package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/oidc"
	"github.com/upb/siamonitor/utils"
	"go.uber.org/zap"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*oidc.Claims, error)
	VerifyWithRoles(ctx context.Context, token string, required []string) (*oidc.Claims, error)
}

// AuthMiddleware authenticates requests and gates them on roles
type AuthMiddleware struct {
	verifier TokenVerifier
	identity auth.Options
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, identity auth.Options, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		identity: identity,
		logger:   logger,
	}
}

// RequireAuth verifies the bearer token and stores claims and identity in the
// request context
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.authenticate(nil, next)
}

// RequireRoles verifies the bearer token and requires every listed role in the
// token, using the verifier's role rules. It replaces RequireAuth on a route.
func (m *AuthMiddleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.authenticate(roles, next)
	}
}

// RequireRole requires role on the identity set by RequireAuth
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			id := GetIdentityFromContext(ctx)
			if id == nil {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !id.HasRole(role) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("sub", id.Subject),
					zap.String("required_role", role),
					zap.Strings("roles", id.Roles))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *AuthMiddleware) authenticate(roles []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing bearer token",
				zap.String("request_id", requestID))
			w.Header().Set("WWW-Authenticate", "Bearer")
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		var (
			claims *oidc.Claims
			err    error
		)
		if len(roles) > 0 {
			claims, err = m.verifier.VerifyWithRoles(ctx, token, roles)
		} else {
			claims, err = m.verifier.Verify(ctx, token)
		}
		if err != nil {
			m.writeVerifyError(w, requestID, err)
			return
		}

		id, err := auth.IdentityOf(claims, m.identity)
		if err != nil {
			m.writeVerifyError(w, requestID, err)
			return
		}

		ctx = WithClaims(ctx, claims)
		ctx = WithIdentity(ctx, id)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", id.Subject))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) writeVerifyError(w http.ResponseWriter, requestID string, err error) {
	status := http.StatusUnauthorized
	if !errors.Is(err, auth.ErrMissingSubject) {
		status = oidc.StatusFor(err)
	}

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("kind", oidc.Kind(err)),
		zap.Error(err),
	}

	switch status {
	case http.StatusForbidden:
		m.logger.Warn("required role missing", fields...)
		_ = utils.WriteForbidden(w, "Insufficient permissions")
	case http.StatusServiceUnavailable:
		m.logger.Error("signing keys unavailable", fields...)
		_ = utils.WriteServiceUnavailable(w, "Identity provider unavailable")
	default:
		m.logger.Warn("token verification failed", fields...)
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		_ = utils.WriteUnauthorized(w, "Invalid or expired token")
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
