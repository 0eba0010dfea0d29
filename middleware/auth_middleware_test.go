package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/oidc"
	"go.uber.org/zap"
)

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (*oidc.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oidc.Claims), args.Error(1)
}

func (m *MockTokenVerifier) VerifyWithRoles(ctx context.Context, token string, required []string) (*oidc.Claims, error) {
	args := m.Called(ctx, token, required)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oidc.Claims), args.Error(1)
}

func claimsFor(sub string, roles ...string) *oidc.Claims {
	return &oidc.Claims{
		RegisteredClaims:  jwt.RegisteredClaims{Subject: sub, Issuer: "https://kc.test/realms/course"},
		PreferredUsername: sub + "-name",
		RealmAccess:       &oidc.RoleSet{Roles: roles},
	}
}

func okHandler(t *testing.T, check func(r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token stores claims and identity", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		m := NewAuthMiddleware(verifier, auth.Options{}, logger)
		verifier.On("Verify", mock.Anything, "good-token").Return(claimsFor("s-1", auth.RoleStudent), nil)

		handler := m.RequireAuth(okHandler(t, func(r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			assert.NotNil(t, claims)
			id := GetIdentityFromContext(r.Context())
			if assert.NotNil(t, id) {
				assert.Equal(t, "s-1", id.Subject)
				assert.Equal(t, "s-1-name", id.Username)
				assert.True(t, id.HasRole(auth.RoleStudent))
			}
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		verifier.AssertExpectations(t)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		m := NewAuthMiddleware(verifier, auth.Options{}, logger)
		verifier.On("Verify", mock.Anything, "good-token").Return(claimsFor("s-1"), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "bearer good-token")
		w := httptest.NewRecorder()
		m.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	headerCases := []struct {
		name   string
		header string
	}{
		{name: "no header"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "bearer without token", header: "Bearer "},
		{name: "token without scheme", header: "good-token"},
	}
	for _, tc := range headerCases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := new(MockTokenVerifier)
			m := NewAuthMiddleware(verifier, auth.Options{}, logger)

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			m.RequireAuth(okHandler(t, func(*http.Request) { t.Fatal("handler must not run") })).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
		})
	}

	statusCases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "expired", err: fmt.Errorf("%w: at 100", oidc.ErrTokenExpired), status: http.StatusUnauthorized},
		{name: "bad signature", err: oidc.ErrSignatureInvalid, status: http.StatusUnauthorized},
		{name: "issuer mismatch", err: oidc.ErrIssuerMismatch, status: http.StatusUnauthorized},
		{name: "keys unavailable", err: fmt.Errorf("%w: status 502", oidc.ErrKeySetUnavailable), status: http.StatusServiceUnavailable},
	}
	for _, tc := range statusCases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := new(MockTokenVerifier)
			m := NewAuthMiddleware(verifier, auth.Options{}, logger)
			verifier.On("Verify", mock.Anything, "tok").Return(nil, tc.err)

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.Header.Set("Authorization", "Bearer tok")
			w := httptest.NewRecorder()
			m.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}

	t.Run("claims without subject", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		m := NewAuthMiddleware(verifier, auth.Options{}, logger)
		verifier.On("Verify", mock.Anything, "tok").Return(claimsFor(""), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		m.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("client role fallback", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		m := NewAuthMiddleware(verifier, auth.Options{ClientID: "frontend", ClientRoleFallback: true}, logger)
		claims := claimsFor("t-1")
		claims.RealmAccess = nil
		claims.ResourceAccess = map[string]oidc.RoleSet{"frontend": {Roles: []string{auth.RoleTeacher}}}
		verifier.On("Verify", mock.Anything, "tok").Return(claims, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		m.RequireAuth(okHandler(t, func(r *http.Request) {
			assert.True(t, GetIdentityFromContext(r.Context()).IsTeacher())
		})).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRoles(t *testing.T) {
	logger := zap.NewNop()

	t.Run("granted", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		m := NewAuthMiddleware(verifier, auth.Options{}, logger)
		verifier.On("VerifyWithRoles", mock.Anything, "tok", []string{auth.RoleTeacher}).
			Return(claimsFor("t-1", auth.RoleTeacher), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/teacher/ping", nil)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		m.RequireRoles(auth.RoleTeacher)(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("missing role is forbidden", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		m := NewAuthMiddleware(verifier, auth.Options{}, logger)
		verifier.On("VerifyWithRoles", mock.Anything, "tok", []string{auth.RoleTeacher}).
			Return(nil, fmt.Errorf("%w: teacher", oidc.ErrRoleMissing))

		req := httptest.NewRequest(http.MethodGet, "/api/teacher/ping", nil)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		m.RequireRoles(auth.RoleTeacher)(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	logger := zap.NewNop()
	m := NewAuthMiddleware(new(MockTokenVerifier), auth.Options{}, logger)

	t.Run("role present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/wipe", nil)
		req = req.WithContext(WithIdentity(req.Context(), &auth.Identity{Subject: "t-1", Roles: []string{auth.RoleTeacher}}))
		w := httptest.NewRecorder()
		m.RequireRole(auth.RoleTeacher)(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("role absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/wipe", nil)
		req = req.WithContext(WithIdentity(req.Context(), &auth.Identity{Subject: "s-1", Roles: []string{auth.RoleStudent}}))
		w := httptest.NewRecorder()
		m.RequireRole(auth.RoleTeacher)(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/wipe", nil)
		w := httptest.NewRecorder()
		m.RequireRole(auth.RoleTeacher)(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

type recordingObserver struct {
	route  string
	method string
	status int
}

func (o *recordingObserver) ObserveRequest(route, method string, status int, _ time.Duration) {
	o.route, o.method, o.status = route, method, status
}

func TestMetrics(t *testing.T) {
	obs := &recordingObserver{}

	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Get("/api/projects/{projectID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/projects/42", nil))

	assert.Equal(t, "/api/projects/{projectID}", obs.route)
	assert.Equal(t, http.MethodGet, obs.method)
	assert.Equal(t, http.StatusTeapot, obs.status)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetClaimsFromContext(ctx))
	assert.Nil(t, GetIdentityFromContext(ctx))
	assert.Empty(t, GetRequestIDFromContext(ctx))

	id := &auth.Identity{Subject: "s-1"}
	assert.Same(t, id, GetIdentityFromContext(WithIdentity(ctx, id)))
}
