package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

var shopkeeper = model.Identity{AccountID: "acc-1", Role: model.RoleShopkeeper}

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)

	token, expireAt, err := m.IssueToken(shopkeeper)
	require.NoError(t, err)
	assert.True(t, expireAt.After(time.Now()))

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetIdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("identity not in context")
		}
		if id != shopkeeper {
			t.Fatalf("identity from context = %+v, want %+v", id, shopkeeper)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	other := NewAuthMiddleware("other-secret", time.Hour)

	foreign, _, err := other.IssueToken(shopkeeper)
	require.NoError(t, err)
	valid, _, err := m.IssueToken(shopkeeper)
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: model.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
	}{
		{name: "no header"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage", header: "Bearer not-a-token"},
		{name: "foreign signature", header: "Bearer " + foreign},
		{name: "expired", header: "Bearer " + expiredToken},
		{name: "query token without upgrade", query: "?token=" + valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/protected"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_WebsocketQueryToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	token, _, err := m.IssueToken(shopkeeper)
	require.NoError(t, err)

	var got model.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetIdentityFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	r.Header.Set("Upgrade", "websocket")
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, shopkeeper, got)
}

func TestIssueToken_InvalidIdentity(t *testing.T) {
	m := NewAuthMiddleware("", 0)

	_, _, err := m.IssueToken(model.Identity{AccountID: "x", Role: "pirate"})
	assert.Error(t, err)

	_, _, err = m.IssueToken(model.Identity{Role: model.RoleAdmin})
	assert.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		identity *model.Identity
		want     int
	}{
		{name: "allowed", identity: &shopkeeper, want: http.StatusOK},
		{name: "other role", identity: &model.Identity{AccountID: "c", Role: model.RoleCustomer}, want: http.StatusForbidden},
		{name: "anonymous", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(model.RoleShopkeeper, model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), *tt.identity))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
