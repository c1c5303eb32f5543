// Package middleware содержит HTTP middleware сервиса HazirHay.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

const defaultTokenTTL = 24 * time.Hour

type claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет bearer-токен и кладёт личность вызывающего в контекст.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
}

// NewAuthMiddleware создаёт AuthMiddleware. Пустой секрет заменяется случайным ключом,
// тогда токены действуют только до перезапуска.
func NewAuthMiddleware(secret string, ttl time.Duration) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
	}
}

// IssueToken подписывает токен для указанной личности.
func (a *AuthMiddleware) IssueToken(id model.Identity) (string, time.Time, error) {
	if id.AccountID == "" || !id.Role.Valid() {
		return "", time.Time{}, errors.New("invalid identity")
	}

	now := time.Now()
	expireAt := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AccountID,
			ExpiresAt: jwt.NewNumericDate(expireAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expireAt, nil
}

// ParseToken проверяет подпись и срок действия токена.
func (a *AuthMiddleware) ParseToken(tokenStr string) (model.Identity, error) {
	if tokenStr == "" {
		return model.Identity{}, errors.New("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secretKey, nil
	})
	if err != nil {
		return model.Identity{}, err
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" || !c.Role.Valid() {
		return model.Identity{}, errors.New("invalid token claims")
	}

	return model.Identity{AccountID: c.Subject, Role: c.Role}, nil
}

// Middleware требует валидный токен в заголовке Authorization.
// Для websocket-рукопожатия токен можно передать параметром token.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.ParseToken(tokenFromRequest(r))
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// RequireRole пропускает только вызывающих с одной из ролей roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentityFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// WithIdentity возвращает контекст с личностью вызывающего.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentityFromContext извлекает личность вызывающего из контекста запроса.
func GetIdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}
