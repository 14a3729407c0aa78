// auth.go — middleware аутентификации по токену сессии.
// Извлекает Bearer token, разрешает его в сессию через реестр и помещает
// сессию в контекст запроса для downstream handlers. Криптографии здесь
// нет: токен — непрозрачный идентификатор процессной сессии.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/remgate/access-module/internal/api/errors"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// contextKeySession — разрешённая сессия в контексте запроса.
	contextKeySession contextKey = "session"
	// contextKeyToken — токен сессии в контексте запроса.
	contextKeyToken contextKey = "session_token"
)

// SessionResolver — разрешение токена в сессию.
// Реализуется service.Service.
type SessionResolver interface {
	// Session возвращает сессию по токену или ошибку,
	// если токен неизвестен или истёк.
	Session(token string) (*session.Session, error)
}

// TokenAuth — middleware аутентификации по токену сессии.
type TokenAuth struct {
	resolver SessionResolver
	logger   *slog.Logger
}

// NewTokenAuth создаёт middleware аутентификации.
func NewTokenAuth(resolver SessionResolver, logger *slog.Logger) *TokenAuth {
	return &TokenAuth{
		resolver: resolver,
		logger:   logger.With(slog.String("component", "token_auth")),
	}
}

// Middleware возвращает HTTP middleware аутентификации по токену.
// Отсутствующий, неизвестный и истёкший токен неразличимы в ответе.
func (a *TokenAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierrors.Unauthorized(w, "Требуется токен сессии")
				return
			}

			sess, err := a.resolver.Session(token)
			if err != nil {
				a.logger.Debug("Токен сессии не разрешён",
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Токен сессии не найден или истёк")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeySession, sess)
			ctx = context.WithValue(ctx, contextKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken извлекает токен из заголовка Authorization (Bearer <token>).
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// SessionFromContext извлекает сессию из контекста запроса.
// Возвращает nil, если запрос прошёл мимо middleware.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(contextKeySession).(*session.Session)
	return sess
}

// TokenFromContext извлекает токен сессии из контекста запроса.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextKeyToken).(string)
	return token
}
