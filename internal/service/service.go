// Пакет service — бизнес-логика Access Module.
// service.go — аутентификация, жизненный цикл сессий и разрешение
// объектов. Разрешение идентификаторов идёт через единственную точку
// retrieve: отсутствие и невидимость объекта неразличимы снаружи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/directory"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// Service — сервисный слой Access Module.
// Объединяет источники идентификации и реестр сессий.
type Service struct {
	providers []auth.Provider
	sessions  *session.Registry
	logger    *slog.Logger
}

// New создаёт сервисный слой.
// providers — источники идентификации в порядке опроса.
func New(providers []auth.Provider, sessions *session.Registry, logger *slog.Logger) *Service {
	return &Service{
		providers: providers,
		sessions:  sessions,
		logger:    logger.With(slog.String("component", "service")),
	}
}

// Authenticate предъявляет учётные данные всем источникам и создаёт сессию
// из контекстов источников, принявших их. Возвращает токен и идентификаторы
// доступных источников. Если ни один источник не принял учётные данные —
// общий ErrForbidden без деталей.
func (s *Service) Authenticate(ctx context.Context, creds *auth.Credentials) (string, []string, error) {
	contexts := make(map[string]auth.UserContext)

	for _, p := range s.providers {
		uc, err := p.Authenticate(ctx, creds)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				continue
			}
			// Неожиданный сбой источника — внутренняя ошибка, не отказ
			s.logger.Error("Сбой источника идентификации при аутентификации",
				slog.String("provider", p.Identifier()),
				slog.String("error", err.Error()),
			)
			return "", nil, fmt.Errorf("%w: источник %s", ErrInternal, p.Identifier())
		}
		contexts[p.Identifier()] = uc
	}

	if len(contexts) == 0 {
		return "", nil, ErrForbidden
	}

	token := s.sessions.Create(contexts)

	sources := make([]string, 0, len(contexts))
	for id := range contexts {
		sources = append(sources, id)
	}

	s.logger.Info("Сессия создана",
		slog.String("username", creds.Username),
		slog.Int("sources", len(sources)),
	)
	return token, sources, nil
}

// Logout разрушает сессию по токену.
func (s *Service) Logout(token string) error {
	if err := s.sessions.Destroy(token); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// Session разрешает токен в сессию или возвращает ErrUnauthorized.
func (s *Service) Session(token string) (*session.Session, error) {
	sess, err := s.sessions.Get(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return sess, nil
}

// UserContext возвращает контекст указанного источника в рамках сессии.
// Неизвестный сессии источник — ErrNotFound.
func (s *Service) UserContext(sess *session.Session, providerID string) (auth.UserContext, error) {
	uc, ok := sess.UserContext(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: источник %q", ErrNotFound, providerID)
	}
	return uc, nil
}

// retrieve — единственная точка разрешения идентификатора в объект.
// Каталог обязан возвращать directory.ErrNotFound как для отсутствующих,
// так и для невидимых объектов; здесь оба случая становятся одним
// ErrNotFound без различий в канале ошибок.
func retrieve[T directory.Object](ctx context.Context, d directory.Directory[T], identifier string) (T, error) {
	obj, err := d.Get(ctx, identifier)
	if err != nil {
		var zero T
		if errors.Is(err, directory.ErrNotFound) {
			return zero, fmt.Errorf("%w: %q", ErrNotFound, identifier)
		}
		return zero, fmt.Errorf("%w: получение объекта %q", ErrInternal, identifier)
	}
	return obj, nil
}

// mapDirectoryErr переводит ошибки каталога в ошибки сервисного слоя.
func mapDirectoryErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, directory.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, directory.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
}
