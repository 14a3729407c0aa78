// Пакет session — процессный реестр аутентифицированных сессий.
// Сессия создаётся при успешной аутентификации, разрушается при logout или
// по истечении TTL. Одна сессия разделяется всеми конкурентными запросами
// с одним токеном: мутации реестра сериализуются, чтение разрешённого
// контекста конкурентно. Фоновой очистки нет — истечение проверяется
// лениво при разрешении токена.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/remgate/access-module/internal/auth"
)

// ErrInvalidToken — токен неизвестен реестру или сессия истекла.
var ErrInvalidToken = errors.New("токен сессии не найден или истёк")

// Session — одна аутентифицированная сессия: отображение
// идентификатор источника → UserContext.
type Session struct {
	mu         sync.RWMutex
	contexts   map[string]auth.UserContext
	lastAccess time.Time
}

// newSession создаёт сессию с контекстами источников.
func newSession(contexts map[string]auth.UserContext) *Session {
	return &Session{
		contexts:   contexts,
		lastAccess: time.Now(),
	}
}

// UserContext возвращает контекст указанного источника.
// Второе значение false, если источник неизвестен этой сессии.
func (s *Session) UserContext(providerID string) (auth.UserContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uc, ok := s.contexts[providerID]
	return uc, ok
}

// ProviderIdentifiers возвращает идентификаторы источников сессии.
func (s *Session) ProviderIdentifiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	return ids
}

// touch обновляет время последнего обращения.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// expired сообщает, истекла ли сессия относительно ttl.
func (s *Session) expired(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.Since(s.lastAccess) > ttl
}

// Registry — процессный реестр токен → сессия.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewRegistry создаёт реестр сессий с указанным TTL бездействия.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create регистрирует новую сессию и возвращает её токен.
func (r *Registry) Create(contexts map[string]auth.UserContext) string {
	token := uuid.NewString()

	r.mu.Lock()
	r.sessions[token] = newSession(contexts)
	r.mu.Unlock()

	return token
}

// Get разрешает токен в сессию, обновляя время последнего обращения.
// Истёкшая сессия удаляется и неотличима от неизвестного токена.
func (r *Registry) Get(token string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidToken
	}

	if s.expired(r.ttl) {
		r.mu.Lock()
		delete(r.sessions, token)
		r.mu.Unlock()
		return nil, ErrInvalidToken
	}

	s.touch()
	return s, nil
}

// Destroy удаляет сессию по токену (logout).
// Возвращает ErrInvalidToken, если токен неизвестен.
func (r *Registry) Destroy(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[token]; !ok {
		return ErrInvalidToken
	}
	delete(r.sessions, token)
	return nil
}

// Len возвращает количество живых сессий (для метрик и тестов).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
