// Пакет postgres — системный источник идентификации поверх PostgreSQL.
// Пользователи, подключения, группы и права хранятся в БД (слой
// repository); активные подключения живут только в памяти процесса.
// Пароли хранятся как SHA-256(соль || пароль).
package postgres

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/directory"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/repository"
)

const saltLength = 32

// Provider — источник идентификации PostgreSQL.
type Provider struct {
	id     string
	users  repository.UserRepository
	perms  repository.PermissionRepository
	conns  repository.ConnectionRepository
	groups repository.ConnectionGroupRepository
	active *directory.Memory[*model.ActiveConnection]
	logger *slog.Logger
}

// New создаёт источник поверх пула подключений.
func New(id string, pool *pgxpool.Pool, logger *slog.Logger) *Provider {
	return &Provider{
		id:     id,
		users:  repository.NewUserRepository(pool),
		perms:  repository.NewPermissionRepository(pool),
		conns:  repository.NewConnectionRepository(pool),
		groups: repository.NewConnectionGroupRepository(pool),
		active: directory.NewMemory[*model.ActiveConnection](),
		logger: logger.With(slog.String("component", "provider.postgres")),
	}
}

// Identifier возвращает идентификатор источника.
func (p *Provider) Identifier() string {
	return p.id
}

// Authenticate проверяет имя пользователя и пароль против БД.
// Неизвестное имя и неверный пароль неразличимы для вызывающего.
func (p *Provider) Authenticate(ctx context.Context, creds *auth.Credentials) (auth.UserContext, error) {
	hash, salt, err := p.users.GetCredentials(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("получение учётных данных: %w", err)
	}

	computed := hashPassword(salt, creds.Password)
	if subtle.ConstantTimeCompare(hash, computed) != 1 {
		return nil, auth.ErrInvalidCredentials
	}

	self, err := p.users.GetByUsername(ctx, creds.Username)
	if err != nil {
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	p.logger.Debug("Пользователь аутентифицирован",
		slog.String("username", self.Username),
		slog.String("remote_addr", creds.RemoteAddr),
	)
	return &userContext{provider: p, self: self}, nil
}

// ActiveConnections возвращает процессный каталог активных подключений.
// Шлюз регистрирует и снимает туннели напрямую через него.
func (p *Provider) ActiveConnections() *directory.Memory[*model.ActiveConnection] {
	return p.active
}

// hashPassword вычисляет SHA-256(соль || пароль).
func hashPassword(salt []byte, password string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// generateSalt возвращает криптослучайную соль.
func generateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("генерация соли: %w", err)
	}
	return salt, nil
}
