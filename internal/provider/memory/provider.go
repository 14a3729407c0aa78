// Пакет memory — in-memory источник идентификации.
// Системой записи не является: используется тестами и как строительный
// блок для SSO-источников, которым нужен лёгкий контекст без БД.
// Все пользователи источника видят все его каталоги.
package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/directory"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
)

// Provider — in-memory источник идентификации.
type Provider struct {
	id string

	users       *directory.Memory[*model.User]
	connections *directory.Memory[*model.Connection]
	groups      *directory.Memory[*model.ConnectionGroup]
	active      *directory.Memory[*model.ActiveConnection]

	mu      sync.RWMutex
	bundles map[string]*permission.Bundle
}

// New создаёт пустой in-memory источник с указанным идентификатором.
// Корневая группа подключений создаётся сразу.
func New(id string) *Provider {
	p := &Provider{
		id:          id,
		users:       directory.NewMemory[*model.User](),
		connections: directory.NewMemory[*model.Connection](),
		groups:      directory.NewMemory[*model.ConnectionGroup](),
		active:      directory.NewMemory[*model.ActiveConnection](),
		bundles:     make(map[string]*permission.Bundle),
	}

	// Корневая группа — всегда существует
	_ = p.groups.Add(context.Background(), &model.ConnectionGroup{
		ID:   model.RootGroupIdentifier,
		Name: model.RootGroupIdentifier,
		Type: model.GroupTypeOrganizational,
	})

	return p
}

// Identifier возвращает идентификатор источника.
func (p *Provider) Identifier() string {
	return p.id
}

// AddUser регистрирует пользователя с пустыми наборами прав.
// Пароль берётся из user.Password и хранится как есть (источник не
// персистентный, хеширование — забота системного источника).
func (p *Provider) AddUser(user *model.User) error {
	if err := p.users.Add(context.Background(), user); err != nil {
		return fmt.Errorf("регистрация пользователя %q: %w", user.Username, err)
	}

	p.mu.Lock()
	p.bundles[user.Username] = emptyBundle()
	p.mu.Unlock()
	return nil
}

// Authenticate проверяет имя пользователя и пароль.
func (p *Provider) Authenticate(ctx context.Context, creds *auth.Credentials) (auth.UserContext, error) {
	user, err := p.users.Get(ctx, creds.Username)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	// Сравнение постоянного времени: канал ошибок не должен различать
	// неизвестное имя и неверный пароль
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(creds.Password)) != 1 {
		return nil, auth.ErrInvalidCredentials
	}

	return &userContext{provider: p, self: user}, nil
}

// Users возвращает каталог пользователей источника.
func (p *Provider) Users() directory.Directory[*model.User] {
	return p.users
}

// bundle возвращает наборы прав пользователя, создавая пустые при первом
// обращении (пользователь мог быть добавлен через каталог напрямую).
func (p *Provider) bundle(username string) *permission.Bundle {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.bundles[username]
	if !ok {
		b = emptyBundle()
		p.bundles[username] = b
	}
	return b
}

func emptyBundle() *permission.Bundle {
	return &permission.Bundle{
		System:           permission.NewMemorySystemSet(),
		Connection:       permission.NewMemoryObjectSet(),
		ConnectionGroup:  permission.NewMemoryObjectSet(),
		ActiveConnection: permission.NewMemoryObjectSet(),
		User:             permission.NewMemoryObjectSet(),
	}
}

// userContext — аутентифицированное представление in-memory источника.
type userContext struct {
	provider *Provider
	self     *model.User
}

// NewUserContext создаёт контекст для уже известного пользователя.
// Используется SSO-источниками, строящими контекст без пароля.
func NewUserContext(p *Provider, self *model.User) auth.UserContext {
	return &userContext{provider: p, self: self}
}

func (c *userContext) Provider() auth.Provider { return c.provider }
func (c *userContext) Self() *model.User       { return c.self }

// Permissions возвращает живые наборы прав пользователя.
func (c *userContext) Permissions(ctx context.Context, username string) (*permission.Bundle, error) {
	if _, err := c.provider.users.Get(ctx, username); err != nil {
		return nil, err
	}
	return c.provider.bundle(username), nil
}

func (c *userContext) Users() directory.Directory[*model.User] {
	return c.provider.users
}

func (c *userContext) Connections() directory.Directory[*model.Connection] {
	return c.provider.connections
}

func (c *userContext) ConnectionGroups() directory.Directory[*model.ConnectionGroup] {
	return c.provider.groups
}

func (c *userContext) ActiveConnections() directory.Directory[*model.ActiveConnection] {
	return c.provider.active
}
