// Пакет auth — контракт источника идентификации (identity source).
// Источник — подключаемый провайдер аутентификации: системный (PostgreSQL),
// in-memory или внешний (OIDC). Успешная аутентификация даёт UserContext —
// аутентифицированное представление источника для одного пользователя.
package auth

import (
	"context"
	"errors"

	"github.com/bigkaa/remgate/access-module/internal/directory"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
)

// ErrInvalidCredentials — предъявленные учётные данные не приняты источником.
// Наружу всегда нормализуется в общий Forbidden: канал ошибок не должен
// подсказывать, существует ли имя пользователя.
var ErrInvalidCredentials = errors.New("учётные данные не приняты")

// Credentials — учётные данные, предъявляемые источнику идентификации.
// RemoteAddr — транспортный контекст запроса, передаётся как есть
// (источник может учитывать адрес клиента при проверке).
type Credentials struct {
	// Username — имя пользователя (для парольной аутентификации)
	Username string
	// Password — пароль (для парольной аутентификации)
	Password string
	// Token — подписанное JWT-утверждение (для SSO-источников)
	Token string
	// RemoteAddr — адрес клиента из транспортного слоя
	RemoteAddr string
}

// Provider — источник идентификации.
type Provider interface {
	// Identifier возвращает уникальный идентификатор источника
	// (например "postgres", "oidc").
	Identifier() string
	// Authenticate проверяет учётные данные и возвращает UserContext.
	// При отказе возвращает ошибку, оборачивающую ErrInvalidCredentials.
	Authenticate(ctx context.Context, creds *Credentials) (UserContext, error)
}

// UserContext — аутентифицированное представление одного источника,
// привязанное к одному пользователю. Владеет каталогами, которые этот
// пользователь видит, и его собственными наборами прав. Контекст живёт,
// пока жива сессия, и безопасен для конкурентного чтения.
type UserContext interface {
	// Provider возвращает источник, создавший контекст.
	Provider() Provider
	// Self возвращает пользователя, выполняющего операции.
	Self() *model.User
	// Permissions возвращает живые наборы прав указанного пользователя
	// или directory.ErrNotFound, если пользователь отсутствует/невидим.
	Permissions(ctx context.Context, username string) (*permission.Bundle, error)
	// Users — каталог пользователей.
	Users() directory.Directory[*model.User]
	// Connections — каталог подключений.
	Connections() directory.Directory[*model.Connection]
	// ConnectionGroups — каталог групп подключений.
	ConnectionGroups() directory.Directory[*model.ConnectionGroup]
	// ActiveConnections — каталог активных подключений.
	ActiveConnections() directory.Directory[*model.ActiveConnection]
}
