// context.go — аутентифицированное представление источника PostgreSQL.
// Каталоги применяют правило видимости: не администратор видит только
// объекты, на которые держит хотя бы одно объектное право. Невидимый
// объект неотличим от отсутствующего.
package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/directory"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/repository"
)

// allObjectPermissions — все типы объектных прав (для проверки «хотя бы одно»).
var allObjectPermissions = []string{
	string(permission.ObjectRead),
	string(permission.ObjectUpdate),
	string(permission.ObjectDelete),
	string(permission.ObjectAdminister),
}

// userContext — контекст одного пользователя источника PostgreSQL.
type userContext struct {
	provider *Provider
	self     *model.User
}

func (c *userContext) Provider() auth.Provider { return c.provider }
func (c *userContext) Self() *model.User       { return c.self }

// Permissions возвращает живые наборы прав пользователя.
// Цель обязана быть видимой вызывающему: невидимый пользователь
// неотличим от несуществующего.
func (c *userContext) Permissions(ctx context.Context, username string) (*permission.Bundle, error) {
	visible, err := c.userVisible(ctx, username)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, directory.ErrNotFound
	}

	perms := c.provider.perms
	return &permission.Bundle{
		System:           &systemSet{perms: perms, username: username},
		Connection:       &objectSet{perms: perms, username: username, category: repository.CategoryConnection},
		ConnectionGroup:  &objectSet{perms: perms, username: username, category: repository.CategoryConnectionGroup},
		ActiveConnection: &objectSet{perms: perms, username: username, category: repository.CategoryActiveConnection},
		User:             &objectSet{perms: perms, username: username, category: repository.CategoryUser},
	}, nil
}

func (c *userContext) Users() directory.Directory[*model.User] {
	return &userDirectory{ctx: c}
}

func (c *userContext) Connections() directory.Directory[*model.Connection] {
	return &connectionDirectory{ctx: c}
}

func (c *userContext) ConnectionGroups() directory.Directory[*model.ConnectionGroup] {
	return &groupDirectory{ctx: c}
}

func (c *userContext) ActiveConnections() directory.Directory[*model.ActiveConnection] {
	return &activeDirectory{ctx: c}
}

// isAdmin сообщает, держит ли пользователь контекста системное ADMINISTER.
// Проверяется на каждый вызов: отзыв права действует немедленно.
func (c *userContext) isAdmin(ctx context.Context) (bool, error) {
	return c.provider.perms.HasSystem(ctx, c.self.Username, string(permission.SystemAdminister))
}

// hasAnyPermission сообщает, держит ли пользователь контекста хотя бы одно
// объектное право на identifier в категории.
func (c *userContext) hasAnyPermission(ctx context.Context, category, identifier string) (bool, error) {
	matched, err := c.provider.perms.MatchingIdentifiers(ctx,
		c.self.Username, category, allObjectPermissions, []string{identifier})
	if err != nil {
		return false, err
	}
	return len(matched) > 0, nil
}

// userVisible — правило видимости пользователей: администратор видит всех,
// каждый видит себя, остальных — при наличии хотя бы одного права.
func (c *userContext) userVisible(ctx context.Context, username string) (bool, error) {
	if username == c.self.Username {
		return true, nil
	}
	admin, err := c.isAdmin(ctx)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}

	exists, err := c.userExists(ctx, username)
	if err != nil || !exists {
		return false, err
	}
	return c.hasAnyPermission(ctx, repository.CategoryUser, username)
}

func (c *userContext) userExists(ctx context.Context, username string) (bool, error) {
	_, err := c.provider.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// mapRepoErr переводит ошибки репозитория в ошибки каталога.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return directory.ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return directory.ErrConflict
	default:
		return err
	}
}

// userDirectory — каталог пользователей с видимостью.
type userDirectory struct {
	ctx *userContext
}

func (d *userDirectory) Get(ctx context.Context, identifier string) (*model.User, error) {
	visible, err := d.ctx.userVisible(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, directory.ErrNotFound
	}
	user, err := d.ctx.provider.users.GetByUsername(ctx, identifier)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return user, nil
}

func (d *userDirectory) GetAll(ctx context.Context, identifiers []string) ([]*model.User, error) {
	result := make([]*model.User, 0, len(identifiers))
	for _, id := range identifiers {
		user, err := d.Get(ctx, id)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, user)
	}
	return result, nil
}

func (d *userDirectory) Identifiers(ctx context.Context) ([]string, error) {
	admin, err := d.ctx.isAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin {
		return d.ctx.provider.users.Identifiers(ctx)
	}

	visible, err := d.ctx.provider.perms.VisibleIdentifiers(ctx,
		d.ctx.self.Username, repository.CategoryUser)
	if err != nil {
		return nil, err
	}
	// Себя пользователь видит всегда
	for _, id := range visible {
		if id == d.ctx.self.Username {
			return visible, nil
		}
	}
	return append(visible, d.ctx.self.Username), nil
}

func (d *userDirectory) Add(ctx context.Context, user *model.User) error {
	salt, err := generateSalt()
	if err != nil {
		return err
	}
	hash := hashPassword(salt, user.Password)
	user.Password = ""

	return mapRepoErr(d.ctx.provider.users.Create(ctx, user, hash, salt))
}

func (d *userDirectory) Update(ctx context.Context, user *model.User) error {
	if err := mapRepoErr(d.ctx.provider.users.Update(ctx, user)); err != nil {
		return err
	}

	// Непустой пароль в данных — смена пароля с новой солью
	if user.Password != "" {
		salt, err := generateSalt()
		if err != nil {
			return err
		}
		hash := hashPassword(salt, user.Password)
		user.Password = ""
		return mapRepoErr(d.ctx.provider.users.UpdatePassword(ctx, user.Username, hash, salt))
	}
	return nil
}

func (d *userDirectory) Remove(ctx context.Context, identifier string) error {
	return mapRepoErr(d.ctx.provider.users.Delete(ctx, identifier))
}

// connectionDirectory — каталог подключений с видимостью.
type connectionDirectory struct {
	ctx *userContext
}

func (d *connectionDirectory) visible(ctx context.Context, identifier string) (bool, error) {
	admin, err := d.ctx.isAdmin(ctx)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	return d.ctx.hasAnyPermission(ctx, repository.CategoryConnection, identifier)
}

func (d *connectionDirectory) Get(ctx context.Context, identifier string) (*model.Connection, error) {
	visible, err := d.visible(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, directory.ErrNotFound
	}
	conn, err := d.ctx.provider.conns.GetByID(ctx, identifier)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return conn, nil
}

func (d *connectionDirectory) GetAll(ctx context.Context, identifiers []string) ([]*model.Connection, error) {
	result := make([]*model.Connection, 0, len(identifiers))
	for _, id := range identifiers {
		conn, err := d.Get(ctx, id)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, conn)
	}
	return result, nil
}

func (d *connectionDirectory) Identifiers(ctx context.Context) ([]string, error) {
	admin, err := d.ctx.isAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin {
		return d.ctx.provider.conns.Identifiers(ctx)
	}
	return d.ctx.provider.perms.VisibleIdentifiers(ctx,
		d.ctx.self.Username, repository.CategoryConnection)
}

func (d *connectionDirectory) Add(ctx context.Context, conn *model.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	return mapRepoErr(d.ctx.provider.conns.Create(ctx, conn))
}

func (d *connectionDirectory) Update(ctx context.Context, conn *model.Connection) error {
	return mapRepoErr(d.ctx.provider.conns.Update(ctx, conn))
}

func (d *connectionDirectory) Remove(ctx context.Context, identifier string) error {
	return mapRepoErr(d.ctx.provider.conns.Delete(ctx, identifier))
}

// groupDirectory — каталог групп подключений с видимостью.
// Корневая группа видна всем: она — точка входа дерева.
type groupDirectory struct {
	ctx *userContext
}

func (d *groupDirectory) visible(ctx context.Context, identifier string) (bool, error) {
	if identifier == model.RootGroupIdentifier {
		return true, nil
	}
	admin, err := d.ctx.isAdmin(ctx)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	return d.ctx.hasAnyPermission(ctx, repository.CategoryConnectionGroup, identifier)
}

func (d *groupDirectory) Get(ctx context.Context, identifier string) (*model.ConnectionGroup, error) {
	visible, err := d.visible(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, directory.ErrNotFound
	}
	group, err := d.ctx.provider.groups.GetByID(ctx, identifier)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return group, nil
}

func (d *groupDirectory) GetAll(ctx context.Context, identifiers []string) ([]*model.ConnectionGroup, error) {
	result := make([]*model.ConnectionGroup, 0, len(identifiers))
	for _, id := range identifiers {
		group, err := d.Get(ctx, id)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, group)
	}
	return result, nil
}

func (d *groupDirectory) Identifiers(ctx context.Context) ([]string, error) {
	admin, err := d.ctx.isAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin {
		return d.ctx.provider.groups.Identifiers(ctx)
	}

	visible, err := d.ctx.provider.perms.VisibleIdentifiers(ctx,
		d.ctx.self.Username, repository.CategoryConnectionGroup)
	if err != nil {
		return nil, err
	}
	for _, id := range visible {
		if id == model.RootGroupIdentifier {
			return visible, nil
		}
	}
	return append(visible, model.RootGroupIdentifier), nil
}

func (d *groupDirectory) Add(ctx context.Context, group *model.ConnectionGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	return mapRepoErr(d.ctx.provider.groups.Create(ctx, group))
}

func (d *groupDirectory) Update(ctx context.Context, group *model.ConnectionGroup) error {
	return mapRepoErr(d.ctx.provider.groups.Update(ctx, group))
}

func (d *groupDirectory) Remove(ctx context.Context, identifier string) error {
	return mapRepoErr(d.ctx.provider.groups.Delete(ctx, identifier))
}

// activeDirectory — каталог активных подключений с видимостью.
// Хранение процессное (directory.Memory); каждый видит собственные туннели,
// чужие — при наличии права или системного ADMINISTER.
type activeDirectory struct {
	ctx *userContext
}

func (d *activeDirectory) visible(ctx context.Context, active *model.ActiveConnection) (bool, error) {
	if active.Username == d.ctx.self.Username {
		return true, nil
	}
	admin, err := d.ctx.isAdmin(ctx)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	return d.ctx.hasAnyPermission(ctx, repository.CategoryActiveConnection, active.ID)
}

func (d *activeDirectory) Get(ctx context.Context, identifier string) (*model.ActiveConnection, error) {
	active, err := d.ctx.provider.active.Get(ctx, identifier)
	if err != nil {
		return nil, err
	}
	visible, err := d.visible(ctx, active)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, directory.ErrNotFound
	}
	return active, nil
}

func (d *activeDirectory) GetAll(ctx context.Context, identifiers []string) ([]*model.ActiveConnection, error) {
	result := make([]*model.ActiveConnection, 0, len(identifiers))
	for _, id := range identifiers {
		active, err := d.Get(ctx, id)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, active)
	}
	return result, nil
}

func (d *activeDirectory) Identifiers(ctx context.Context) ([]string, error) {
	all, err := d.ctx.provider.active.Identifiers(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(all))
	for _, id := range all {
		active, err := d.ctx.provider.active.Get(ctx, id)
		if err != nil {
			continue
		}
		visible, err := d.visible(ctx, active)
		if err != nil {
			return nil, err
		}
		if visible {
			result = append(result, id)
		}
	}
	return result, nil
}

func (d *activeDirectory) Add(ctx context.Context, active *model.ActiveConnection) error {
	return d.ctx.provider.active.Add(ctx, active)
}

func (d *activeDirectory) Update(ctx context.Context, active *model.ActiveConnection) error {
	return d.ctx.provider.active.Update(ctx, active)
}

func (d *activeDirectory) Remove(ctx context.Context, identifier string) error {
	if _, err := d.Get(ctx, identifier); err != nil {
		return err
	}
	return d.ctx.provider.active.Remove(ctx, identifier)
}
