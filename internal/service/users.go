// users.go — операции над пользователями: CRUD, права, смена пароля.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// Permissions — снимок всех прав одного пользователя
// (для сериализации наружу).
type Permissions struct {
	// System — системные права
	System []permission.SystemPermission
	// Connection — права на подключения
	Connection []permission.ObjectPermission
	// ConnectionGroup — права на группы подключений
	ConnectionGroup []permission.ObjectPermission
	// ActiveConnection — права на активные подключения
	ActiveConnection []permission.ObjectPermission
	// User — права на других пользователей
	User []permission.ObjectPermission
}

// resolveSelf сообщает, ссылается ли username на самого пользователя
// контекста: либо совпадает с его идентификатором, либо равен
// специальному "self".
func resolveSelf(uc auth.UserContext, username string) (string, bool) {
	self := uc.Self().Username
	if username == model.SelfIdentifier || username == self {
		return self, true
	}
	return username, false
}

// ListUsers возвращает видимых пользователей источника.
// Если запрошены типы прав — не администратор видит только пользователей,
// на которых у него есть хотя бы одно из запрошенных прав (логическое ИЛИ).
func (s *Service) ListUsers(ctx context.Context, sess *session.Session, providerID string, types []permission.ObjectType) ([]*model.User, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	selfPerms, err := uc.Permissions(ctx, uc.Self().Username)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	ids, err := uc.Users().Identifiers(ctx)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	// Фильтрация по запрошенным правам (администратор видит всех)
	if len(types) > 0 {
		ids, err = permission.Accessible(ctx, selfPerms.System, selfPerms.User, types, ids)
		if err != nil {
			return nil, mapDirectoryErr(err)
		}
	}

	users, err := uc.Users().GetAll(ctx, ids)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}
	return users, nil
}

// GetUser возвращает пользователя по имени.
// "self" и собственное имя разрешаются в пользователя контекста без
// обращения к каталогу (объектное право READ не требуется).
func (s *Service) GetUser(ctx context.Context, sess *session.Session, providerID, username string) (*model.User, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	if _, self := resolveSelf(uc, username); self {
		return uc.Self(), nil
	}

	return retrieve(ctx, uc.Users(), username)
}

// CreateUser создаёт пользователя. Если пароль не задан — назначается
// случайный (учётная запись не должна оставаться беспарольной).
func (s *Service) CreateUser(ctx context.Context, sess *session.Session, providerID string, user *model.User) (*model.User, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	if user.Username == "" {
		return nil, fmt.Errorf("%w: имя пользователя не задано", ErrValidation)
	}
	if user.Password == "" {
		user.Password = uuid.NewString()
	}

	if err := uc.Users().Add(ctx, user); err != nil {
		return nil, mapDirectoryErr(err)
	}

	s.logger.Info("Пользователь создан",
		"provider", providerID,
		"username", user.Username,
	)
	return user, nil
}

// UpdateUser обновляет пользователя.
// Идентификатор в данных обязан совпадать с идентификатором в пути;
// изменять самого себя через эту операцию нельзя.
// Пустой пароль в данных означает «пароль не менять».
func (s *Service) UpdateUser(ctx context.Context, sess *session.Session, providerID, username string, upd *model.User) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	if upd.Username != username {
		return fmt.Errorf("%w: имя пользователя в данных не совпадает с именем в пути", ErrValidation)
	}
	if _, self := resolveSelf(uc, username); self {
		return ErrForbidden
	}

	existing, err := retrieve(ctx, uc.Users(), username)
	if err != nil {
		return err
	}

	if upd.Password != "" {
		existing.Password = upd.Password
	}
	existing.Attributes = upd.Attributes

	if err := uc.Users().Update(ctx, existing); err != nil {
		return mapDirectoryErr(err)
	}
	return nil
}

// DeleteUser удаляет пользователя.
func (s *Service) DeleteUser(ctx context.Context, sess *session.Session, providerID, username string) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	if _, err := retrieve(ctx, uc.Users(), username); err != nil {
		return err
	}
	if err := uc.Users().Remove(ctx, username); err != nil {
		return mapDirectoryErr(err)
	}

	s.logger.Info("Пользователь удалён",
		"provider", providerID,
		"username", username,
	)
	return nil
}

// UpdatePassword меняет пароль пользователя после повторной проверки
// старого пароля. Проверка выполняется точкой входа аутентификации самого
// источника со свежесобранными учётными данными (включая транспортный
// контекст запроса). ЛЮБОЙ сбой проверки — включая специфичные для
// учётных данных — нормализуется в общий ErrForbidden: исход не должен
// выдавать, существует ли имя пользователя. Новый пароль записывается
// только после успешной повторной проверки.
func (s *Service) UpdatePassword(ctx context.Context, sess *session.Session, providerID, username, oldPassword, newPassword, remoteAddr string) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	creds := &auth.Credentials{
		Username:   username,
		Password:   oldPassword,
		RemoteAddr: remoteAddr,
	}
	if _, err := uc.Provider().Authenticate(ctx, creds); err != nil {
		return ErrForbidden
	}

	user, err := retrieve(ctx, uc.Users(), username)
	if err != nil {
		return err
	}

	user.Password = newPassword
	if err := uc.Users().Update(ctx, user); err != nil {
		return mapDirectoryErr(err)
	}

	s.logger.Info("Пароль пользователя обновлён",
		"provider", providerID,
		"username", username,
	)
	return nil
}

// GetPermissions возвращает снимок прав пользователя.
// Для самого себя каталог не опрашивается: у пользователя может не быть
// права запрашивать собственную запись.
func (s *Service) GetPermissions(ctx context.Context, sess *session.Session, providerID, username string) (*Permissions, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	target, _ := resolveSelf(uc, username)
	bundle, err := uc.Permissions(ctx, target)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	return snapshotPermissions(ctx, bundle)
}

// snapshotPermissions материализует живые наборы прав в отсоединённый снимок.
func snapshotPermissions(ctx context.Context, b *permission.Bundle) (*Permissions, error) {
	var (
		snap Permissions
		err  error
	)

	if snap.System, err = b.System.List(ctx); err != nil {
		return nil, mapDirectoryErr(err)
	}
	if snap.Connection, err = b.Connection.List(ctx); err != nil {
		return nil, mapDirectoryErr(err)
	}
	if snap.ConnectionGroup, err = b.ConnectionGroup.List(ctx); err != nil {
		return nil, mapDirectoryErr(err)
	}
	if snap.ActiveConnection, err = b.ActiveConnection.List(ctx); err != nil {
		return nil, mapDirectoryErr(err)
	}
	if snap.User, err = b.User.List(ctx); err != nil {
		return nil, mapDirectoryErr(err)
	}
	return &snap, nil
}

// userPermissions возвращает живые наборы прав пользователя,
// переводя ошибки каталога в ошибки сервисного слоя.
func userPermissions(ctx context.Context, uc auth.UserContext, username string) (*permission.Bundle, error) {
	bundle, err := uc.Permissions(ctx, username)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}
	return bundle, nil
}
