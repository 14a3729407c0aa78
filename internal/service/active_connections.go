// active_connections.go — операции над активными подключениями.
package service

import (
	"context"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// ListActiveConnections возвращает видимые активные подключения источника.
func (s *Service) ListActiveConnections(ctx context.Context, sess *session.Session, providerID string, types []permission.ObjectType) ([]*model.ActiveConnection, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	selfPerms, err := userPermissions(ctx, uc, uc.Self().Username)
	if err != nil {
		return nil, err
	}

	ids, err := uc.ActiveConnections().Identifiers(ctx)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	if len(types) > 0 {
		ids, err = permission.Accessible(ctx, selfPerms.System, selfPerms.ActiveConnection, types, ids)
		if err != nil {
			return nil, mapDirectoryErr(err)
		}
	}

	active, err := uc.ActiveConnections().GetAll(ctx, ids)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}
	return active, nil
}

// GetActiveConnection возвращает активное подключение по идентификатору.
func (s *Service) GetActiveConnection(ctx context.Context, sess *session.Session, providerID, id string) (*model.ActiveConnection, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}
	return retrieve(ctx, uc.ActiveConnections(), id)
}

// KillActiveConnection принудительно завершает активное подключение,
// удаляя его из каталога. Разрыв туннеля — забота шлюза, наблюдающего
// за каталогом.
func (s *Service) KillActiveConnection(ctx context.Context, sess *session.Session, providerID, id string) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	active, err := retrieve(ctx, uc.ActiveConnections(), id)
	if err != nil {
		return err
	}
	if err := uc.ActiveConnections().Remove(ctx, id); err != nil {
		return mapDirectoryErr(err)
	}

	s.logger.Info("Активное подключение завершено принудительно",
		"provider", providerID,
		"id", id,
		"connection", active.ConnectionID,
		"username", active.Username,
	)
	return nil
}
