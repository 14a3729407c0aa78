// connections.go — операции над подключениями.
package service

import (
	"context"
	"fmt"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// ListConnections возвращает видимые подключения источника.
// Если запрошены типы прав — не администратор видит только подключения,
// на которые у него есть хотя бы одно из запрошенных прав.
func (s *Service) ListConnections(ctx context.Context, sess *session.Session, providerID string, types []permission.ObjectType) ([]*model.Connection, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	selfPerms, err := userPermissions(ctx, uc, uc.Self().Username)
	if err != nil {
		return nil, err
	}

	ids, err := uc.Connections().Identifiers(ctx)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	if len(types) > 0 {
		ids, err = permission.Accessible(ctx, selfPerms.System, selfPerms.Connection, types, ids)
		if err != nil {
			return nil, mapDirectoryErr(err)
		}
	}

	conns, err := uc.Connections().GetAll(ctx, ids)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}
	return conns, nil
}

// GetConnection возвращает подключение по идентификатору.
func (s *Service) GetConnection(ctx context.Context, sess *session.Session, providerID, id string) (*model.Connection, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}
	return retrieve(ctx, uc.Connections(), id)
}

// CreateConnection создаёт подключение. Родительская группа обязана
// существовать: висячих листьев дерево не допускает.
func (s *Service) CreateConnection(ctx context.Context, sess *session.Session, providerID string, conn *model.Connection) (*model.Connection, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	if conn.Name == "" {
		return nil, fmt.Errorf("%w: имя подключения не задано", ErrValidation)
	}
	if conn.Protocol == "" {
		return nil, fmt.Errorf("%w: протокол подключения не задан", ErrValidation)
	}
	if conn.ParentID == "" {
		conn.ParentID = model.RootGroupIdentifier
	}
	if _, err := retrieve(ctx, uc.ConnectionGroups(), conn.ParentID); err != nil {
		return nil, err
	}

	if err := uc.Connections().Add(ctx, conn); err != nil {
		return nil, mapDirectoryErr(err)
	}

	s.logger.Info("Подключение создано",
		"provider", providerID,
		"id", conn.ID,
		"name", conn.Name,
		"protocol", conn.Protocol,
	)
	return conn, nil
}

// UpdateConnection обновляет подключение. Идентификатор в данных обязан
// совпадать с идентификатором в пути.
func (s *Service) UpdateConnection(ctx context.Context, sess *session.Session, providerID, id string, upd *model.Connection) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	if upd.ID != id {
		return fmt.Errorf("%w: идентификатор в данных не совпадает с идентификатором в пути", ErrValidation)
	}

	existing, err := retrieve(ctx, uc.Connections(), id)
	if err != nil {
		return err
	}

	if upd.ParentID != "" && upd.ParentID != existing.ParentID {
		if _, err := retrieve(ctx, uc.ConnectionGroups(), upd.ParentID); err != nil {
			return err
		}
		existing.ParentID = upd.ParentID
	}
	if upd.Name != "" {
		existing.Name = upd.Name
	}
	if upd.Protocol != "" {
		existing.Protocol = upd.Protocol
	}
	existing.Parameters = upd.Parameters

	if err := uc.Connections().Update(ctx, existing); err != nil {
		return mapDirectoryErr(err)
	}
	return nil
}

// DeleteConnection удаляет подключение.
func (s *Service) DeleteConnection(ctx context.Context, sess *session.Session, providerID, id string) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	if _, err := retrieve(ctx, uc.Connections(), id); err != nil {
		return err
	}
	if err := uc.Connections().Remove(ctx, id); err != nil {
		return mapDirectoryErr(err)
	}

	s.logger.Info("Подключение удалено",
		"provider", providerID,
		"id", id,
	)
	return nil
}
