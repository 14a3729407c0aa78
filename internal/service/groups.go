// groups.go — операции над группами подключений.
package service

import (
	"context"
	"fmt"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// ListConnectionGroups возвращает видимые группы подключений источника.
func (s *Service) ListConnectionGroups(ctx context.Context, sess *session.Session, providerID string, types []permission.ObjectType) ([]*model.ConnectionGroup, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	selfPerms, err := userPermissions(ctx, uc, uc.Self().Username)
	if err != nil {
		return nil, err
	}

	ids, err := uc.ConnectionGroups().Identifiers(ctx)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	if len(types) > 0 {
		ids, err = permission.Accessible(ctx, selfPerms.System, selfPerms.ConnectionGroup, types, ids)
		if err != nil {
			return nil, mapDirectoryErr(err)
		}
	}

	groups, err := uc.ConnectionGroups().GetAll(ctx, ids)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}
	return groups, nil
}

// GetConnectionGroup возвращает группу подключений по идентификатору.
func (s *Service) GetConnectionGroup(ctx context.Context, sess *session.Session, providerID, id string) (*model.ConnectionGroup, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}
	return retrieve(ctx, uc.ConnectionGroups(), id)
}

// CreateConnectionGroup создаёт группу подключений. Родительская группа
// обязана существовать; по умолчанию родитель — корень, тип —
// организационная группа.
func (s *Service) CreateConnectionGroup(ctx context.Context, sess *session.Session, providerID string, group *model.ConnectionGroup) (*model.ConnectionGroup, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	if group.Name == "" {
		return nil, fmt.Errorf("%w: имя группы не задано", ErrValidation)
	}
	switch group.Type {
	case "":
		group.Type = model.GroupTypeOrganizational
	case model.GroupTypeOrganizational, model.GroupTypeBalancing:
	default:
		return nil, fmt.Errorf("%w: неизвестный тип группы %q", ErrValidation, group.Type)
	}

	if group.ParentID == nil {
		root := model.RootGroupIdentifier
		group.ParentID = &root
	}
	if _, err := retrieve(ctx, uc.ConnectionGroups(), *group.ParentID); err != nil {
		return nil, err
	}

	if err := uc.ConnectionGroups().Add(ctx, group); err != nil {
		return nil, mapDirectoryErr(err)
	}

	s.logger.Info("Группа подключений создана",
		"provider", providerID,
		"id", group.ID,
		"name", group.Name,
	)
	return group, nil
}

// UpdateConnectionGroup обновляет группу подключений.
// Корневую группу изменять нельзя; группа не может стать родителем самой себя.
func (s *Service) UpdateConnectionGroup(ctx context.Context, sess *session.Session, providerID, id string, upd *model.ConnectionGroup) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	if upd.ID != id {
		return fmt.Errorf("%w: идентификатор в данных не совпадает с идентификатором в пути", ErrValidation)
	}
	if id == model.RootGroupIdentifier {
		return fmt.Errorf("%w: корневая группа не изменяется", ErrForbidden)
	}

	existing, err := retrieve(ctx, uc.ConnectionGroups(), id)
	if err != nil {
		return err
	}

	if upd.ParentID != nil {
		if *upd.ParentID == id {
			return fmt.Errorf("%w: группа не может быть родителем самой себя", ErrValidation)
		}
		if _, err := retrieve(ctx, uc.ConnectionGroups(), *upd.ParentID); err != nil {
			return err
		}
		existing.ParentID = upd.ParentID
	}
	if upd.Name != "" {
		existing.Name = upd.Name
	}
	if upd.Type != "" {
		switch upd.Type {
		case model.GroupTypeOrganizational, model.GroupTypeBalancing:
			existing.Type = upd.Type
		default:
			return fmt.Errorf("%w: неизвестный тип группы %q", ErrValidation, upd.Type)
		}
	}

	if err := uc.ConnectionGroups().Update(ctx, existing); err != nil {
		return mapDirectoryErr(err)
	}
	return nil
}

// DeleteConnectionGroup удаляет группу подключений. Корневая группа
// удалению не подлежит.
func (s *Service) DeleteConnectionGroup(ctx context.Context, sess *session.Session, providerID, id string) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	if id == model.RootGroupIdentifier {
		return fmt.Errorf("%w: корневая группа не удаляется", ErrForbidden)
	}

	if _, err := retrieve(ctx, uc.ConnectionGroups(), id); err != nil {
		return err
	}
	if err := uc.ConnectionGroups().Remove(ctx, id); err != nil {
		return mapDirectoryErr(err)
	}

	s.logger.Info("Группа подключений удалена",
		"provider", providerID,
		"id", id,
	)
	return nil
}
