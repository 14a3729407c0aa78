// patch.go — движок пакетных патчей прав.
//
// Пакет операций add/remove декодируется в типизированные дельты по пяти
// категориям (четыре объектных по виду ресурса и одна системная) и лишь
// затем применяется к живым наборам прав целевого пользователя.
//
// Контракт атомарности: маршрутизация — всё или ничего (любая ошибка
// декодирования прерывает пакет с нулевыми побочными эффектами);
// применение по категориям последовательное и НЕ откатывается — сбой при
// применении одной категории оставляет ранее применённые категории
// зафиксированными. Это осознанная, документированная слабость: общий
// транзакционный коммит потребовал бы от каждого бэкенда каталогов
// поддержки мультикатегорийной фиксации, чего контракт не требует.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// Префиксы путей операций патча.
const (
	connectionPermissionsPrefix       = "/connectionPermissions/"
	connectionGroupPermissionsPrefix  = "/connectionGroupPermissions/"
	activeConnectionPermissionsPrefix = "/activeConnectionPermissions/"
	userPermissionsPrefix             = "/userPermissions/"
	systemPermissionsPath             = "/systemPermissions"
)

// patchCategory — категория набора прав, адресуемая путём патча.
type patchCategory string

const (
	categoryConnection       patchCategory = "connection"
	categoryConnectionGroup  patchCategory = "connectionGroup"
	categoryActiveConnection patchCategory = "activeConnection"
	categoryUser             patchCategory = "user"
	categorySystem           patchCategory = "system"
)

// objectCategoryPrefixes — соответствие префикса пути объектной категории.
var objectCategoryPrefixes = map[string]patchCategory{
	connectionPermissionsPrefix:       categoryConnection,
	connectionGroupPermissionsPrefix:  categoryConnectionGroup,
	activeConnectionPermissionsPrefix: categoryActiveConnection,
	userPermissionsPrefix:             categoryUser,
}

// applyOrder — фиксированный порядок применения категорий.
var applyOrder = []patchCategory{
	categoryConnection,
	categoryConnectionGroup,
	categoryActiveConnection,
	categoryUser,
	categorySystem,
}

// setPatch — накопитель дельт одной категории.
// Применение: сначала все добавления, затем все удаления.
type setPatch struct {
	addObject    []permission.ObjectPermission
	removeObject []permission.ObjectPermission
	addSystem    []permission.SystemPermission
	removeSystem []permission.SystemPermission
}

// routeObject добавляет объектную дельту по глаголу операции.
func (p *setPatch) routeObject(op model.PatchOp, perm permission.ObjectPermission) error {
	switch op {
	case model.PatchOpAdd:
		p.addObject = append(p.addObject, perm)
	case model.PatchOpRemove:
		p.removeObject = append(p.removeObject, perm)
	default:
		return fmt.Errorf("%w: неподдерживаемый глагол операции %q", ErrValidation, op)
	}
	return nil
}

// routeSystem добавляет системную дельту по глаголу операции.
func (p *setPatch) routeSystem(op model.PatchOp, perm permission.SystemPermission) error {
	switch op {
	case model.PatchOpAdd:
		p.addSystem = append(p.addSystem, perm)
	case model.PatchOpRemove:
		p.removeSystem = append(p.removeSystem, perm)
	default:
		return fmt.Errorf("%w: неподдерживаемый глагол операции %q", ErrValidation, op)
	}
	return nil
}

// applyObject применяет накопленные объектные дельты к живому набору.
func (p *setPatch) applyObject(ctx context.Context, set permission.ObjectSet) error {
	if len(p.addObject) > 0 {
		if err := set.Add(ctx, p.addObject...); err != nil {
			return err
		}
	}
	if len(p.removeObject) > 0 {
		if err := set.Remove(ctx, p.removeObject...); err != nil {
			return err
		}
	}
	return nil
}

// applySystem применяет накопленные системные дельты к живому набору.
func (p *setPatch) applySystem(ctx context.Context, set permission.SystemSet) error {
	if len(p.addSystem) > 0 {
		if err := set.Add(ctx, p.addSystem...); err != nil {
			return err
		}
	}
	if len(p.removeSystem) > 0 {
		if err := set.Remove(ctx, p.removeSystem...); err != nil {
			return err
		}
	}
	return nil
}

// PatchPermissions применяет пакет операций патча к правам пользователя.
// Валидация каждой операции выполняется ДО каких-либо мутаций каталогов:
// нераспознаваемый тип права, неподдерживаемый путь или глагол прерывают
// весь пакет с нулевыми побочными эффектами.
func (s *Service) PatchPermissions(ctx context.Context, sess *session.Session, providerID, username string, ops []model.PatchOperation) error {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return err
	}

	bundle, err := userPermissions(ctx, uc, username)
	if err != nil {
		return err
	}

	// Фаза 1: маршрутизация всех операций в накопители (всё или ничего)
	acc := make(map[patchCategory]*setPatch, len(applyOrder))
	for _, cat := range applyOrder {
		acc[cat] = &setPatch{}
	}

	for _, op := range ops {
		if err := routePatchOperation(acc, op); err != nil {
			return err
		}
	}

	// Фаза 2: последовательное применение по фиксированному порядку
	// категорий. Сбой посередине оставляет ранее применённые категории
	// зафиксированными (см. комментарий пакета).
	for _, cat := range applyOrder {
		var applyErr error
		switch cat {
		case categoryConnection:
			applyErr = acc[cat].applyObject(ctx, bundle.Connection)
		case categoryConnectionGroup:
			applyErr = acc[cat].applyObject(ctx, bundle.ConnectionGroup)
		case categoryActiveConnection:
			applyErr = acc[cat].applyObject(ctx, bundle.ActiveConnection)
		case categoryUser:
			applyErr = acc[cat].applyObject(ctx, bundle.User)
		case categorySystem:
			applyErr = acc[cat].applySystem(ctx, bundle.System)
		}
		if applyErr != nil {
			s.logger.Error("Сбой применения категории патча прав",
				"provider", providerID,
				"username", username,
				"category", string(cat),
				"error", applyErr.Error(),
			)
			return fmt.Errorf("%w: применение категории %s", ErrInternal, cat)
		}
	}

	return nil
}

// routePatchOperation декодирует одну операцию и направляет её в накопитель
// соответствующей категории. Любая ошибка декодирования — ошибка клиента.
func routePatchOperation(acc map[patchCategory]*setPatch, op model.PatchOperation) error {
	// Объектные категории: префикс пути + непустой идентификатор ресурса
	for prefix, cat := range objectCategoryPrefixes {
		if !strings.HasPrefix(op.Path, prefix) {
			continue
		}

		identifier := op.Path[len(prefix):]
		if identifier == "" {
			return fmt.Errorf("%w: путь %q не содержит идентификатора ресурса", ErrValidation, op.Path)
		}

		t, err := permission.ParseObjectType(op.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}

		return acc[cat].routeObject(op.Op, permission.ObjectPermission{Type: t, Identifier: identifier})
	}

	// Системная категория: точное совпадение пути, без идентификатора
	if op.Path == systemPermissionsPath {
		t, err := permission.ParseSystemType(op.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return acc[categorySystem].routeSystem(op.Op, permission.SystemPermission{Type: t})
	}

	return fmt.Errorf("%w: неподдерживаемый путь патча %q", ErrValidation, op.Path)
}
