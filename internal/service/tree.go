// tree.go — построение дерева групп и подключений с фильтрацией по правам.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// TreeConnection — лист дерева: отсоединённый снимок подключения.
type TreeConnection struct {
	ID       string
	Name     string
	Protocol string
	ParentID string
}

// TreeGroup — узел дерева: отсоединённый снимок группы с потомками.
// Снимок не связан с живыми каталогами: последующие мутации каталогов
// на уже построенное дерево не влияют.
type TreeGroup struct {
	ID               string
	Name             string
	Type             string
	ChildGroups      []*TreeGroup
	ChildConnections []*TreeConnection
}

// ConnectionTree строит дерево от указанной группы (обычно корневой).
// Подключения-листья, на которые у пользователя нет ни одного из
// запрошенных прав, из дерева исключаются; структурные группы входят в
// дерево всегда, даже опустевшие. Пустой список типов означает
// отсутствие фильтрации: в дерево входят все видимые подключения.
// Отношение parent/child читается из самих объектов (поле ParentID);
// цикл в иерархии — повреждение данных, не ошибка клиента.
func (s *Service) ConnectionTree(ctx context.Context, sess *session.Session, providerID, rootID string, types []permission.ObjectType) (*TreeGroup, error) {
	uc, err := s.UserContext(sess, providerID)
	if err != nil {
		return nil, err
	}

	if rootID == "" {
		rootID = model.RootGroupIdentifier
	}
	root, err := retrieve(ctx, uc.ConnectionGroups(), rootID)
	if err != nil {
		return nil, err
	}

	// Множество видимых подключений вычисляется один раз на всё дерево
	visibleIDs, err := uc.Connections().Identifiers(ctx)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	// Фильтр по правам применяется только когда типы запрошены явно
	if len(types) > 0 {
		selfPerms, err := userPermissions(ctx, uc, uc.Self().Username)
		if err != nil {
			return nil, err
		}
		visibleIDs, err = permission.Accessible(ctx, selfPerms.System, selfPerms.Connection, types, visibleIDs)
		if err != nil {
			return nil, mapDirectoryErr(err)
		}
	}

	b, err := newTreeBuilder(ctx, uc, visibleIDs)
	if err != nil {
		return nil, err
	}
	return b.build(root, make(map[string]struct{}))
}

// treeBuilder — индексы одного обхода: потомки по идентификатору родителя.
type treeBuilder struct {
	childGroups map[string][]*model.ConnectionGroup
	childConns  map[string][]*TreeConnection
}

// newTreeBuilder материализует каталоги в индексы parent → потомки.
// Потомки упорядочиваются по имени: дерево детерминировано при
// недетерминированном порядке каталогов.
func newTreeBuilder(ctx context.Context, uc auth.UserContext, visibleConnIDs []string) (*treeBuilder, error) {
	groupIDs, err := uc.ConnectionGroups().Identifiers(ctx)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}
	groups, err := uc.ConnectionGroups().GetAll(ctx, groupIDs)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	conns, err := uc.Connections().GetAll(ctx, visibleConnIDs)
	if err != nil {
		return nil, mapDirectoryErr(err)
	}

	b := &treeBuilder{
		childGroups: make(map[string][]*model.ConnectionGroup),
		childConns:  make(map[string][]*TreeConnection),
	}

	for _, g := range groups {
		if g.ParentID == nil {
			continue
		}
		b.childGroups[*g.ParentID] = append(b.childGroups[*g.ParentID], g)
	}
	for _, c := range conns {
		b.childConns[c.ParentID] = append(b.childConns[c.ParentID], &TreeConnection{
			ID:       c.ID,
			Name:     c.Name,
			Protocol: c.Protocol,
			ParentID: c.ParentID,
		})
	}

	for _, siblings := range b.childGroups {
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Name < siblings[j].Name })
	}
	for _, siblings := range b.childConns {
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Name < siblings[j].Name })
	}

	return b, nil
}

// build рекурсивно материализует поддерево группы.
// visited накапливает пройденные группы: повторное посещение — цикл.
func (b *treeBuilder) build(group *model.ConnectionGroup, visited map[string]struct{}) (*TreeGroup, error) {
	if _, seen := visited[group.ID]; seen {
		return nil, fmt.Errorf("%w: цикл в иерархии групп на %q", ErrInternal, group.ID)
	}
	visited[group.ID] = struct{}{}

	node := &TreeGroup{
		ID:               group.ID,
		Name:             group.Name,
		Type:             group.Type,
		ChildConnections: b.childConns[group.ID],
	}

	for _, child := range b.childGroups[group.ID] {
		sub, err := b.build(child, visited)
		if err != nil {
			return nil, err
		}
		node.ChildGroups = append(node.ChildGroups, sub)
	}

	return node, nil
}
