// sets.go — наборы прав поверх таблиц object_permissions и
// system_permissions. Идемпотентность добавления/удаления обеспечивает SQL.
package postgres

import (
	"context"

	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/repository"
)

// objectSet — набор объектных прав одного пользователя в одной категории.
type objectSet struct {
	perms    repository.PermissionRepository
	username string
	category string
}

func (s *objectSet) Has(ctx context.Context, t permission.ObjectType, identifier string) (bool, error) {
	return s.perms.HasObject(ctx, s.username, s.category, string(t), identifier)
}

func (s *objectSet) Add(ctx context.Context, perms ...permission.ObjectPermission) error {
	for _, p := range perms {
		if err := s.perms.AddObject(ctx, s.username, s.category, string(p.Type), p.Identifier); err != nil {
			return err
		}
	}
	return nil
}

func (s *objectSet) Remove(ctx context.Context, perms ...permission.ObjectPermission) error {
	for _, p := range perms {
		if err := s.perms.RemoveObject(ctx, s.username, s.category, string(p.Type), p.Identifier); err != nil {
			return err
		}
	}
	return nil
}

// AccessibleIdentifiers фильтрует candidates одним SQL-запросом,
// сохраняя исходный порядок кандидатов.
func (s *objectSet) AccessibleIdentifiers(ctx context.Context, types []permission.ObjectType, candidates []string) ([]string, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	matched, err := s.perms.MatchingIdentifiers(ctx, s.username, s.category, names, candidates)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(matched))
	for _, id := range matched {
		set[id] = struct{}{}
	}

	result := make([]string, 0, len(matched))
	for _, id := range candidates {
		if _, ok := set[id]; ok {
			result = append(result, id)
		}
	}
	return result, nil
}

func (s *objectSet) List(ctx context.Context) ([]permission.ObjectPermission, error) {
	rows, err := s.perms.ListObject(ctx, s.username, s.category)
	if err != nil {
		return nil, err
	}

	result := make([]permission.ObjectPermission, 0, len(rows))
	for _, row := range rows {
		t, err := permission.ParseObjectType(row[0])
		if err != nil {
			return nil, err
		}
		result = append(result, permission.ObjectPermission{Type: t, Identifier: row[1]})
	}
	return result, nil
}

// systemSet — набор системных прав одного пользователя.
type systemSet struct {
	perms    repository.PermissionRepository
	username string
}

func (s *systemSet) Has(ctx context.Context, t permission.SystemType) (bool, error) {
	return s.perms.HasSystem(ctx, s.username, string(t))
}

func (s *systemSet) Add(ctx context.Context, perms ...permission.SystemPermission) error {
	for _, p := range perms {
		if err := s.perms.AddSystem(ctx, s.username, string(p.Type)); err != nil {
			return err
		}
	}
	return nil
}

func (s *systemSet) Remove(ctx context.Context, perms ...permission.SystemPermission) error {
	for _, p := range perms {
		if err := s.perms.RemoveSystem(ctx, s.username, string(p.Type)); err != nil {
			return err
		}
	}
	return nil
}

func (s *systemSet) List(ctx context.Context) ([]permission.SystemPermission, error) {
	rows, err := s.perms.ListSystem(ctx, s.username)
	if err != nil {
		return nil, err
	}

	result := make([]permission.SystemPermission, 0, len(rows))
	for _, name := range rows {
		t, err := permission.ParseSystemType(name)
		if err != nil {
			return nil, err
		}
		result = append(result, permission.SystemPermission{Type: t})
	}
	return result, nil
}
