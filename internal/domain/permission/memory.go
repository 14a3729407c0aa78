// memory.go — in-memory реализации наборов прав.
// Используются memory/oidc источниками идентификации и тестами.
package permission

import "context"

// MemoryObjectSet — in-memory набор объектных прав.
type MemoryObjectSet struct {
	perms map[ObjectPermission]struct{}
}

// NewMemoryObjectSet создаёт in-memory набор с указанными правами.
func NewMemoryObjectSet(perms ...ObjectPermission) *MemoryObjectSet {
	s := &MemoryObjectSet{perms: make(map[ObjectPermission]struct{}, len(perms))}
	for _, p := range perms {
		s.perms[p] = struct{}{}
	}
	return s
}

// Has сообщает, содержит ли набор право (t, identifier).
func (s *MemoryObjectSet) Has(_ context.Context, t ObjectType, identifier string) (bool, error) {
	_, ok := s.perms[ObjectPermission{Type: t, Identifier: identifier}]
	return ok, nil
}

// Add добавляет права. Уже имеющиеся — no-op.
func (s *MemoryObjectSet) Add(_ context.Context, perms ...ObjectPermission) error {
	for _, p := range perms {
		s.perms[p] = struct{}{}
	}
	return nil
}

// Remove удаляет права. Отсутствующие — no-op.
func (s *MemoryObjectSet) Remove(_ context.Context, perms ...ObjectPermission) error {
	for _, p := range perms {
		delete(s.perms, p)
	}
	return nil
}

// AccessibleIdentifiers возвращает подмножество candidates с хотя бы одним
// из запрошенных прав. Порядок кандидатов сохраняется.
func (s *MemoryObjectSet) AccessibleIdentifiers(_ context.Context, types []ObjectType, candidates []string) ([]string, error) {
	var result []string
	for _, id := range candidates {
		for _, t := range types {
			if _, ok := s.perms[ObjectPermission{Type: t, Identifier: id}]; ok {
				result = append(result, id)
				break
			}
		}
	}
	return result, nil
}

// List возвращает все права набора.
func (s *MemoryObjectSet) List(_ context.Context) ([]ObjectPermission, error) {
	result := make([]ObjectPermission, 0, len(s.perms))
	for p := range s.perms {
		result = append(result, p)
	}
	return result, nil
}

// MemorySystemSet — in-memory набор системных прав.
type MemorySystemSet struct {
	perms map[SystemType]struct{}
}

// NewMemorySystemSet создаёт in-memory набор с указанными правами.
func NewMemorySystemSet(perms ...SystemPermission) *MemorySystemSet {
	s := &MemorySystemSet{perms: make(map[SystemType]struct{}, len(perms))}
	for _, p := range perms {
		s.perms[p.Type] = struct{}{}
	}
	return s
}

// Has сообщает, содержит ли набор право данного типа.
func (s *MemorySystemSet) Has(_ context.Context, t SystemType) (bool, error) {
	_, ok := s.perms[t]
	return ok, nil
}

// Add добавляет права. Уже имеющиеся — no-op.
func (s *MemorySystemSet) Add(_ context.Context, perms ...SystemPermission) error {
	for _, p := range perms {
		s.perms[p.Type] = struct{}{}
	}
	return nil
}

// Remove удаляет права. Отсутствующие — no-op.
func (s *MemorySystemSet) Remove(_ context.Context, perms ...SystemPermission) error {
	for _, p := range perms {
		delete(s.perms, p.Type)
	}
	return nil
}

// List возвращает все права набора.
func (s *MemorySystemSet) List(_ context.Context) ([]SystemPermission, error) {
	result := make([]SystemPermission, 0, len(s.perms))
	for t := range s.perms {
		result = append(result, SystemPermission{Type: t})
	}
	return result, nil
}
