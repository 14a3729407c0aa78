// set.go — контракты наборов прав и централизованная проверка
// административного override.
package permission

import "context"

// ObjectSet — изменяемый набор объектных прав одного пользователя.
// Добавление уже имеющегося права и удаление отсутствующего — no-op,
// не ошибка. Реализации не обязаны быть безопасными для конкурентных
// мутаций: сериализацию обеспечивает слой хранения.
type ObjectSet interface {
	// Has сообщает, содержит ли набор право данного типа на данный ресурс.
	Has(ctx context.Context, t ObjectType, identifier string) (bool, error)
	// Add добавляет права в набор.
	Add(ctx context.Context, perms ...ObjectPermission) error
	// Remove удаляет права из набора.
	Remove(ctx context.Context, perms ...ObjectPermission) error
	// AccessibleIdentifiers возвращает подмножество candidates, для которых
	// набор содержит ХОТЯ БЫ ОДНО из запрошенных прав (логическое ИЛИ).
	AccessibleIdentifiers(ctx context.Context, types []ObjectType, candidates []string) ([]string, error)
	// List возвращает все права набора.
	List(ctx context.Context) ([]ObjectPermission, error)
}

// SystemSet — изменяемый набор системных прав одного пользователя.
type SystemSet interface {
	// Has сообщает, содержит ли набор право данного типа.
	Has(ctx context.Context, t SystemType) (bool, error)
	// Add добавляет права в набор.
	Add(ctx context.Context, perms ...SystemPermission) error
	// Remove удаляет права из набора.
	Remove(ctx context.Context, perms ...SystemPermission) error
	// List возвращает все права набора.
	List(ctx context.Context) ([]SystemPermission, error)
}

// Bundle — пять живых наборов прав одного пользователя:
// системный и четыре объектных (по виду ресурса).
type Bundle struct {
	// System — системные права
	System SystemSet
	// Connection — права на подключения
	Connection ObjectSet
	// ConnectionGroup — права на группы подключений
	ConnectionGroup ObjectSet
	// ActiveConnection — права на активные подключения
	ActiveConnection ObjectSet
	// User — права на других пользователей
	User ObjectSet
}

// IsAdministrator сообщает, содержит ли системный набор право ADMINISTER.
func IsAdministrator(ctx context.Context, sys SystemSet) (bool, error) {
	return sys.Has(ctx, SystemAdminister)
}

// CanAccess — единственная точка проверки объектного доступа.
// Системное право ADMINISTER подразумевает любое объектное право:
// при его наличии объектный набор не опрашивается вовсе.
// Иначе доступ есть, если objects содержит хотя бы одно из types
// на identifier (логическое ИЛИ).
func CanAccess(ctx context.Context, sys SystemSet, objects ObjectSet, types []ObjectType, identifier string) (bool, error) {
	admin, err := IsAdministrator(ctx, sys)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}

	for _, t := range types {
		ok, err := objects.Has(ctx, t, identifier)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Accessible фильтрует candidates по запрошенным правам с учётом
// административного override: администратору доступны все кандидаты.
func Accessible(ctx context.Context, sys SystemSet, objects ObjectSet, types []ObjectType, candidates []string) ([]string, error) {
	admin, err := IsAdministrator(ctx, sys)
	if err != nil {
		return nil, err
	}
	if admin {
		result := make([]string, len(candidates))
		copy(result, candidates)
		return result, nil
	}

	return objects.AccessibleIdentifiers(ctx, types, candidates)
}
