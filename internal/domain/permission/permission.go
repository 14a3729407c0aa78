// Пакет permission — модель прав доступа Access Module.
// Два вида прав: объектные (привязаны к конкретному ресурсу) и системные
// (не привязаны к ресурсу). Наборы прав принадлежат ровно одному
// пользователю и изменяются через контракты ObjectSet / SystemSet.
package permission

import "fmt"

// ObjectType — тип объектного права.
type ObjectType string

// Типы объектных прав.
const (
	// ObjectRead — чтение объекта.
	ObjectRead ObjectType = "READ"
	// ObjectUpdate — изменение объекта.
	ObjectUpdate ObjectType = "UPDATE"
	// ObjectDelete — удаление объекта.
	ObjectDelete ObjectType = "DELETE"
	// ObjectAdminister — администрирование объекта (включая управление правами на него).
	ObjectAdminister ObjectType = "ADMINISTER"
)

// ParseObjectType преобразует строку в ObjectType.
// Неизвестный тип — ошибка клиента (валидация до каких-либо мутаций).
func ParseObjectType(s string) (ObjectType, error) {
	switch ObjectType(s) {
	case ObjectRead, ObjectUpdate, ObjectDelete, ObjectAdminister:
		return ObjectType(s), nil
	}
	return "", fmt.Errorf("неизвестный тип объектного права: %q", s)
}

// SystemType — тип системного права.
type SystemType string

// Типы системных прав.
const (
	// SystemAdminister — полное администрирование системы.
	// Подразумевает любое объектное право без обращения к объектным наборам.
	SystemAdminister SystemType = "ADMINISTER"
	// SystemCreateUser — создание пользователей.
	SystemCreateUser SystemType = "CREATE_USER"
	// SystemCreateConnection — создание подключений.
	SystemCreateConnection SystemType = "CREATE_CONNECTION"
	// SystemCreateConnectionGroup — создание групп подключений.
	SystemCreateConnectionGroup SystemType = "CREATE_CONNECTION_GROUP"
)

// ParseSystemType преобразует строку в SystemType.
func ParseSystemType(s string) (SystemType, error) {
	switch SystemType(s) {
	case SystemAdminister, SystemCreateUser, SystemCreateConnection, SystemCreateConnectionGroup:
		return SystemType(s), nil
	}
	return "", fmt.Errorf("неизвестный тип системного права: %q", s)
}

// ObjectPermission — объектное право: пара (тип, идентификатор ресурса).
// Равенство структурное.
type ObjectPermission struct {
	// Type — тип права
	Type ObjectType
	// Identifier — идентификатор целевого ресурса
	Identifier string
}

// SystemPermission — системное право. Не имеет целевого ресурса.
type SystemPermission struct {
	// Type — тип права
	Type SystemType
}
