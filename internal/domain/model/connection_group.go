package model

import "time"

// RootGroupIdentifier — идентификатор корневой группы подключений.
// Корневая группа создаётся миграцией и не может быть удалена.
const RootGroupIdentifier = "ROOT"

// Типы групп подключений.
const (
	// GroupTypeOrganizational — организационная группа (папка).
	GroupTypeOrganizational = "ORGANIZATIONAL"
	// GroupTypeBalancing — балансирующая группа (подключение к наименее
	// загруженному дочернему подключению).
	GroupTypeBalancing = "BALANCING"
)

// ConnectionGroup — иерархическая группа подключений.
// Отношение parent/child не должно содержать циклов.
type ConnectionGroup struct {
	// ID — идентификатор группы (UUID или "ROOT" для корня)
	ID string
	// Name — человекочитаемое имя группы
	Name string
	// Type — тип группы (ORGANIZATIONAL, BALANCING)
	Type string
	// ParentID — идентификатор родительской группы (nil — корень)
	ParentID *string
	// ChildGroups — идентификаторы дочерних групп
	ChildGroups []string
	// ChildConnections — идентификаторы дочерних подключений
	ChildConnections []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Identifier возвращает идентификатор группы.
func (g *ConnectionGroup) Identifier() string {
	return g.ID
}

// SetIdentifier устанавливает идентификатор группы.
func (g *ConnectionGroup) SetIdentifier(id string) {
	g.ID = id
}
