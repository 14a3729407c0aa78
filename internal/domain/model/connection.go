package model

import "time"

// Connection — настроенное подключение к удалённому ресурсу.
// Листовой объект дерева: принадлежит ровно одной группе подключений.
type Connection struct {
	// ID — UUID подключения
	ID string
	// Name — человекочитаемое имя подключения
	Name string
	// Protocol — протокол удалённого доступа (rdp, vnc, ssh, telnet)
	Protocol string
	// ParentID — идентификатор группы, которой принадлежит подключение
	ParentID string
	// Parameters — параметры подключения (hostname, port, ...)
	Parameters map[string]string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Identifier возвращает идентификатор подключения.
func (c *Connection) Identifier() string {
	return c.ID
}

// SetIdentifier устанавливает идентификатор подключения.
func (c *Connection) SetIdentifier(id string) {
	c.ID = id
}
