package model

import "time"

// ActiveConnection — активное (установленное) подключение пользователя.
// Существует только в памяти на время жизни туннеля, не персистится.
type ActiveConnection struct {
	// ID — UUID активного подключения
	ID string
	// ConnectionID — идентификатор подключения, по которому установлен туннель
	ConnectionID string
	// Username — пользователь, установивший подключение
	Username string
	// RemoteHost — адрес клиента
	RemoteHost string
	// StartedAt — время установления туннеля
	StartedAt time.Time
}

// Identifier возвращает идентификатор активного подключения.
func (a *ActiveConnection) Identifier() string {
	return a.ID
}

// SetIdentifier устанавливает идентификатор активного подключения.
func (a *ActiveConnection) SetIdentifier(id string) {
	a.ID = id
}
