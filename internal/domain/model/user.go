// Пакет model — доменные модели Access Module.
package model

import "time"

// SelfIdentifier — специальный идентификатор "self".
// Всегда разрешается в пользователя, выполняющего текущую операцию,
// и доступен без объектного права READ.
const SelfIdentifier = "self"

// User — учётная запись пользователя источника идентификации.
type User struct {
	// Username — уникальный идентификатор пользователя в рамках источника
	Username string
	// Password — пароль (write-only: принимается при создании/обновлении,
	// никогда не возвращается наружу)
	Password string
	// Attributes — произвольные атрибуты пользователя (ключ → значение)
	Attributes map[string]string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Identifier возвращает идентификатор пользователя (username).
func (u *User) Identifier() string {
	return u.Username
}

// SetIdentifier устанавливает идентификатор пользователя.
func (u *User) SetIdentifier(id string) {
	u.Username = id
}
