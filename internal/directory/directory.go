// Пакет directory — контракт каталога объектов.
// Каталог — именованная коллекция одного вида ресурса, уникальная в рамках
// пары (вид ресурса, источник идентификации), с уникальными идентификаторами.
//
// Видимость обеспечивает реализация: Get по существующему, но невидимому
// для текущего пользователя идентификатору обязан вести себя в точности как
// Get по несуществующему (ErrNotFound). Каналы ошибок никогда не различают
// отсутствие и невидимость — это защита от перебора идентификаторов.
package directory

import (
	"context"
	"errors"
)

// Ошибки каталога.
var (
	// ErrNotFound — объект отсутствует или невидим для текущего пользователя.
	ErrNotFound = errors.New("объект не найден")
	// ErrConflict — идентификатор уже занят.
	ErrConflict = errors.New("конфликт — идентификатор уже занят")
)

// Object — объект каталога с идентификатором.
type Object interface {
	// Identifier возвращает идентификатор объекта (пустой — не назначен).
	Identifier() string
	// SetIdentifier устанавливает идентификатор объекта.
	SetIdentifier(id string)
}

// Directory — каталог объектов одного вида.
type Directory[T Object] interface {
	// Get возвращает видимый объект по идентификатору или ErrNotFound.
	Get(ctx context.Context, identifier string) (T, error)
	// GetAll возвращает объекты для подмножества identifiers, которые
	// существуют и видимы. Отсутствующие/невидимые молча пропускаются.
	GetAll(ctx context.Context, identifiers []string) ([]T, error)
	// Identifiers возвращает идентификаторы всех видимых объектов.
	Identifiers(ctx context.Context) ([]string, error)
	// Add добавляет объект, назначая идентификатор, если он не задан.
	// Возвращает ErrConflict, если идентификатор занят.
	Add(ctx context.Context, obj T) error
	// Update обновляет существующий объект или возвращает ErrNotFound.
	Update(ctx context.Context, obj T) error
	// Remove удаляет объект по идентификатору или возвращает ErrNotFound.
	Remove(ctx context.Context, identifier string) error
}
