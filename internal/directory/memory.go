// memory.go — in-memory реализация каталога.
// Используется memory/oidc источниками идентификации, реестром активных
// подключений и тестами. Все объекты видимы всем.
package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory — потокобезопасный in-memory каталог.
type Memory[T Object] struct {
	mu      sync.RWMutex
	objects map[string]T
}

// NewMemory создаёт пустой in-memory каталог.
func NewMemory[T Object]() *Memory[T] {
	return &Memory[T]{objects: make(map[string]T)}
}

// Get возвращает объект по идентификатору или ErrNotFound.
func (d *Memory[T]) Get(_ context.Context, identifier string) (T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	obj, ok := d.objects[identifier]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return obj, nil
}

// GetAll возвращает объекты для существующих идентификаторов,
// отсутствующие молча пропускаются.
func (d *Memory[T]) GetAll(_ context.Context, identifiers []string) ([]T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]T, 0, len(identifiers))
	for _, id := range identifiers {
		if obj, ok := d.objects[id]; ok {
			result = append(result, obj)
		}
	}
	return result, nil
}

// Identifiers возвращает идентификаторы всех объектов.
func (d *Memory[T]) Identifiers(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]string, 0, len(d.objects))
	for id := range d.objects {
		result = append(result, id)
	}
	return result, nil
}

// Add добавляет объект. Если идентификатор не назначен — генерирует UUID.
// Возвращает ErrConflict, если идентификатор занят.
func (d *Memory[T]) Add(_ context.Context, obj T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if obj.Identifier() == "" {
		obj.SetIdentifier(uuid.NewString())
	}
	if _, ok := d.objects[obj.Identifier()]; ok {
		return ErrConflict
	}
	d.objects[obj.Identifier()] = obj
	return nil
}

// Update обновляет существующий объект или возвращает ErrNotFound.
func (d *Memory[T]) Update(_ context.Context, obj T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.objects[obj.Identifier()]; !ok {
		return ErrNotFound
	}
	d.objects[obj.Identifier()] = obj
	return nil
}

// Remove удаляет объект или возвращает ErrNotFound.
func (d *Memory[T]) Remove(_ context.Context, identifier string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.objects[identifier]; !ok {
		return ErrNotFound
	}
	delete(d.objects, identifier)
	return nil
}
