package directory

import (
	"context"
	"errors"
	"testing"
)

// testObject — минимальный объект каталога для тестов.
type testObject struct {
	id   string
	name string
}

func (o *testObject) Identifier() string      { return o.id }
func (o *testObject) SetIdentifier(id string) { o.id = id }

func TestMemoryAddGet(t *testing.T) {
	ctx := context.Background()
	d := NewMemory[*testObject]()

	obj := &testObject{id: "a", name: "первый"}
	if err := d.Add(ctx, obj); err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}

	got, err := d.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.name != "первый" {
		t.Errorf("Get() вернул %q, хотели %q", got.name, "первый")
	}
}

func TestMemoryAddAssignsIdentifier(t *testing.T) {
	ctx := context.Background()
	d := NewMemory[*testObject]()

	obj := &testObject{name: "без идентификатора"}
	if err := d.Add(ctx, obj); err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}
	if obj.Identifier() == "" {
		t.Error("Add() не назначил идентификатор")
	}
}

func TestMemoryAddConflict(t *testing.T) {
	ctx := context.Background()
	d := NewMemory[*testObject]()

	if err := d.Add(ctx, &testObject{id: "a"}); err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}
	err := d.Add(ctx, &testObject{id: "a"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Add() повторного идентификатора = %v, хотели ErrConflict", err)
	}
}

func TestMemoryGetNotFound(t *testing.T) {
	ctx := context.Background()
	d := NewMemory[*testObject]()

	_, err := d.Get(ctx, "нет такого")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() несуществующего = %v, хотели ErrNotFound", err)
	}
}

func TestMemoryGetAllSkipsMissing(t *testing.T) {
	ctx := context.Background()
	d := NewMemory[*testObject]()
	if err := d.Add(ctx, &testObject{id: "a"}); err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}
	if err := d.Add(ctx, &testObject{id: "b"}); err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}

	got, err := d.GetAll(ctx, []string{"a", "нет", "b"})
	if err != nil {
		t.Fatalf("GetAll() ошибка: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("GetAll() вернул %d объектов, хотели 2", len(got))
	}
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	d := NewMemory[*testObject]()
	if err := d.Add(ctx, &testObject{id: "a", name: "до"}); err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}

	if err := d.Update(ctx, &testObject{id: "a", name: "после"}); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	got, _ := d.Get(ctx, "a")
	if got.name != "после" {
		t.Errorf("после Update() name = %q, хотели %q", got.name, "после")
	}

	err := d.Update(ctx, &testObject{id: "нет"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() несуществующего = %v, хотели ErrNotFound", err)
	}
}

func TestMemoryRemove(t *testing.T) {
	ctx := context.Background()
	d := NewMemory[*testObject]()
	if err := d.Add(ctx, &testObject{id: "a"}); err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}

	if err := d.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove() ошибка: %v", err)
	}
	// Remove не идемпотентен: повторное удаление — ErrNotFound
	if err := d.Remove(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Remove() = %v, хотели ErrNotFound", err)
	}
}
