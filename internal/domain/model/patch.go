package model

// PatchOp — глагол операции патча прав.
type PatchOp string

const (
	// PatchOpAdd — добавление права.
	PatchOpAdd PatchOp = "add"
	// PatchOpRemove — удаление права.
	PatchOpRemove PatchOp = "remove"
)

// PatchOperation — одна операция пакета патчей прав.
// Не персистится: потребляется один раз в рамках запроса.
type PatchOperation struct {
	// Op — глагол операции (add, remove)
	Op PatchOp
	// Path — путь категории права, например "/connectionPermissions/42"
	// или "/systemPermissions"
	Path string
	// Value — строковое представление типа права (READ, ADMINISTER, ...)
	Value string
}
