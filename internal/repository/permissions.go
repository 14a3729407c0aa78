package repository

import (
	"context"
	"fmt"
)

// Категории объектных прав в таблице object_permissions.
const (
	CategoryConnection       = "connection"
	CategoryConnectionGroup  = "connection_group"
	CategoryActiveConnection = "active_connection"
	CategoryUser             = "user"
)

// PermissionRepository — доступ к таблицам object_permissions и
// system_permissions. Добавление имеющегося права и удаление
// отсутствующего — no-op на уровне SQL (ON CONFLICT DO NOTHING,
// DELETE без проверки затронутых строк).
type PermissionRepository interface {
	// HasObject сообщает о наличии объектного права.
	HasObject(ctx context.Context, username, category, permission, identifier string) (bool, error)
	// AddObject добавляет объектное право (идемпотентно).
	AddObject(ctx context.Context, username, category, permission, identifier string) error
	// RemoveObject удаляет объектное право (идемпотентно).
	RemoveObject(ctx context.Context, username, category, permission, identifier string) error
	// ListObject возвращает все объектные права категории как пары
	// (permission, identifier).
	ListObject(ctx context.Context, username, category string) ([][2]string, error)
	// MatchingIdentifiers возвращает множество candidates, на которые у
	// пользователя есть хотя бы одно из permissions в категории.
	// Порядок результата не определён.
	MatchingIdentifiers(ctx context.Context, username, category string, permissions, candidates []string) ([]string, error)
	// VisibleIdentifiers возвращает идентификаторы категории, на которые
	// у пользователя есть хотя бы одно объектное право любого типа.
	VisibleIdentifiers(ctx context.Context, username, category string) ([]string, error)

	// HasSystem сообщает о наличии системного права.
	HasSystem(ctx context.Context, username, permission string) (bool, error)
	// AddSystem добавляет системное право (идемпотентно).
	AddSystem(ctx context.Context, username, permission string) error
	// RemoveSystem удаляет системное право (идемпотентно).
	RemoveSystem(ctx context.Context, username, permission string) error
	// ListSystem возвращает все системные права пользователя.
	ListSystem(ctx context.Context, username string) ([]string, error)
}

// permissionRepo — реализация PermissionRepository.
type permissionRepo struct {
	db DBTX
}

// NewPermissionRepository создаёт репозиторий прав.
func NewPermissionRepository(db DBTX) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) HasObject(ctx context.Context, username, category, permission, identifier string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM object_permissions
			WHERE username = $1 AND category = $2 AND permission = $3 AND identifier = $4
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, username, category, permission, identifier).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки объектного права: %w", err)
	}
	return exists, nil
}

func (r *permissionRepo) AddObject(ctx context.Context, username, category, permission, identifier string) error {
	query := `
		INSERT INTO object_permissions (username, category, permission, identifier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, query, username, category, permission, identifier); err != nil {
		return fmt.Errorf("ошибка добавления объектного права: %w", err)
	}
	return nil
}

func (r *permissionRepo) RemoveObject(ctx context.Context, username, category, permission, identifier string) error {
	query := `
		DELETE FROM object_permissions
		WHERE username = $1 AND category = $2 AND permission = $3 AND identifier = $4`

	if _, err := r.db.Exec(ctx, query, username, category, permission, identifier); err != nil {
		return fmt.Errorf("ошибка удаления объектного права: %w", err)
	}
	return nil
}

func (r *permissionRepo) ListObject(ctx context.Context, username, category string) ([][2]string, error) {
	query := `
		SELECT permission, identifier FROM object_permissions
		WHERE username = $1 AND category = $2
		ORDER BY identifier, permission`

	rows, err := r.db.Query(ctx, query, username, category)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения объектных прав: %w", err)
	}
	defer rows.Close()

	var result [][2]string
	for rows.Next() {
		var p, id string
		if err := rows.Scan(&p, &id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования объектного права: %w", err)
		}
		result = append(result, [2]string{p, id})
	}
	return result, rows.Err()
}

func (r *permissionRepo) MatchingIdentifiers(ctx context.Context, username, category string, permissions, candidates []string) ([]string, error) {
	query := `
		SELECT DISTINCT identifier FROM object_permissions
		WHERE username = $1 AND category = $2
			AND permission = ANY($3)
			AND identifier = ANY($4)`

	rows, err := r.db.Query(ctx, query, username, category, permissions, candidates)
	if err != nil {
		return nil, fmt.Errorf("ошибка фильтрации идентификаторов: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования идентификатора: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func (r *permissionRepo) VisibleIdentifiers(ctx context.Context, username, category string) ([]string, error) {
	query := `
		SELECT DISTINCT identifier FROM object_permissions
		WHERE username = $1 AND category = $2
		ORDER BY identifier`

	rows, err := r.db.Query(ctx, query, username, category)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения видимых идентификаторов: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования идентификатора: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func (r *permissionRepo) HasSystem(ctx context.Context, username, permission string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM system_permissions
			WHERE username = $1 AND permission = $2
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, username, permission).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки системного права: %w", err)
	}
	return exists, nil
}

func (r *permissionRepo) AddSystem(ctx context.Context, username, permission string) error {
	query := `
		INSERT INTO system_permissions (username, permission)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, query, username, permission); err != nil {
		return fmt.Errorf("ошибка добавления системного права: %w", err)
	}
	return nil
}

func (r *permissionRepo) RemoveSystem(ctx context.Context, username, permission string) error {
	query := `DELETE FROM system_permissions WHERE username = $1 AND permission = $2`

	if _, err := r.db.Exec(ctx, query, username, permission); err != nil {
		return fmt.Errorf("ошибка удаления системного права: %w", err)
	}
	return nil
}

func (r *permissionRepo) ListSystem(ctx context.Context, username string) ([]string, error) {
	query := `
		SELECT permission FROM system_permissions
		WHERE username = $1
		ORDER BY permission`

	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения системных прав: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("ошибка сканирования системного права: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
