package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
)

// ConnectionGroupRepository — интерфейс CRUD для таблицы connection_groups.
// Корневая группа ROOT создаётся миграцией; её удаление пресекается
// сервисным слоем до обращения к репозиторию.
type ConnectionGroupRepository interface {
	// Create создаёт группу подключений.
	Create(ctx context.Context, group *model.ConnectionGroup) error
	// GetByID возвращает группу по идентификатору.
	GetByID(ctx context.Context, id string) (*model.ConnectionGroup, error)
	// Identifiers возвращает идентификаторы всех групп.
	Identifiers(ctx context.Context) ([]string, error)
	// Update обновляет группу.
	Update(ctx context.Context, group *model.ConnectionGroup) error
	// Delete удаляет группу.
	Delete(ctx context.Context, id string) error
}

// connectionGroupRepo — реализация ConnectionGroupRepository.
type connectionGroupRepo struct {
	db DBTX
}

// NewConnectionGroupRepository создаёт репозиторий групп подключений.
func NewConnectionGroupRepository(db DBTX) ConnectionGroupRepository {
	return &connectionGroupRepo{db: db}
}

func (r *connectionGroupRepo) Create(ctx context.Context, group *model.ConnectionGroup) error {
	query := `
		INSERT INTO connection_groups (id, name, type, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		group.ID, group.Name, group.Type, group.ParentID,
	).Scan(&group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: группа %q уже существует", ErrConflict, group.ID)
		}
		return fmt.Errorf("ошибка создания группы: %w", err)
	}
	return nil
}

func (r *connectionGroupRepo) GetByID(ctx context.Context, id string) (*model.ConnectionGroup, error) {
	group, err := r.scanOne(ctx, id)
	if err != nil {
		return nil, err
	}

	// Денормализованные списки потомков — для сериализации наружу
	children := `SELECT id FROM connection_groups WHERE parent_id = $1 ORDER BY name`
	if group.ChildGroups, err = r.ids(ctx, children, id); err != nil {
		return nil, err
	}
	conns := `SELECT id FROM connections WHERE parent_id = $1 ORDER BY name`
	if group.ChildConnections, err = r.ids(ctx, conns, id); err != nil {
		return nil, err
	}
	return group, nil
}

func (r *connectionGroupRepo) scanOne(ctx context.Context, id string) (*model.ConnectionGroup, error) {
	query := `
		SELECT id, name, type, parent_id, created_at, updated_at
		FROM connection_groups
		WHERE id = $1`

	group := &model.ConnectionGroup{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID, &group.Name, &group.Type, &group.ParentID,
		&group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения группы: %w", err)
	}
	return group, nil
}

func (r *connectionGroupRepo) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки идентификаторов: %w", err)
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

func (r *connectionGroupRepo) Identifiers(ctx context.Context) ([]string, error) {
	return r.ids(ctx, `SELECT id FROM connection_groups ORDER BY name`)
}

func (r *connectionGroupRepo) Update(ctx context.Context, group *model.ConnectionGroup) error {
	query := `
		UPDATE connection_groups
		SET name = $2, type = $3, parent_id = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		group.ID, group.Name, group.Type, group.ParentID,
	).Scan(&group.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления группы: %w", err)
	}
	return nil
}

func (r *connectionGroupRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM connection_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления группы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
