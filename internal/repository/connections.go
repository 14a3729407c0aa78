package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
)

// ConnectionRepository — интерфейс CRUD для таблицы connections.
type ConnectionRepository interface {
	// Create создаёт подключение.
	Create(ctx context.Context, conn *model.Connection) error
	// GetByID возвращает подключение по UUID.
	GetByID(ctx context.Context, id string) (*model.Connection, error)
	// Identifiers возвращает идентификаторы всех подключений.
	Identifiers(ctx context.Context) ([]string, error)
	// ByParent возвращает подключения группы parentID.
	ByParent(ctx context.Context, parentID string) ([]*model.Connection, error)
	// Update обновляет подключение.
	Update(ctx context.Context, conn *model.Connection) error
	// Delete удаляет подключение. Права на него удаляются каскадно триггером.
	Delete(ctx context.Context, id string) error
}

// connectionRepo — реализация ConnectionRepository.
type connectionRepo struct {
	db DBTX
}

// NewConnectionRepository создаёт репозиторий подключений.
func NewConnectionRepository(db DBTX) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) Create(ctx context.Context, conn *model.Connection) error {
	query := `
		INSERT INTO connections (id, name, protocol, parent_id, parameters)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		conn.ID, conn.Name, conn.Protocol, conn.ParentID, conn.Parameters,
	).Scan(&conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: подключение %q уже существует", ErrConflict, conn.ID)
		}
		return fmt.Errorf("ошибка создания подключения: %w", err)
	}
	return nil
}

func (r *connectionRepo) GetByID(ctx context.Context, id string) (*model.Connection, error) {
	query := `
		SELECT id, name, protocol, parent_id, parameters, created_at, updated_at
		FROM connections
		WHERE id = $1`

	conn := &model.Connection{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conn.ID, &conn.Name, &conn.Protocol, &conn.ParentID,
		&conn.Parameters, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения подключения: %w", err)
	}
	return conn, nil
}

func (r *connectionRepo) Identifiers(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM connections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка подключений: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования подключения: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func (r *connectionRepo) ByParent(ctx context.Context, parentID string) ([]*model.Connection, error) {
	query := `
		SELECT id, name, protocol, parent_id, parameters, created_at, updated_at
		FROM connections
		WHERE parent_id = $1
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения подключений группы: %w", err)
	}
	defer rows.Close()

	var result []*model.Connection
	for rows.Next() {
		conn := &model.Connection{}
		if err := rows.Scan(
			&conn.ID, &conn.Name, &conn.Protocol, &conn.ParentID,
			&conn.Parameters, &conn.CreatedAt, &conn.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования подключения: %w", err)
		}
		result = append(result, conn)
	}
	return result, rows.Err()
}

func (r *connectionRepo) Update(ctx context.Context, conn *model.Connection) error {
	query := `
		UPDATE connections
		SET name = $2, protocol = $3, parent_id = $4, parameters = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		conn.ID, conn.Name, conn.Protocol, conn.ParentID, conn.Parameters,
	).Scan(&conn.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления подключения: %w", err)
	}
	return nil
}

func (r *connectionRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления подключения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
