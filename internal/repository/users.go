package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users.
// Пароли хранятся как SHA-256(salt || password); сырой пароль
// таблицы не достигает.
type UserRepository interface {
	// Create создаёт пользователя с готовыми хешем и солью.
	Create(ctx context.Context, user *model.User, passwordHash, passwordSalt []byte) error
	// GetByUsername возвращает пользователя по имени.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetCredentials возвращает хеш и соль пароля пользователя.
	GetCredentials(ctx context.Context, username string) (hash, salt []byte, err error)
	// Identifiers возвращает имена всех пользователей.
	Identifiers(ctx context.Context) ([]string, error)
	// Update обновляет атрибуты пользователя.
	Update(ctx context.Context, user *model.User) error
	// UpdatePassword заменяет хеш и соль пароля.
	UpdatePassword(ctx context.Context, username string, passwordHash, passwordSalt []byte) error
	// Delete удаляет пользователя. Права удаляются каскадно.
	Delete(ctx context.Context, username string) error
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User, passwordHash, passwordSalt []byte) error {
	query := `
		INSERT INTO users (username, password_hash, password_salt, attributes)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.Username, passwordHash, passwordSalt, user.Attributes,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: имя пользователя %q занято", ErrConflict, user.Username)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT username, attributes, created_at, updated_at
		FROM users
		WHERE username = $1`

	user := &model.User{}
	err := r.db.QueryRow(ctx, query, username).Scan(
		&user.Username, &user.Attributes, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

func (r *userRepo) GetCredentials(ctx context.Context, username string) ([]byte, []byte, error) {
	query := `SELECT password_hash, password_salt FROM users WHERE username = $1`

	var hash, salt []byte
	err := r.db.QueryRow(ctx, query, username).Scan(&hash, &salt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка получения учётных данных: %w", err)
	}
	return hash, salt, nil
}

func (r *userRepo) Identifiers(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, username)
	}
	return result, rows.Err()
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET attributes = $2, updated_at = now()
		WHERE username = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, user.Username, user.Attributes).Scan(&user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, username string, passwordHash, passwordSalt []byte) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_salt = $3, updated_at = now()
		WHERE username = $1`

	tag, err := r.db.Exec(ctx, query, username, passwordHash, passwordSalt)
	if err != nil {
		return fmt.Errorf("ошибка обновления пароля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
