// errors.go — ошибки бизнес-логики сервисного слоя.
// Каждая наружная ошибка отображается ровно в одну категорию исхода;
// ни одна операция не проглатывает сбой молча.
package service

import "errors"

var (
	// ErrValidation — некорректные входные данные (отклоняется до любых мутаций).
	ErrValidation = errors.New("ошибка валидации")
	// ErrNotFound — объект отсутствует или невидим.
	// Отсутствие и невидимость намеренно неразличимы.
	ErrNotFound = errors.New("объект не найден")
	// ErrForbidden — отказ в доступе или повторной аутентификации.
	// Всегда без деталей: канал ошибок не должен помогать перебору
	// имён пользователей и паролей.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrConflict — конфликт (дублирующийся идентификатор при создании).
	ErrConflict = errors.New("конфликт — объект уже существует")
	// ErrUnauthorized — токен сессии отсутствует, неизвестен или истёк.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrInternal — неожиданный сбой коллаборатора, внутренности не раскрываются.
	ErrInternal = errors.New("внутренняя ошибка")
)
