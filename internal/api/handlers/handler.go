// handler.go — основной обработчик API Access Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/remgate/access-module/internal/api/errors"
	"github.com/bigkaa/remgate/access-module/internal/api/middleware"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/service"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

// APIHandler — основной обработчик API Access Module.
type APIHandler struct {
	svc    *service.Service
	health *HealthHandler
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(svc *service.Service, health *HealthHandler, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		svc:    svc,
		health: health,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Отказ в доступе и внутренние ошибки отдаются без деталей.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w, "Требуется аутентификация")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Доступ запрещён")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

// requestSession извлекает сессию из контекста запроса.
// Отсутствие сессии — запрос прошёл мимо middleware аутентификации.
func requestSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		apierrors.Unauthorized(w, "Отсутствует сессия в контексте")
		return nil, false
	}
	return sess, true
}

// sourceParam извлекает идентификатор источника из пути запроса.
func sourceParam(r *http.Request) string {
	return chi.URLParam(r, "source")
}

// permissionTypes разбирает повторяемый query-параметр permission
// (?permission=READ&permission=UPDATE) в список типов объектных прав.
// Пустой список означает отсутствие фильтрации.
func permissionTypes(r *http.Request) ([]permission.ObjectType, error) {
	values := r.URL.Query()["permission"]
	if len(values) == 0 {
		return nil, nil
	}

	types := make([]permission.ObjectType, 0, len(values))
	for _, v := range values {
		t, err := permission.ParseObjectType(v)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// decodeBody декодирует JSON-тело запроса в dst.
func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
