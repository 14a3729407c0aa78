// active_connections.go — обработчики каталога активных подключений.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/remgate/access-module/internal/api/errors"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
)

// activeConnectionResponse — представление активного подключения наружу.
type activeConnectionResponse struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	Username     string    `json:"username"`
	RemoteHost   string    `json:"remoteHost"`
	StartedAt    time.Time `json:"startedAt"`
}

func toActiveConnectionResponse(a *model.ActiveConnection) activeConnectionResponse {
	return activeConnectionResponse{
		ID:           a.ID,
		ConnectionID: a.ConnectionID,
		Username:     a.Username,
		RemoteHost:   a.RemoteHost,
		StartedAt:    a.StartedAt,
	}
}

// ListActiveConnections — GET /api/v1/data/{source}/activeConnections.
func (h *APIHandler) ListActiveConnections(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	types, err := permissionTypes(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	active, err := h.svc.ListActiveConnections(r.Context(), sess, sourceParam(r), types)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]activeConnectionResponse, 0, len(active))
	for _, a := range active {
		resp = append(resp, toActiveConnectionResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetActiveConnection — GET /api/v1/data/{source}/activeConnections/{id}.
func (h *APIHandler) GetActiveConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	active, err := h.svc.GetActiveConnection(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActiveConnectionResponse(active))
}

// KillActiveConnection — DELETE /api/v1/data/{source}/activeConnections/{id}.
// Принудительное завершение: запись удаляется из каталога, разрыв туннеля —
// забота шлюза.
func (h *APIHandler) KillActiveConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	if err := h.svc.KillActiveConnection(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
