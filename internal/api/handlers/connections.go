// connections.go — обработчики каталога подключений.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/remgate/access-module/internal/api/errors"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
)

// connectionRequest — тело запроса создания/обновления подключения.
type connectionRequest struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Protocol   string            `json:"protocol"`
	ParentID   string            `json:"parentId,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// connectionResponse — представление подключения наружу.
type connectionResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Protocol   string            `json:"protocol"`
	ParentID   string            `json:"parentId"`
	Parameters map[string]string `json:"parameters,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func toConnectionResponse(c *model.Connection) connectionResponse {
	return connectionResponse{
		ID:         c.ID,
		Name:       c.Name,
		Protocol:   c.Protocol,
		ParentID:   c.ParentID,
		Parameters: c.Parameters,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// ListConnections — GET /api/v1/data/{source}/connections.
func (h *APIHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	types, err := permissionTypes(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	conns, err := h.svc.ListConnections(r.Context(), sess, sourceParam(r), types)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]connectionResponse, 0, len(conns))
	for _, c := range conns {
		resp = append(resp, toConnectionResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetConnection — GET /api/v1/data/{source}/connections/{id}.
func (h *APIHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	conn, err := h.svc.GetConnection(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// CreateConnection — POST /api/v1/data/{source}/connections.
func (h *APIHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var req connectionRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	conn := &model.Connection{
		ID:         req.ID,
		Name:       req.Name,
		Protocol:   req.Protocol,
		ParentID:   req.ParentID,
		Parameters: req.Parameters,
	}

	created, err := h.svc.CreateConnection(r.Context(), sess, sourceParam(r), conn)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConnectionResponse(created))
}

// UpdateConnection — PUT /api/v1/data/{source}/connections/{id}.
func (h *APIHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var req connectionRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	upd := &model.Connection{
		ID:         req.ID,
		Name:       req.Name,
		Protocol:   req.Protocol,
		ParentID:   req.ParentID,
		Parameters: req.Parameters,
	}

	if err := h.svc.UpdateConnection(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id"), upd); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteConnection — DELETE /api/v1/data/{source}/connections/{id}.
func (h *APIHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteConnection(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
