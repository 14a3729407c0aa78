// groups.go — обработчики каталога групп подключений и дерева.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/remgate/access-module/internal/api/errors"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/service"
)

// groupRequest — тело запроса создания/обновления группы.
type groupRequest struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Type     string  `json:"type,omitempty"`
	ParentID *string `json:"parentId,omitempty"`
}

// groupResponse — представление группы наружу.
type groupResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	ParentID         *string   `json:"parentId,omitempty"`
	ChildGroups      []string  `json:"childGroups,omitempty"`
	ChildConnections []string  `json:"childConnections,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toGroupResponse(g *model.ConnectionGroup) groupResponse {
	return groupResponse{
		ID:               g.ID,
		Name:             g.Name,
		Type:             g.Type,
		ParentID:         g.ParentID,
		ChildGroups:      g.ChildGroups,
		ChildConnections: g.ChildConnections,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

// ListConnectionGroups — GET /api/v1/data/{source}/connectionGroups.
func (h *APIHandler) ListConnectionGroups(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	types, err := permissionTypes(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	groups, err := h.svc.ListConnectionGroups(r.Context(), sess, sourceParam(r), types)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, toGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetConnectionGroup — GET /api/v1/data/{source}/connectionGroups/{id}.
func (h *APIHandler) GetConnectionGroup(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	group, err := h.svc.GetConnectionGroup(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

// CreateConnectionGroup — POST /api/v1/data/{source}/connectionGroups.
func (h *APIHandler) CreateConnectionGroup(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	group := &model.ConnectionGroup{
		ID:       req.ID,
		Name:     req.Name,
		Type:     req.Type,
		ParentID: req.ParentID,
	}

	created, err := h.svc.CreateConnectionGroup(r.Context(), sess, sourceParam(r), group)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(created))
}

// UpdateConnectionGroup — PUT /api/v1/data/{source}/connectionGroups/{id}.
func (h *APIHandler) UpdateConnectionGroup(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	upd := &model.ConnectionGroup{
		ID:       req.ID,
		Name:     req.Name,
		Type:     req.Type,
		ParentID: req.ParentID,
	}

	if err := h.svc.UpdateConnectionGroup(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id"), upd); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteConnectionGroup — DELETE /api/v1/data/{source}/connectionGroups/{id}.
func (h *APIHandler) DeleteConnectionGroup(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteConnectionGroup(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// treeConnectionResponse — лист дерева наружу.
type treeConnectionResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	ParentID string `json:"parentId"`
}

// treeGroupResponse — узел дерева наружу.
type treeGroupResponse struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Type             string                    `json:"type"`
	ChildGroups      []treeGroupResponse       `json:"childGroups,omitempty"`
	ChildConnections []treeConnectionResponse  `json:"childConnections,omitempty"`
}

func toTreeResponse(node *service.TreeGroup) treeGroupResponse {
	resp := treeGroupResponse{
		ID:   node.ID,
		Name: node.Name,
		Type: node.Type,
	}
	for _, child := range node.ChildGroups {
		resp.ChildGroups = append(resp.ChildGroups, toTreeResponse(child))
	}
	for _, conn := range node.ChildConnections {
		resp.ChildConnections = append(resp.ChildConnections, treeConnectionResponse{
			ID:       conn.ID,
			Name:     conn.Name,
			Protocol: conn.Protocol,
			ParentID: conn.ParentID,
		})
	}
	return resp
}

// ConnectionTree — GET /api/v1/data/{source}/connectionGroups/{id}/tree.
// Опциональный параметр ?permission= задаёт фильтр листьев;
// без него в дерево входят все видимые подключения.
func (h *APIHandler) ConnectionTree(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	types, err := permissionTypes(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	tree, err := h.svc.ConnectionTree(r.Context(), sess, sourceParam(r), chi.URLParam(r, "id"), types)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreeResponse(tree))
}
