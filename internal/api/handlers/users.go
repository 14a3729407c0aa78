// users.go — обработчики каталога пользователей:
// CRUD, смена пароля, чтение и пакетный патч прав.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/remgate/access-module/internal/api/errors"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/service"
)

// userRequest — тело запроса создания/обновления пользователя.
// Пароль write-only: принимается, но никогда не возвращается.
type userRequest struct {
	Username   string            `json:"username"`
	Password   string            `json:"password,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// userResponse — представление пользователя наружу (без пароля).
type userResponse struct {
	Username   string            `json:"username"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		Username:   u.Username,
		Attributes: u.Attributes,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// ListUsers — GET /api/v1/data/{source}/users.
// Опциональный параметр ?permission= фильтрует по правам (логическое ИЛИ).
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	types, err := permissionTypes(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	users, err := h.svc.ListUsers(r.Context(), sess, sourceParam(r), types)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser — GET /api/v1/data/{source}/users/{username}.
// "self" разрешается в пользователя сессии.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	user, err := h.svc.GetUser(r.Context(), sess, sourceParam(r), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// CreateUser — POST /api/v1/data/{source}/users.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	user := &model.User{
		Username:   req.Username,
		Password:   req.Password,
		Attributes: req.Attributes,
	}

	created, err := h.svc.CreateUser(r.Context(), sess, sourceParam(r), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

// UpdateUser — PUT /api/v1/data/{source}/users/{username}.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	upd := &model.User{
		Username:   req.Username,
		Password:   req.Password,
		Attributes: req.Attributes,
	}

	if err := h.svc.UpdateUser(r.Context(), sess, sourceParam(r), chi.URLParam(r, "username"), upd); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser — DELETE /api/v1/data/{source}/users/{username}.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(r.Context(), sess, sourceParam(r), chi.URLParam(r, "username")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updatePasswordRequest — тело запроса смены пароля.
type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// UpdatePassword — PUT /api/v1/data/{source}/users/{username}/password.
// Старый пароль повторно проверяется источником; любой сбой проверки —
// общий отказ.
func (h *APIHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	err := h.svc.UpdatePassword(r.Context(), sess, sourceParam(r),
		chi.URLParam(r, "username"), req.OldPassword, req.NewPassword, r.RemoteAddr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// permissionsResponse — снимок прав пользователя наружу.
// Объектные права группируются по идентификатору ресурса.
type permissionsResponse struct {
	ConnectionPermissions       map[string][]string `json:"connectionPermissions"`
	ConnectionGroupPermissions  map[string][]string `json:"connectionGroupPermissions"`
	ActiveConnectionPermissions map[string][]string `json:"activeConnectionPermissions"`
	UserPermissions             map[string][]string `json:"userPermissions"`
	SystemPermissions           []string            `json:"systemPermissions"`
}

func toPermissionsResponse(p *service.Permissions) permissionsResponse {
	resp := permissionsResponse{
		ConnectionPermissions:       groupByIdentifier(p.Connection),
		ConnectionGroupPermissions:  groupByIdentifier(p.ConnectionGroup),
		ActiveConnectionPermissions: groupByIdentifier(p.ActiveConnection),
		UserPermissions:             groupByIdentifier(p.User),
		SystemPermissions:           make([]string, 0, len(p.System)),
	}
	for _, sp := range p.System {
		resp.SystemPermissions = append(resp.SystemPermissions, string(sp.Type))
	}
	return resp
}

// groupByIdentifier сворачивает список объектных прав в отображение
// идентификатор ресурса → типы прав.
func groupByIdentifier(perms []permission.ObjectPermission) map[string][]string {
	grouped := make(map[string][]string, len(perms))
	for _, p := range perms {
		grouped[p.Identifier] = append(grouped[p.Identifier], string(p.Type))
	}
	return grouped
}

// GetPermissions — GET /api/v1/data/{source}/users/{username}/permissions.
func (h *APIHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	perms, err := h.svc.GetPermissions(r.Context(), sess, sourceParam(r), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionsResponse(perms))
}

// patchOperationRequest — одна операция пакета патчей прав.
type patchOperationRequest struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// PatchPermissions — PATCH /api/v1/data/{source}/users/{username}/permissions.
// Пакет операций применяется как целое: любая некорректная операция
// отклоняет весь пакет до каких-либо изменений.
func (h *APIHandler) PatchPermissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var reqOps []patchOperationRequest
	if err := decodeBody(r, &reqOps); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	ops := make([]model.PatchOperation, 0, len(reqOps))
	for _, op := range reqOps {
		ops = append(ops, model.PatchOperation{
			Op:    model.PatchOp(op.Op),
			Path:  op.Path,
			Value: op.Value,
		})
	}

	err := h.svc.PatchPermissions(r.Context(), sess, sourceParam(r), chi.URLParam(r, "username"), ops)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
