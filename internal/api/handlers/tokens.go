// tokens.go — обработчики жизненного цикла сессий.
// POST /api/v1/tokens — аутентификация и создание сессии
// DELETE /api/v1/tokens/{token} — разрушение сессии (logout)
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/remgate/access-module/internal/api/errors"
	"github.com/bigkaa/remgate/access-module/internal/auth"
)

// createTokenRequest — тело запроса аутентификации.
// Либо пара username/password, либо SSO-утверждение token.
type createTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// createTokenResponse — ответ успешной аутентификации.
type createTokenResponse struct {
	// AuthToken — токен созданной сессии
	AuthToken string `json:"authToken"`
	// AvailableSources — источники, принявшие учётные данные
	AvailableSources []string `json:"availableSources"`
}

// CreateToken — аутентификация. Учётные данные предъявляются всем
// источникам; отказ всегда общий, без указания причины.
func (h *APIHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	creds := &auth.Credentials{
		Username:   req.Username,
		Password:   req.Password,
		Token:      req.Token,
		RemoteAddr: r.RemoteAddr,
	}

	token, sources, err := h.svc.Authenticate(r.Context(), creds)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createTokenResponse{
		AuthToken:        token,
		AvailableSources: sources,
	})
}

// DeleteToken — logout. Токен передаётся в пути: сам токен и есть
// предъявляемое право на разрушение сессии.
func (h *APIHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.svc.Logout(token); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
