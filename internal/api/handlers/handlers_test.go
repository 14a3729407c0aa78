package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/remgate/access-module/internal/api/handlers"
	"github.com/bigkaa/remgate/access-module/internal/api/middleware"
	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
	"github.com/bigkaa/remgate/access-module/internal/provider/memory"
	"github.com/bigkaa/remgate/access-module/internal/server"
	"github.com/bigkaa/remgate/access-module/internal/service"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

const testSource = "mem"

// okChecker — заглушка проверки готовности зависимости.
type okChecker struct{}

func (okChecker) CheckReady() (string, string) { return "ok", "заглушка" }

// testEnv — поднятый через httptest HTTP API с in-memory источником.
type testEnv struct {
	provider *memory.Provider
	ts       *httptest.Server
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv собирает полный стек API: источник, сервис, маршруты.
// Пользователи: admin/admin-pass (системный администратор),
// alice/alice-pass (без прав).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider := memory.New(testSource)
	logger := discardLogger()

	admin := &model.User{Username: "admin", Password: "admin-pass"}
	if err := provider.AddUser(admin); err != nil {
		t.Fatalf("регистрация admin: %v", err)
	}
	if err := provider.AddUser(&model.User{Username: "alice", Password: "alice-pass"}); err != nil {
		t.Fatalf("регистрация alice: %v", err)
	}

	uc := memory.NewUserContext(provider, admin)
	bundle, err := uc.Permissions(context.Background(), "admin")
	if err != nil {
		t.Fatalf("получение прав admin: %v", err)
	}
	err = bundle.System.Add(context.Background(), permission.SystemPermission{Type: permission.SystemAdminister})
	if err != nil {
		t.Fatalf("выдача ADMINISTER: %v", err)
	}

	svc := service.New([]auth.Provider{provider}, session.NewRegistry(time.Minute), logger)
	tokenAuth := middleware.NewTokenAuth(svc, logger)
	health := handlers.NewHealthHandler(okChecker{}, nil)
	handler := handlers.NewAPIHandler(svc, health, logger)

	ts := httptest.NewServer(server.NewRouter(logger, handler, tokenAuth))
	t.Cleanup(ts.Close)

	return &testEnv{provider: provider, ts: ts}
}

// request выполняет HTTP-запрос к поднятому API.
// token пустой — запрос без заголовка Authorization.
func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("сериализация тела запроса: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("создание запроса: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("выполнение запроса: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// decode разбирает JSON-тело ответа в dst.
func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("разбор тела ответа: %v", err)
	}
}

// login аутентифицируется и возвращает токен сессии.
func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	resp := e.request(t, http.MethodPost, "/api/v1/tokens", "", map[string]string{
		"username": username,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("аутентификация %q: статус %d, хотели %d", username, resp.StatusCode, http.StatusOK)
	}

	var body struct {
		AuthToken        string   `json:"authToken"`
		AvailableSources []string `json:"availableSources"`
	}
	decode(t, resp, &body)
	if body.AuthToken == "" {
		t.Fatal("пустой authToken в ответе аутентификации")
	}
	return body.AuthToken
}

// errorCode извлекает машиночитаемый код из конверта ошибки.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, resp, &body)
	return body.Error.Code
}

func TestTokenLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Неверный пароль — общий отказ
	resp := env.request(t, http.MethodPost, "/api/v1/tokens", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("неверный пароль: статус %d, хотели %d", resp.StatusCode, http.StatusForbidden)
	}
	if code := errorCode(t, resp); code != "FORBIDDEN" {
		t.Errorf("код ошибки = %q, хотели %q", code, "FORBIDDEN")
	}

	token := env.login(t, "admin", "admin-pass")

	// Logout
	resp = env.request(t, http.MethodDelete, "/api/v1/tokens/"+token, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("logout: статус %d, хотели %d", resp.StatusCode, http.StatusNoContent)
	}

	// Токен разрушенной сессии больше не принимается
	resp = env.request(t, http.MethodGet, "/api/v1/data/"+testSource+"/users/self", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("запрос после logout: статус %d, хотели %d", resp.StatusCode, http.StatusUnauthorized)
	}

	// Повторный logout — 401
	resp = env.request(t, http.MethodDelete, "/api/v1/tokens/"+token, "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("повторный logout: статус %d, хотели %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestRequestWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/v1/data/"+testSource+"/users", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("статус %d, хотели %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if code := errorCode(t, resp); code != "UNAUTHORIZED" {
		t.Errorf("код ошибки = %q, хотели %q", code, "UNAUTHORIZED")
	}
}

func TestGetUserSelf(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice-pass")

	resp := env.request(t, http.MethodGet, "/api/v1/data/"+testSource+"/users/self", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("статус %d, хотели %d", resp.StatusCode, http.StatusOK)
	}

	var user struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	decode(t, resp, &user)
	if user.Username != "alice" {
		t.Errorf("username = %q, хотели %q", user.Username, "alice")
	}
	// Пароль никогда не возвращается наружу
	if user.Password != "" {
		t.Error("пароль попал в ответ")
	}
}

func TestUserCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin-pass")
	base := "/api/v1/data/" + testSource + "/users"

	// Создание
	resp := env.request(t, http.MethodPost, base, token, map[string]any{
		"username":   "bob",
		"password":   "bob-pass",
		"attributes": map[string]string{"full-name": "Bob"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("создание: статус %d, хотели %d", resp.StatusCode, http.StatusCreated)
	}

	// Дубликат — конфликт
	resp = env.request(t, http.MethodPost, base, token, map[string]string{"username": "bob"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("дубликат: статус %d, хотели %d", resp.StatusCode, http.StatusConflict)
	}

	// Пустое имя — валидация
	resp = env.request(t, http.MethodPost, base, token, map[string]string{"username": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("пустое имя: статус %d, хотели %d", resp.StatusCode, http.StatusBadRequest)
	}

	// Обновление с несовпадающим идентификатором — валидация
	resp = env.request(t, http.MethodPut, base+"/bob", token, map[string]string{"username": "mallory"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("несовпадающий идентификатор: статус %d, хотели %d", resp.StatusCode, http.StatusBadRequest)
	}

	// Обновление самого себя — запрещено
	resp = env.request(t, http.MethodPut, base+"/admin", token, map[string]string{"username": "admin"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("самообновление: статус %d, хотели %d", resp.StatusCode, http.StatusForbidden)
	}

	// Удаление
	resp = env.request(t, http.MethodDelete, base+"/bob", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("удаление: статус %d, хотели %d", resp.StatusCode, http.StatusNoContent)
	}

	// Повторное удаление — 404
	resp = env.request(t, http.MethodDelete, base+"/bob", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("повторное удаление: статус %d, хотели %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice-pass")
	path := "/api/v1/data/" + testSource + "/users/alice/password"

	// Неверный старый пароль — общий отказ
	resp := env.request(t, http.MethodPut, path, token, map[string]string{
		"oldPassword": "wrong",
		"newPassword": "new-pass",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("неверный старый пароль: статус %d, хотели %d", resp.StatusCode, http.StatusForbidden)
	}

	// Верный старый пароль
	resp = env.request(t, http.MethodPut, path, token, map[string]string{
		"oldPassword": "alice-pass",
		"newPassword": "new-pass",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("смена пароля: статус %d, хотели %d", resp.StatusCode, http.StatusNoContent)
	}

	// Новый пароль принимается при аутентификации
	env.login(t, "alice", "new-pass")
}

func TestPermissionsPatchAndGet(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin-pass")
	path := "/api/v1/data/" + testSource + "/users/alice/permissions"

	// Пакет: объектное право + системное право
	resp := env.request(t, http.MethodPatch, path, token, []map[string]string{
		{"op": "add", "path": "/connectionPermissions/c1", "value": "READ"},
		{"op": "add", "path": "/systemPermissions", "value": "CREATE_USER"},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("патч: статус %d, хотели %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = env.request(t, http.MethodGet, path, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("чтение прав: статус %d, хотели %d", resp.StatusCode, http.StatusOK)
	}

	var perms struct {
		ConnectionPermissions map[string][]string `json:"connectionPermissions"`
		SystemPermissions     []string            `json:"systemPermissions"`
	}
	decode(t, resp, &perms)

	if got := perms.ConnectionPermissions["c1"]; len(got) != 1 || got[0] != "READ" {
		t.Errorf("connectionPermissions[c1] = %v, хотели [READ]", got)
	}
	if len(perms.SystemPermissions) != 1 || perms.SystemPermissions[0] != "CREATE_USER" {
		t.Errorf("systemPermissions = %v, хотели [CREATE_USER]", perms.SystemPermissions)
	}
}

func TestPermissionsPatchRejectsBatch(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin-pass")
	path := "/api/v1/data/" + testSource + "/users/alice/permissions"

	// Некорректная операция отклоняет весь пакет
	resp := env.request(t, http.MethodPatch, path, token, []map[string]string{
		{"op": "add", "path": "/connectionPermissions/c1", "value": "READ"},
		{"op": "replace", "path": "/systemPermissions", "value": "ADMINISTER"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("статус %d, хотели %d", resp.StatusCode, http.StatusBadRequest)
	}
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Errorf("код ошибки = %q, хотели %q", code, "VALIDATION_ERROR")
	}

	// Валидная операция из отклонённого пакета не применилась
	resp = env.request(t, http.MethodGet, path, token, nil)
	var perms struct {
		ConnectionPermissions map[string][]string `json:"connectionPermissions"`
	}
	decode(t, resp, &perms)
	if len(perms.ConnectionPermissions) != 0 {
		t.Errorf("отклонённый пакет оставил права: %v", perms.ConnectionPermissions)
	}
}

func TestConnectionsAndTree(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin-pass")
	base := "/api/v1/data/" + testSource

	// Группа под корнем
	resp := env.request(t, http.MethodPost, base+"/connectionGroups", token, map[string]string{
		"name": "ops",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("создание группы: статус %d, хотели %d", resp.StatusCode, http.StatusCreated)
	}
	var group struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	decode(t, resp, &group)
	if group.Type != model.GroupTypeOrganizational {
		t.Errorf("тип группы по умолчанию = %q, хотели %q", group.Type, model.GroupTypeOrganizational)
	}

	// Подключение в группе
	resp = env.request(t, http.MethodPost, base+"/connections", token, map[string]any{
		"name":       "srv-1",
		"protocol":   "ssh",
		"parentId":   group.ID,
		"parameters": map[string]string{"hostname": "srv-1.internal", "port": "22"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("создание подключения: статус %d, хотели %d", resp.StatusCode, http.StatusCreated)
	}
	var conn struct {
		ID string `json:"id"`
	}
	decode(t, resp, &conn)

	// Подключение без протокола — валидация
	resp = env.request(t, http.MethodPost, base+"/connections", token, map[string]string{
		"name": "srv-2",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("без протокола: статус %d, хотели %d", resp.StatusCode, http.StatusBadRequest)
	}

	// Дерево от корня: группа с srv-1 внутри
	resp = env.request(t, http.MethodGet, base+"/connectionGroups/ROOT/tree", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("дерево: статус %d, хотели %d", resp.StatusCode, http.StatusOK)
	}
	var tree struct {
		ID          string `json:"id"`
		ChildGroups []struct {
			ID               string `json:"id"`
			ChildConnections []struct {
				ID string `json:"id"`
			} `json:"childConnections"`
		} `json:"childGroups"`
	}
	decode(t, resp, &tree)
	if tree.ID != model.RootGroupIdentifier {
		t.Errorf("корень дерева = %q, хотели %q", tree.ID, model.RootGroupIdentifier)
	}
	if len(tree.ChildGroups) != 1 || tree.ChildGroups[0].ID != group.ID {
		t.Fatalf("дочерние группы корня = %+v, хотели одну группу %q", tree.ChildGroups, group.ID)
	}
	if got := tree.ChildGroups[0].ChildConnections; len(got) != 1 || got[0].ID != conn.ID {
		t.Errorf("подключения группы = %+v, хотели одно %q", got, conn.ID)
	}

	// Некорректный фильтр прав — валидация
	resp = env.request(t, http.MethodGet, base+"/connections?permission=EXECUTE", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("неизвестное право: статус %d, хотели %d", resp.StatusCode, http.StatusBadRequest)
	}

	// Удаление корневой группы — запрещено
	resp = env.request(t, http.MethodDelete, base+"/connectionGroups/ROOT", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("удаление корня: статус %d, хотели %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestActiveConnections(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin-pass")
	base := "/api/v1/data/" + testSource + "/activeConnections"

	// Активное подключение регистрирует шлюз — напрямую через каталог
	admin, err := env.provider.Authenticate(context.Background(), &auth.Credentials{
		Username: "admin", Password: "admin-pass",
	})
	if err != nil {
		t.Fatalf("аутентификация для посева: %v", err)
	}
	err = admin.ActiveConnections().Add(context.Background(), &model.ActiveConnection{
		ID:           "tun-1",
		ConnectionID: "c1",
		Username:     "alice",
		RemoteHost:   "10.0.0.5",
		StartedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("посев активного подключения: %v", err)
	}

	resp := env.request(t, http.MethodGet, base, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("список: статус %d, хотели %d", resp.StatusCode, http.StatusOK)
	}
	var active []struct {
		ID string `json:"id"`
	}
	decode(t, resp, &active)
	if len(active) != 1 || active[0].ID != "tun-1" {
		t.Fatalf("активные подключения = %+v, хотели одно tun-1", active)
	}

	// Принудительное завершение
	resp = env.request(t, http.MethodDelete, base+"/tun-1", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("завершение: статус %d, хотели %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = env.request(t, http.MethodGet, base+"/tun-1", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("после завершения: статус %d, хотели %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestUnknownSource(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin-pass")

	resp := env.request(t, http.MethodGet, "/api/v1/data/ghost/users", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("статус %d, хотели %d", resp.StatusCode, http.StatusNotFound)
	}
	if code := errorCode(t, resp); code != "NOT_FOUND" {
		t.Errorf("код ошибки = %q, хотели %q", code, "NOT_FOUND")
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health/live", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("liveness: статус %d, хотели %d", resp.StatusCode, http.StatusOK)
	}

	resp = env.request(t, http.MethodGet, "/health/ready", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readiness: статус %d, хотели %d", resp.StatusCode, http.StatusOK)
	}
	var ready struct {
		Status string `json:"status"`
	}
	decode(t, resp, &ready)
	if ready.Status != "ok" {
		t.Errorf("readiness status = %q, хотели %q", ready.Status, "ok")
	}

	resp = env.request(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: статус %d, хотели %d", resp.StatusCode, http.StatusOK)
	}
}
