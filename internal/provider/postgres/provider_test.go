package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/config"
	"github.com/bigkaa/remgate/access-module/internal/database"
	"github.com/bigkaa/remgate/access-module/internal/directory"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/domain/permission"
)

// setupProvider запускает PostgreSQL контейнер, применяет миграции
// и возвращает источник поверх свежей БД с посеянным администратором.
func setupProvider(t *testing.T) *Provider {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("remgate_test"),
		tcpostgres.WithUsername("remgate"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	os.Setenv("ACM_DB_HOST", host)
	os.Setenv("ACM_DB_PORT", port.Port())
	os.Setenv("ACM_DB_NAME", "remgate_test")
	os.Setenv("ACM_DB_USER", "remgate")
	os.Setenv("ACM_DB_PASSWORD", "test-password")
	os.Setenv("ACM_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return New("postgres", pool, logger)
}

// authenticate — вход с проверкой ошибки.
func authenticate(t *testing.T, p *Provider, username, password string) auth.UserContext {
	t.Helper()

	uc, err := p.Authenticate(context.Background(), &auth.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Authenticate(%q) ошибка: %v", username, err)
	}
	return uc
}

// createUser создаёт пользователя через каталог админа и входит под ним.
func createUser(t *testing.T, p *Provider, admin auth.UserContext, username, password string) auth.UserContext {
	t.Helper()

	ctx := context.Background()
	user := &model.User{Username: username, Password: password}
	if err := admin.Users().Add(ctx, user); err != nil {
		t.Fatalf("Users().Add(%q) ошибка: %v", username, err)
	}
	if user.Password != "" {
		t.Error("пароль не затёрт после сохранения")
	}
	return authenticate(t, p, username, password)
}

func TestAuthenticate(t *testing.T) {
	p := setupProvider(t)

	// Посеянный миграцией администратор
	admin := authenticate(t, p, "admin", "admin")
	if admin.Self().Username != "admin" {
		t.Errorf("Self().Username = %q, хотели %q", admin.Self().Username, "admin")
	}
	if admin.Provider().Identifier() != "postgres" {
		t.Errorf("Provider().Identifier() = %q, хотели %q", admin.Provider().Identifier(), "postgres")
	}

	ctx := context.Background()
	bundle, err := admin.Permissions(ctx, "admin")
	if err != nil {
		t.Fatalf("Permissions(admin) ошибка: %v", err)
	}
	isAdmin, err := permission.IsAdministrator(ctx, bundle.System)
	if err != nil {
		t.Fatalf("IsAdministrator() ошибка: %v", err)
	}
	if !isAdmin {
		t.Error("посеянный администратор без системного ADMINISTER")
	}

	// Неизвестное имя и неверный пароль неразличимы
	failures := []struct {
		name     string
		username string
		password string
	}{
		{"неверный пароль", "admin", "не-admin"},
		{"пустой пароль", "admin", ""},
		{"неизвестный пользователь", "nobody", "admin"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Authenticate(ctx, &auth.Credentials{Username: tt.username, Password: tt.password})
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				t.Errorf("Authenticate() = %v, хотели ErrInvalidCredentials", err)
			}
		})
	}
}

func TestPasswordChange(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	admin := authenticate(t, p, "admin", "admin")
	bob := createUser(t, p, admin, "bob", "старый-пароль")

	// Непустой пароль в Update — смена с новой солью
	self := bob.Self()
	self.Password = "новый-пароль"
	if err := bob.Users().Update(ctx, self); err != nil {
		t.Fatalf("Users().Update() ошибка: %v", err)
	}

	if _, err := p.Authenticate(ctx, &auth.Credentials{Username: "bob", Password: "старый-пароль"}); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("вход со старым паролем = %v, хотели ErrInvalidCredentials", err)
	}
	authenticate(t, p, "bob", "новый-пароль")
}

func TestUserVisibility(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	admin := authenticate(t, p, "admin", "admin")
	bob := createUser(t, p, admin, "bob", "bob-pass")
	createUser(t, p, admin, "carol", "carol-pass")

	// Администратор видит всех
	ids, err := admin.Users().Identifiers(ctx)
	if err != nil {
		t.Fatalf("admin Identifiers() ошибка: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("admin Identifiers() = %v, хотели 3 пользователей", ids)
	}

	// Без прав bob видит только себя
	ids, err = bob.Users().Identifiers(ctx)
	if err != nil {
		t.Fatalf("bob Identifiers() ошибка: %v", err)
	}
	if len(ids) != 1 || ids[0] != "bob" {
		t.Errorf("bob Identifiers() = %v, хотели [bob]", ids)
	}

	// Невидимый пользователь неотличим от отсутствующего
	if _, err := bob.Users().Get(ctx, "carol"); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("bob Get(carol) = %v, хотели ErrNotFound", err)
	}
	if _, err := bob.Permissions(ctx, "carol"); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("bob Permissions(carol) = %v, хотели ErrNotFound", err)
	}

	// READ на carol делает её видимой для bob
	bobBundle, err := admin.Permissions(ctx, "bob")
	if err != nil {
		t.Fatalf("admin Permissions(bob) ошибка: %v", err)
	}
	if err := bobBundle.User.Add(ctx, permission.ObjectPermission{
		Type:       permission.ObjectRead,
		Identifier: "carol",
	}); err != nil {
		t.Fatalf("User.Add() ошибка: %v", err)
	}

	got, err := bob.Users().Get(ctx, "carol")
	if err != nil {
		t.Fatalf("bob Get(carol) после выдачи права: %v", err)
	}
	if got.Username != "carol" {
		t.Errorf("Get(carol).Username = %q, хотели %q", got.Username, "carol")
	}

	ids, err = bob.Users().Identifiers(ctx)
	if err != nil {
		t.Fatalf("bob Identifiers() ошибка: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("bob Identifiers() = %v, хотели [carol bob]", ids)
	}

	// Отзыв права действует немедленно
	if err := bobBundle.User.Remove(ctx, permission.ObjectPermission{
		Type:       permission.ObjectRead,
		Identifier: "carol",
	}); err != nil {
		t.Fatalf("User.Remove() ошибка: %v", err)
	}
	if _, err := bob.Users().Get(ctx, "carol"); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("bob Get(carol) после отзыва = %v, хотели ErrNotFound", err)
	}
}

func TestConnectionVisibility(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	admin := authenticate(t, p, "admin", "admin")
	bob := createUser(t, p, admin, "bob", "bob-pass")

	root := model.RootGroupIdentifier
	group := &model.ConnectionGroup{Name: "prod", Type: model.GroupTypeOrganizational, ParentID: &root}
	if err := admin.ConnectionGroups().Add(ctx, group); err != nil {
		t.Fatalf("ConnectionGroups().Add() ошибка: %v", err)
	}
	conn := &model.Connection{
		Name:       "srv-1",
		Protocol:   "ssh",
		ParentID:   group.ID,
		Parameters: map[string]string{"hostname": "srv-1.internal", "port": "22"},
	}
	if err := admin.Connections().Add(ctx, conn); err != nil {
		t.Fatalf("Connections().Add() ошибка: %v", err)
	}

	// Корневая группа видна всем, остальное — по правам
	if _, err := bob.ConnectionGroups().Get(ctx, model.RootGroupIdentifier); err != nil {
		t.Errorf("bob Get(ROOT) ошибка: %v", err)
	}
	ids, err := bob.ConnectionGroups().Identifiers(ctx)
	if err != nil {
		t.Fatalf("bob ConnectionGroups().Identifiers() ошибка: %v", err)
	}
	if len(ids) != 1 || ids[0] != model.RootGroupIdentifier {
		t.Errorf("bob ConnectionGroups().Identifiers() = %v, хотели [ROOT]", ids)
	}
	if _, err := bob.Connections().Get(ctx, conn.ID); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("bob Get(srv-1) = %v, хотели ErrNotFound", err)
	}

	bobBundle, err := admin.Permissions(ctx, "bob")
	if err != nil {
		t.Fatalf("admin Permissions(bob) ошибка: %v", err)
	}
	if err := bobBundle.Connection.Add(ctx, permission.ObjectPermission{
		Type:       permission.ObjectRead,
		Identifier: conn.ID,
	}); err != nil {
		t.Fatalf("Connection.Add() ошибка: %v", err)
	}

	got, err := bob.Connections().Get(ctx, conn.ID)
	if err != nil {
		t.Fatalf("bob Get(srv-1) после выдачи права: %v", err)
	}
	if got.Parameters["hostname"] != "srv-1.internal" {
		t.Errorf("Parameters = %v, хотели hostname=srv-1.internal", got.Parameters)
	}

	// AccessibleIdentifiers фильтрует по запрошенным правам
	accessible, err := bobBundle.Connection.AccessibleIdentifiers(ctx,
		[]permission.ObjectType{permission.ObjectRead}, []string{conn.ID, "посторонний-id"})
	if err != nil {
		t.Fatalf("AccessibleIdentifiers() ошибка: %v", err)
	}
	if len(accessible) != 1 || accessible[0] != conn.ID {
		t.Errorf("AccessibleIdentifiers() = %v, хотели [%s]", accessible, conn.ID)
	}
	accessible, err = bobBundle.Connection.AccessibleIdentifiers(ctx,
		[]permission.ObjectType{permission.ObjectAdminister}, []string{conn.ID})
	if err != nil {
		t.Fatalf("AccessibleIdentifiers() ошибка: %v", err)
	}
	if len(accessible) != 0 {
		t.Errorf("AccessibleIdentifiers(ADMINISTER) = %v, хотели пустой список", accessible)
	}
}

func TestActiveConnectionVisibility(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	admin := authenticate(t, p, "admin", "admin")
	bob := createUser(t, p, admin, "bob", "bob-pass")
	carol := createUser(t, p, admin, "carol", "carol-pass")

	// Туннель регистрирует шлюз напрямую в процессном каталоге
	if err := p.ActiveConnections().Add(ctx, &model.ActiveConnection{
		ID:           "tun-1",
		ConnectionID: "conn-1",
		Username:     "bob",
		RemoteHost:   "10.0.0.5",
		StartedAt:    time.Now(),
	}); err != nil {
		t.Fatalf("ActiveConnections().Add() ошибка: %v", err)
	}

	// Владелец и администратор видят туннель, посторонний — нет
	if _, err := bob.ActiveConnections().Get(ctx, "tun-1"); err != nil {
		t.Errorf("bob Get(tun-1) ошибка: %v", err)
	}
	if _, err := admin.ActiveConnections().Get(ctx, "tun-1"); err != nil {
		t.Errorf("admin Get(tun-1) ошибка: %v", err)
	}
	if _, err := carol.ActiveConnections().Get(ctx, "tun-1"); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("carol Get(tun-1) = %v, хотели ErrNotFound", err)
	}

	// Право на конкретный туннель открывает его постороннему
	carolBundle, err := admin.Permissions(ctx, "carol")
	if err != nil {
		t.Fatalf("admin Permissions(carol) ошибка: %v", err)
	}
	if err := carolBundle.ActiveConnection.Add(ctx, permission.ObjectPermission{
		Type:       permission.ObjectRead,
		Identifier: "tun-1",
	}); err != nil {
		t.Fatalf("ActiveConnection.Add() ошибка: %v", err)
	}
	if _, err := carol.ActiveConnections().Get(ctx, "tun-1"); err != nil {
		t.Errorf("carol Get(tun-1) после выдачи права: %v", err)
	}

	// Невидимый туннель нельзя снять
	if err := carolBundle.ActiveConnection.Remove(ctx, permission.ObjectPermission{
		Type:       permission.ObjectRead,
		Identifier: "tun-1",
	}); err != nil {
		t.Fatalf("ActiveConnection.Remove() ошибка: %v", err)
	}
	if err := carol.ActiveConnections().Remove(ctx, "tun-1"); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("carol Remove(tun-1) = %v, хотели ErrNotFound", err)
	}
	if err := bob.ActiveConnections().Remove(ctx, "tun-1"); err != nil {
		t.Errorf("bob Remove(tun-1) ошибка: %v", err)
	}
}
