package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/remgate/access-module/internal/domain/model"
)

func TestCreateConnection(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		conn    *model.Connection
		wantErr error
	}{
		{
			name: "без родителя — попадает в корень",
			conn: &model.Connection{Name: "srv", Protocol: "ssh"},
		},
		{
			name:    "без имени",
			conn:    &model.Connection{Protocol: "ssh"},
			wantErr: ErrValidation,
		},
		{
			name:    "без протокола",
			conn:    &model.Connection{Name: "srv"},
			wantErr: ErrValidation,
		},
		{
			name:    "несуществующая родительская группа",
			conn:    &model.Connection{Name: "srv", Protocol: "ssh", ParentID: "ghost"},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			sess := env.login(t, "admin", "admin-pass")

			created, err := env.svc.CreateConnection(ctx, sess, testProviderID, tt.conn)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateConnection = %v, хотели %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateConnection: %v", err)
			}
			if created.ID == "" {
				t.Error("идентификатор не назначен")
			}
			if created.ParentID != model.RootGroupIdentifier {
				t.Errorf("ParentID = %q, хотели %q", created.ParentID, model.RootGroupIdentifier)
			}
		})
	}
}

func TestUpdateConnectionIDMismatch(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "admin", "admin-pass")
	ctx := context.Background()

	conn, err := env.svc.CreateConnection(ctx, sess, testProviderID,
		&model.Connection{Name: "srv", Protocol: "ssh"})
	if err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	err = env.svc.UpdateConnection(ctx, sess, testProviderID, conn.ID,
		&model.Connection{ID: "other", Name: "srv2"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("UpdateConnection = %v, хотели %v", err, ErrValidation)
	}
}

func TestConnectionGroupRootProtection(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "admin", "admin-pass")
	ctx := context.Background()

	t.Run("удаление корня запрещено", func(t *testing.T) {
		err := env.svc.DeleteConnectionGroup(ctx, sess, testProviderID, model.RootGroupIdentifier)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("DeleteConnectionGroup(ROOT) = %v, хотели %v", err, ErrForbidden)
		}
	})

	t.Run("изменение корня запрещено", func(t *testing.T) {
		err := env.svc.UpdateConnectionGroup(ctx, sess, testProviderID, model.RootGroupIdentifier,
			&model.ConnectionGroup{ID: model.RootGroupIdentifier, Name: "renamed"})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("UpdateConnectionGroup(ROOT) = %v, хотели %v", err, ErrForbidden)
		}
	})
}

func TestCreateConnectionGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("тип по умолчанию — организационная", func(t *testing.T) {
		env := newTestEnv(t)
		sess := env.login(t, "admin", "admin-pass")

		g, err := env.svc.CreateConnectionGroup(ctx, sess, testProviderID,
			&model.ConnectionGroup{Name: "Ops"})
		if err != nil {
			t.Fatalf("CreateConnectionGroup: %v", err)
		}
		if g.Type != model.GroupTypeOrganizational {
			t.Errorf("Type = %q, хотели %q", g.Type, model.GroupTypeOrganizational)
		}
		if g.ParentID == nil || *g.ParentID != model.RootGroupIdentifier {
			t.Errorf("ParentID = %v, хотели %q", g.ParentID, model.RootGroupIdentifier)
		}
	})

	t.Run("неизвестный тип группы", func(t *testing.T) {
		env := newTestEnv(t)
		sess := env.login(t, "admin", "admin-pass")

		_, err := env.svc.CreateConnectionGroup(ctx, sess, testProviderID,
			&model.ConnectionGroup{Name: "Ops", Type: "CLUSTER"})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("CreateConnectionGroup = %v, хотели %v", err, ErrValidation)
		}
	})
}

func TestUpdateConnectionGroupSelfParent(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "admin", "admin-pass")
	ctx := context.Background()

	g, err := env.svc.CreateConnectionGroup(ctx, sess, testProviderID,
		&model.ConnectionGroup{ID: "ops", Name: "Ops"})
	if err != nil {
		t.Fatalf("CreateConnectionGroup: %v", err)
	}

	self := g.ID
	err = env.svc.UpdateConnectionGroup(ctx, sess, testProviderID, g.ID,
		&model.ConnectionGroup{ID: g.ID, ParentID: &self})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("UpdateConnectionGroup = %v, хотели %v", err, ErrValidation)
	}
}

func TestKillActiveConnection(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t, "admin", "admin-pass")
	ctx := context.Background()

	uc, err := env.svc.UserContext(sess, testProviderID)
	if err != nil {
		t.Fatalf("UserContext: %v", err)
	}
	if err := uc.ActiveConnections().Add(ctx, &model.ActiveConnection{
		ID:           "act-1",
		ConnectionID: "conn-1",
		Username:     "alice",
	}); err != nil {
		t.Fatalf("ActiveConnections().Add: %v", err)
	}

	if err := env.svc.KillActiveConnection(ctx, sess, testProviderID, "act-1"); err != nil {
		t.Fatalf("KillActiveConnection: %v", err)
	}
	if _, err := env.svc.GetActiveConnection(ctx, sess, testProviderID, "act-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetActiveConnection после kill = %v, хотели %v", err, ErrNotFound)
	}
	if err := env.svc.KillActiveConnection(ctx, sess, testProviderID, "act-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный kill = %v, хотели %v", err, ErrNotFound)
	}
}
