package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-while/go-myapp/internal/database"
)

func newTestManager(t *testing.T, passwords ...string) (*manager, *bytes.Buffer) {
	t.Helper()
	cfg := database.DefaultDBConfig()
	cfg.DataDir = t.TempDir()
	db, err := database.OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() { db.Shutdown() })

	out := &bytes.Buffer{}
	m := &manager{
		db:       db,
		out:      out,
		in:       strings.NewReader(""),
		hashCost: bcrypt.MinCost,
		readPassword: func(string) ([]byte, error) {
			if len(passwords) == 0 {
				return nil, errors.New("no more input")
			}
			p := passwords[0]
			passwords = passwords[1:]
			return []byte(p), nil
		},
	}
	return m, out
}

func TestCreateUser(t *testing.T) {
	m, out := newTestManager(t, "secret123", "secret123", "secret456", "secret456")
	if err := m.create("root", "root@example.com", "", false); err != nil {
		t.Fatalf("create root: %v", err)
	}
	if err := m.create("staff", "staff@example.com", "Staff", true); err != nil {
		t.Fatalf("create staff: %v", err)
	}

	root, err := m.db.GetUserByUsername("root")
	if err != nil {
		t.Fatal(err)
	}
	if root.ID != 1 || root.DisplayName != "root" {
		t.Errorf("root = %+v", root)
	}
	if bcrypt.CompareHashAndPassword([]byte(root.PasswordHash), []byte("secret123")) != nil {
		t.Error("stored hash does not match the password")
	}
	staff, err := m.db.GetUserByUsername("staff")
	if err != nil {
		t.Fatal(err)
	}
	if !m.isAdmin(staff) {
		t.Error("-admin did not grant the admin permission")
	}
	if !strings.Contains(out.String(), "Granted admin permission to 'staff'") {
		t.Errorf("output: %s", out.String())
	}
}

func TestCreateUserRejects(t *testing.T) {
	testCases := []struct {
		name      string
		passwords []string
		username  string
		email     string
		wantErr   error
	}{
		{name: "mismatch", passwords: []string{"secret123", "secret124"}, username: "a", email: "a@example.com", wantErr: errPasswordMismatch},
		{name: "short", passwords: []string{"short", "short"}, username: "a", email: "a@example.com", wantErr: errPasswordTooShort},
		{name: "no email", username: "a"},
		{name: "at in username", username: "a@b", email: "a@example.com"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestManager(t, tc.passwords...)
			err := m.create(tc.username, tc.email, "", false)
			if err == nil {
				t.Fatal("create succeeded")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
			if users, _ := m.db.GetAllUsers(); len(users) != 0 {
				t.Errorf("%d users stored", len(users))
			}
		})
	}
}

func TestCreateDuplicateUser(t *testing.T) {
	m, _ := newTestManager(t, "secret123", "secret123")
	if err := m.create("root", "root@example.com", "", false); err != nil {
		t.Fatal(err)
	}
	if err := m.create("root", "other@example.com", "", false); err == nil {
		t.Error("duplicate username accepted")
	}
	if err := m.create("other", "root@example.com", "", false); err == nil {
		t.Error("duplicate email accepted")
	}
}

func TestUpdatePasswordAndDelete(t *testing.T) {
	m, out := newTestManager(t, "secret123", "secret123", "newsecret1", "newsecret1")
	if err := m.create("root", "root@example.com", "", false); err != nil {
		t.Fatal(err)
	}
	if err := m.updatePassword("root"); err != nil {
		t.Fatalf("updatePassword: %v", err)
	}
	root, _ := m.db.GetUserByUsername("root")
	if bcrypt.CompareHashAndPassword([]byte(root.PasswordHash), []byte("newsecret1")) != nil {
		t.Error("password was not updated")
	}
	if err := m.updatePassword("ghost"); err == nil {
		t.Error("updatePassword of unknown user succeeded")
	}

	// declined confirmation keeps the user
	m.in = strings.NewReader("n\n")
	if err := m.delete("root", false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.db.GetUserByUsername("root"); err != nil {
		t.Fatal("user deleted without confirmation")
	}
	m.in = strings.NewReader("yes\n")
	if err := m.delete("root", false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.db.GetUserByUsername("root"); !errors.Is(err, database.ErrUserNotFound) {
		t.Errorf("after delete: %v", err)
	}
	if !strings.Contains(out.String(), "deleted") {
		t.Errorf("output: %s", out.String())
	}
}

func TestListUsers(t *testing.T) {
	m, out := newTestManager(t, "secret123", "secret123")
	if err := m.list(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No users found") {
		t.Errorf("empty list output: %s", out.String())
	}
	if err := m.create("root", "root@example.com", "", false); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := m.list(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "root@example.com") || !strings.Contains(out.String(), "yes") {
		t.Errorf("list output: %s", out.String())
	}
}

func TestGrantAdmin(t *testing.T) {
	m, out := newTestManager(t, "secret123", "secret123", "secret456", "secret456")
	if err := m.create("root", "root@example.com", "", false); err != nil {
		t.Fatal(err)
	}
	if err := m.create("editor", "editor@example.com", "", false); err != nil {
		t.Fatal(err)
	}
	editor, err := m.db.GetUserByUsername("editor")
	if err != nil {
		t.Fatal(err)
	}
	if m.isAdmin(editor) {
		t.Fatal("editor is admin before grant")
	}
	if err := m.grantAdmin("editor"); err != nil {
		t.Fatalf("grantAdmin: %v", err)
	}
	if !m.isAdmin(editor) {
		t.Error("editor is not admin after grant")
	}
	if !strings.Contains(out.String(), "Granted admin permission to 'editor'") {
		t.Errorf("output = %q", out.String())
	}
	if err := m.grantAdmin("nobody"); err == nil {
		t.Error("grantAdmin of unknown user succeeded")
	}
}
