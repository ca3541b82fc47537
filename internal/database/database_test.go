package database

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-while/go-myapp/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	cfg := DefaultDBConfig()
	cfg.DataDir = t.TempDir()
	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() { db.Shutdown() })
	return db
}

func TestOpenDatabaseMigratesAndTracksShutdown(t *testing.T) {
	cfg := DefaultDBConfig()
	cfg.DataDir = t.TempDir()

	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	state, err := db.GetShutdownState()
	if err != nil || state != ShutdownStateRunning {
		t.Fatalf("GetShutdownState() = %q, %v; want running", state, err)
	}
	if err := db.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := db.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}

	// reopen: migrations are not applied twice and the clean shutdown is seen
	db2, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Shutdown()
	var applied int
	if err := db2.GetMainDB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatal(err)
	}
	migrations, _ := getEmbeddedMigrationFiles()
	if applied != len(migrations) {
		t.Errorf("schema_migrations has %d rows, want %d", applied, len(migrations))
	}
}

func TestParseMigrationFileName(t *testing.T) {
	m, err := parseMigrationFileName("0003_main_sample_models.sql")
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != 3 || m.Type != MigrationTypeMain || m.Description != "sample_models" {
		t.Errorf("parsed %+v", m)
	}
	for _, bad := range []string{"0001_main.sql", "x_main_foo.sql", "0001_group_foo.sql", "0001_main_foo.txt"} {
		if _, err := parseMigrationFileName(bad); err == nil {
			t.Errorf("parseMigrationFileName(%q) accepted", bad)
		}
	}
}

func TestCasefold(t *testing.T) {
	testCases := []struct{ in, want string }{
		{"Hello", "hello"},
		{"STRASSE", "strasse"},
		{"Straße", "strasse"},
		{"ÄÖÜ", "äöü"},
	}
	for _, tc := range testCases {
		if got := casefold(tc.in); got != tc.want {
			t.Errorf("casefold(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSampleModelCRUD(t *testing.T) {
	db := openTestDB(t)

	m := &models.SampleModel{Name: " widget ", Description: "a small part"}
	if err := db.CreateSampleModel(m); err != nil {
		t.Fatalf("CreateSampleModel: %v", err)
	}
	if m.ID == 0 || m.CreatedAt.IsZero() || m.Name != "widget" {
		t.Fatalf("create did not fill fields: %+v", m)
	}

	got, err := db.GetSampleModelByID(m.ID)
	if err != nil {
		t.Fatalf("GetSampleModelByID: %v", err)
	}
	if got.Name != "widget" || got.Description != "a small part" || !got.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("got %+v, want %+v", got, m)
	}

	got.Name = "gadget"
	if err := db.UpdateSampleModel(got); err != nil {
		t.Fatalf("UpdateSampleModel: %v", err)
	}
	again, _ := db.GetSampleModelByID(m.ID)
	if again.Name != "gadget" || !again.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("after update: %+v", again)
	}

	if err := db.CreateSampleModel(&models.SampleModel{Name: ""}); !errors.Is(err, models.ErrNameRequired) {
		t.Errorf("empty name: got %v", err)
	}

	if n, _ := db.CountSampleModels(); n != 1 {
		t.Errorf("CountSampleModels = %d, want 1", n)
	}
	if err := db.DeleteSampleModel(m.ID); err != nil {
		t.Fatalf("DeleteSampleModel: %v", err)
	}
	if _, err := db.GetSampleModelByID(m.ID); !errors.Is(err, ErrSampleModelNotFound) {
		t.Errorf("get after delete: %v", err)
	}
	if err := db.DeleteSampleModel(m.ID); !errors.Is(err, ErrSampleModelNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if err := db.UpdateSampleModel(&models.SampleModel{ID: 999, Name: "x"}); !errors.Is(err, ErrSampleModelNotFound) {
		t.Errorf("update missing: %v", err)
	}
}

func TestSearchSampleModels(t *testing.T) {
	db := openTestDB(t)
	seed := []models.SampleModel{
		{Name: "Alpha", Description: "first letter"},
		{Name: "Beta", Description: "second letter, 100% greek"},
		{Name: "Gamma ray", Description: "not a letter_ at all"},
		{Name: "Straße", Description: "street"},
	}
	for i := range seed {
		if err := db.CreateSampleModel(&seed[i]); err != nil {
			t.Fatal(err)
		}
	}
	fields := []string{"name", "description"}

	testCases := []struct {
		name  string
		terms []string
		want  []string // names in id order
	}{
		{"no terms", nil, []string{"Alpha", "Beta", "Gamma ray", "Straße"}},
		{"case insensitive", []string{"ALPHA"}, []string{"Alpha"}},
		{"matches description", []string{"letter"}, []string{"Alpha", "Beta", "Gamma ray"}},
		{"all terms must match", []string{"letter", "greek"}, []string{"Beta"}},
		{"percent is literal", []string{"100%"}, []string{"Beta"}},
		{"percent alone", []string{"%"}, []string{"Beta"}},
		{"underscore is literal", []string{"r_"}, []string{"Gamma ray"}},
		{"unicode fold", []string{"STRASSE"}, []string{"Straße"}},
		{"no match", []string{"omega"}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, total, err := db.SearchSampleModels(SampleModelFilter{Terms: tc.terms, SearchFields: fields})
			if err != nil {
				t.Fatalf("SearchSampleModels: %v", err)
			}
			var names []string
			for _, r := range rows {
				names = append(names, r.Name)
			}
			if strings.Join(names, ",") != strings.Join(tc.want, ",") {
				t.Errorf("got %v, want %v", names, tc.want)
			}
			if total != len(tc.want) {
				t.Errorf("total = %d, want %d", total, len(tc.want))
			}
		})
	}
}

func TestSearchSampleModelsOrderingAndPaging(t *testing.T) {
	db := openTestDB(t)
	for _, name := range []string{"c", "a", "d", "b"} {
		if err := db.CreateSampleModel(&models.SampleModel{Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	rows, total, err := db.SearchSampleModels(SampleModelFilter{OrderBy: "name", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(rows) != 2 || rows[0].Name != "c" || rows[1].Name != "d" {
		t.Errorf("page 2 by name: total=%d rows=%v", total, rows)
	}

	rows, _, err = db.SearchSampleModels(SampleModelFilter{Desc: true, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Name != "b" {
		t.Errorf("newest first: %v", rows)
	}

	if _, _, err := db.SearchSampleModels(SampleModelFilter{OrderBy: "name; DROP TABLE sample_models"}); !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("bad order column: %v", err)
	}
	if _, _, err := db.SearchSampleModels(SampleModelFilter{Terms: []string{"x"}, SearchFields: []string{"created_at"}}); !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("non-text search field: %v", err)
	}
}

func TestUsersAndPermissions(t *testing.T) {
	db := openTestDB(t)

	u := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", DisplayName: "Alice"}
	if err := db.InsertUser(u); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if err := db.InsertUser(&models.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"}); err == nil {
		t.Error("duplicate username accepted")
	}

	byName, err := db.GetUserByUsername("alice")
	if err != nil || byName.ID != u.ID {
		t.Fatalf("GetUserByUsername: %+v %v", byName, err)
	}
	if _, err := db.GetUserByEmail("nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown email: %v", err)
	}

	ok, err := db.HasUserPermission(u.ID, models.PermissionAdmin)
	if err != nil || ok {
		t.Fatalf("HasUserPermission before grant = %t, %v", ok, err)
	}
	for i := 0; i < 2; i++ {
		if err := db.InsertUserPermission(&models.UserPermission{UserID: u.ID, Permission: models.PermissionAdmin}); err != nil {
			t.Fatalf("InsertUserPermission: %v", err)
		}
	}
	perms, _ := db.GetUserPermissions(u.ID)
	if len(perms) != 1 {
		t.Errorf("permissions = %d, want 1", len(perms))
	}
	if ok, _ := db.HasUserPermission(u.ID, models.PermissionAdmin); !ok {
		t.Error("admin permission not granted")
	}

	if err := db.UpdateUserPassword(u.ID, "newhash"); err != nil {
		t.Fatal(err)
	}
	users, _ := db.GetAllUsers()
	if len(users) != 1 || users[0].PasswordHash != "newhash" {
		t.Errorf("GetAllUsers = %+v", users)
	}

	if err := db.DeleteUser(u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := db.DeleteUser(u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second DeleteUser: %v", err)
	}
}

func TestUserSessions(t *testing.T) {
	db := openTestDB(t)
	u := &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "hash"}
	if err := db.InsertUser(u); err != nil {
		t.Fatal(err)
	}

	sid, err := db.CreateUserSession(u.ID, "192.0.2.1")
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}
	if len(sid) != SessionIDLength {
		t.Errorf("session id length %d", len(sid))
	}

	got, err := db.ValidateUserSession(sid)
	if err != nil {
		t.Fatalf("ValidateUserSession: %v", err)
	}
	if got.ID != u.ID || got.LastLoginIP != "192.0.2.1" {
		t.Errorf("session user = %+v", got)
	}
	if got.SessionExpiresAt == nil || time.Until(*got.SessionExpiresAt) < SessionTimeout-time.Minute {
		t.Errorf("expiry not extended: %v", got.SessionExpiresAt)
	}

	if _, err := db.ValidateUserSession("nope"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("unknown session: %v", err)
	}
	if _, err := db.ValidateUserSession(""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("empty session: %v", err)
	}

	// an expired session is rejected and cleaned up
	past := sqliteTime(time.Now().Add(-time.Hour))
	if _, err := db.GetMainDB().Exec(`UPDATE users SET session_expires_at = ? WHERE id = ?`, past, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ValidateUserSession(sid); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired session accepted: %v", err)
	}
	if n, err := db.CleanupExpiredSessions(); err != nil || n != 1 {
		t.Errorf("CleanupExpiredSessions = %d, %v", n, err)
	}

	sid, _ = db.CreateUserSession(u.ID, "192.0.2.1")
	if err := db.InvalidateUserSessionBySessionID(sid); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ValidateUserSession(sid); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("invalidated session accepted: %v", err)
	}
}

func TestLoginLockout(t *testing.T) {
	db := openTestDB(t)
	u := &models.User{Username: "carol", Email: "carol@example.com", PasswordHash: "hash"}
	if err := db.InsertUser(u); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < MaxLoginAttempts; i++ {
		if locked, _ := db.IsUserLockedOut("carol"); locked {
			t.Fatalf("locked after %d attempts", i)
		}
		if err := db.IncrementLoginAttempts("carol"); err != nil {
			t.Fatal(err)
		}
	}
	if locked, err := db.IsUserLockedOut("carol"); err != nil || !locked {
		t.Fatalf("IsUserLockedOut = %t, %v; want locked", locked, err)
	}

	// lockout expires
	old := sqliteTime(time.Now().Add(-LoginLockoutTime - time.Minute))
	if _, err := db.GetMainDB().Exec(`UPDATE users SET updated_at = ? WHERE id = ?`, old, u.ID); err != nil {
		t.Fatal(err)
	}
	if locked, _ := db.IsUserLockedOut("carol"); locked {
		t.Error("still locked after lockout time")
	}

	if locked, err := db.IsUserLockedOut("nobody"); err != nil || locked {
		t.Errorf("unknown user: %t, %v", locked, err)
	}
}
