package appdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "app.db")
	s, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return s
}

func TestValidRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"reader", true},
		{"librarian", true},
		{"admin", true},
		{"", false},
		{"Admin", false},
		{"root", false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := ValidRole(tt.role); got != tt.want {
				t.Errorf("ValidRole(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		required string
		want     bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleLibrarian, true},
		{RoleAdmin, RoleReader, true},
		{RoleLibrarian, RoleAdmin, false},
		{RoleLibrarian, RoleLibrarian, true},
		{RoleReader, RoleLibrarian, false},
		{RoleReader, RoleReader, true},
	}

	for _, tt := range tests {
		if got := RoleAtLeast(tt.role, tt.required); got != tt.want {
			t.Errorf("RoleAtLeast(%s, %s) = %v, want %v", tt.role, tt.required, got, tt.want)
		}
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)

	if s.HasUsers() {
		t.Error("HasUsers = true on an empty store")
	}

	created, err := s.CreateUser("alice", "s3cret", RoleAdmin)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if created.Username != "alice" || created.Role != RoleAdmin {
		t.Errorf("created user = %+v", created)
	}

	if !s.HasUsers() {
		t.Error("HasUsers = false after creating a user")
	}

	got, err := s.GetUser("alice")
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if got == nil {
		t.Fatal("GetUser returned nil for an existing user")
	}
	if got.Username != "alice" || got.Role != RoleAdmin {
		t.Errorf("GetUser = %+v", got)
	}

	missing, err := s.GetUser("nobody")
	if err != nil {
		t.Fatalf("GetUser(nobody) error: %v", err)
	}
	if missing != nil {
		t.Errorf("GetUser(nobody) = %+v, want nil", missing)
	}
}

func TestCreateUserValidation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateUser("", "pw", RoleReader); err == nil {
		t.Error("CreateUser with empty username succeeded")
	}
	if _, err := s.CreateUser("bob", "pw", "superuser"); err == nil {
		t.Error("CreateUser with unknown role succeeded")
	}

	if _, err := s.CreateUser("bob", "pw", RoleReader); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if _, err := s.CreateUser("bob", "pw2", RoleReader); err == nil {
		t.Error("CreateUser with duplicate username succeeded")
	}
}

func TestValidatePassword(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateUser("alice", "correct horse", RoleReader); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	user, err := s.ValidatePassword("alice", "correct horse")
	if err != nil {
		t.Fatalf("ValidatePassword error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("validated user = %+v", user)
	}

	if _, err := s.ValidatePassword("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.ValidatePassword("nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidatePasswordDatabaseFault(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateUser("alice", "correct horse", RoleReader); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// A store fault must stay distinguishable from bad credentials.
	_, err := s.ValidatePassword("alice", "correct horse")
	if err == nil {
		t.Fatal("ValidatePassword succeeded on a closed store")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("store fault reported as ErrInvalidCredentials: %v", err)
	}
}

func TestUpdatePasswordInvalidatesSessions(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice", "old", RoleReader)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	session, err := s.CreateSession(user.ID)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	if err := s.UpdatePassword("alice", "new"); err != nil {
		t.Fatalf("UpdatePassword error: %v", err)
	}

	if _, err := s.ValidatePassword("alice", "old"); err == nil {
		t.Error("old password still valid after update")
	}
	if _, err := s.ValidatePassword("alice", "new"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if _, err := s.ValidateSession(session.Token); err == nil {
		t.Error("session still valid after password change")
	}

	if err := s.UpdatePassword("nobody", "pw"); err == nil {
		t.Error("UpdatePassword for unknown user succeeded")
	}
}

func TestSetRole(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateUser("alice", "pw", RoleReader); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	if err := s.SetRole("alice", RoleLibrarian); err != nil {
		t.Fatalf("SetRole error: %v", err)
	}
	got, err := s.GetUser("alice")
	if err != nil || got == nil {
		t.Fatalf("GetUser after SetRole: %v, %v", got, err)
	}
	if got.Role != RoleLibrarian {
		t.Errorf("role = %s, want librarian", got.Role)
	}

	if err := s.SetRole("alice", "wizard"); err == nil {
		t.Error("SetRole with unknown role succeeded")
	}
	if err := s.SetRole("nobody", RoleReader); err == nil {
		t.Error("SetRole for unknown user succeeded")
	}
}

func TestDeleteUserCascadesSessions(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice", "pw", RoleReader)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	session, err := s.CreateSession(user.ID)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	if err := s.DeleteUser("alice"); err != nil {
		t.Fatalf("DeleteUser error: %v", err)
	}
	if got, _ := s.GetUser("alice"); got != nil {
		t.Error("user still present after delete")
	}
	if _, err := s.ValidateSession(session.Token); err == nil {
		t.Error("session still valid after user delete")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice", "pw", RoleLibrarian)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	session, err := s.CreateSession(user.ID)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if session.Token == "" {
		t.Fatal("session token is empty")
	}
	if remaining := time.Until(session.ExpiresAt); remaining < 6*24*time.Hour {
		t.Errorf("session expires too soon: %v", remaining)
	}

	got, err := s.ValidateSession(session.Token)
	if err != nil {
		t.Fatalf("ValidateSession error: %v", err)
	}
	if got.ID != user.ID || got.Role != RoleLibrarian {
		t.Errorf("validated user = %+v", got)
	}

	if _, err := s.ValidateSession("not-hex"); err == nil {
		t.Error("ValidateSession accepted malformed token")
	}
	if _, err := s.ValidateSession("deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"); err == nil {
		t.Error("ValidateSession accepted unknown token")
	}

	if err := s.DeleteSession(session.Token); err != nil {
		t.Fatalf("DeleteSession error: %v", err)
	}
	if _, err := s.ValidateSession(session.Token); err == nil {
		t.Error("session still valid after delete")
	}
}

func TestExtendSession(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice", "pw", RoleReader)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	session, err := s.CreateSession(user.ID)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	// Backdate the expiry, then extend; the session must become valid
	// for (roughly) the full duration again.
	soon := time.Now().Add(time.Minute).Unix()
	if _, err := s.db.Exec("UPDATE sessions SET expires_at = ? WHERE id = ?", soon, session.ID); err != nil {
		t.Fatalf("failed to shorten session: %v", err)
	}

	if err := s.ExtendSession(session.Token); err != nil {
		t.Fatalf("ExtendSession error: %v", err)
	}

	var expiresAt int64
	if err := s.db.QueryRow("SELECT expires_at FROM sessions WHERE id = ?", session.ID).Scan(&expiresAt); err != nil {
		t.Fatalf("expiry query failed: %v", err)
	}
	if expiresAt <= soon {
		t.Errorf("expiry not extended: %d", expiresAt)
	}

	if err := s.ExtendSession("deadbeef"); err == nil {
		t.Error("ExtendSession accepted unknown token")
	}
}

func TestCleanExpiredSessions(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice", "pw", RoleReader)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	session, err := s.CreateSession(user.ID)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	// Backdate the session so it is already expired.
	if _, err := s.db.Exec(
		"UPDATE sessions SET expires_at = ? WHERE id = ?",
		time.Now().Add(-time.Hour).Unix(), session.ID,
	); err != nil {
		t.Fatalf("failed to backdate session: %v", err)
	}

	if err := s.CleanExpiredSessions(); err != nil {
		t.Fatalf("CleanExpiredSessions error: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("sessions remaining = %d, want 0", count)
	}
}

func TestListAuditEventsLimitClamp(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 101; i++ {
		s.RecordAudit(AuditLoginSuccess, "alice", fmt.Sprintf("event %d", i), "10.0.0.9:4321")
	}

	// An oversized limit is clamped to the maximum, not reset to the
	// default of 100.
	events, err := s.ListAuditEvents(5000)
	if err != nil {
		t.Fatalf("ListAuditEvents error: %v", err)
	}
	if len(events) != 101 {
		t.Errorf("got %d events, want 101", len(events))
	}

	events, err = s.ListAuditEvents(0)
	if err != nil {
		t.Fatalf("ListAuditEvents error: %v", err)
	}
	if len(events) != 100 {
		t.Errorf("got %d events with default limit, want 100", len(events))
	}
}

func TestAuditTrail(t *testing.T) {
	s := newTestStore(t)

	s.RecordAudit(AuditLoginFailure, "mallory", "bad password", "10.0.0.5:1234")
	s.RecordAudit(AuditLoginSuccess, "alice", "", "10.0.0.9:4321")

	events, err := s.ListAuditEvents(10)
	if err != nil {
		t.Fatalf("ListAuditEvents error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	// Newest first.
	if events[0].Event != AuditLoginSuccess || events[0].Username != "alice" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Event != AuditLoginFailure || events[1].Detail != "bad password" {
		t.Errorf("events[1] = %+v", events[1])
	}

	limited, err := s.ListAuditEvents(1)
	if err != nil {
		t.Fatalf("ListAuditEvents(1) error: %v", err)
	}
	if len(limited) != 1 || limited[0].Event != AuditLoginSuccess {
		t.Errorf("limited events = %+v", limited)
	}
}

func TestListUsersOrdered(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"zoe", "alice", "mike"} {
		if _, err := s.CreateUser(name, "pw", RoleReader); err != nil {
			t.Fatalf("CreateUser(%s) error: %v", name, err)
		}
	}

	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers error: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("got %d users, want 3", len(users))
	}
	want := []string{"alice", "mike", "zoe"}
	for i, u := range users {
		if u.Username != want[i] {
			t.Errorf("users[%d] = %s, want %s", i, u.Username, want[i])
		}
	}
}
