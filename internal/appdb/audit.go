package appdb

import (
	"context"
	"fmt"
	"time"

	"library-viewer/internal/logging"
)

// Audit event names.
const (
	AuditLoginSuccess    = "login_success"
	AuditLoginFailure    = "login_failure"
	AuditLogout          = "logout"
	AuditPasswordChanged = "password_changed"
	AuditUserCreated     = "user_created"
	AuditUserDeleted     = "user_deleted"
	AuditRoleChanged     = "role_changed"
	AuditRefresh         = "libraries_refreshed"
	AuditUnauthorized    = "unauthorized"
)

// AuditEvent is one row of the audit trail.
type AuditEvent struct {
	ID         int64     `json:"id"`
	Event      string    `json:"event"`
	Username   string    `json:"username,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordAudit appends an event to the audit trail. Failures are logged
// but never propagated; auditing must not break the operation being
// audited.
func (s *Store) RecordAudit(event, username, detail, remoteAddr string) {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_audit", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO audit_events (event, username, detail, remote_addr) VALUES (?, ?, ?, ?)",
		event, username, detail, remoteAddr,
	)
	if err != nil {
		logging.Error("failed to record audit event %s: %v", event, err)
	}
}

// ListAuditEvents returns the most recent events, newest first.
func (s *Store) ListAuditEvents(limit int) ([]AuditEvent, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_audit_events", start, err) }()

	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event, username, detail, remote_addr, created_at FROM audit_events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close rows: %v", closeErr)
		}
	}()

	events := []AuditEvent{}
	for rows.Next() {
		var e AuditEvent
		var createdAt int64
		if err = rows.Scan(&e.ID, &e.Event, &e.Username, &e.Detail, &e.RemoteAddr, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, e)
	}
	err = rows.Err()
	return events, err
}
