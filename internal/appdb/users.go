package appdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"library-viewer/internal/logging"
	"library-viewer/internal/metrics"
)

// Roles, ordered from least to most privileged.
const (
	RoleReader    = "reader"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

// ErrInvalidCredentials is returned for any failed password check. The
// message is deliberately identical for unknown users and wrong
// passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// User is an account in the application database.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleReader, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// roleRank orders roles for privilege comparisons.
func roleRank(role string) int {
	switch role {
	case RoleAdmin:
		return 2
	case RoleLibrarian:
		return 1
	default:
		return 0
	}
}

// RoleAtLeast reports whether role carries at least the privileges of
// required.
func RoleAtLeast(role, required string) bool {
	return roleRank(role) >= roleRank(required)
}

// HasUsers reports whether any account exists yet.
func (s *Store) HasUsers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// CreateUser creates an account with the given role.
func (s *Store) CreateUser(username, password, role string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	if username == "" {
		err = fmt.Errorf("username is required")
		return nil, err
	}
	if !ValidRole(role) {
		err = fmt.Errorf("unknown role %q", role)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)",
		username, string(hash), role,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, _ := result.LastInsertId()
	now := time.Now()
	return &User{
		ID:        id,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetUser looks up an account by username. It returns (nil, nil) when
// no such account exists.
func (s *Store) GetUser(username string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_user", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	user, _, err := s.scanUser(ctx,
		"SELECT id, username, password_hash, role, created_at, updated_at FROM users WHERE username = ?",
		username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	return user, err
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers() ([]User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_users", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, username, role, created_at, updated_at FROM users ORDER BY username",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close rows: %v", closeErr)
		}
	}()

	users := []User{}
	for rows.Next() {
		var u User
		var createdAt, updatedAt int64
		if err = rows.Scan(&u.ID, &u.Username, &u.Role, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.CreatedAt = time.Unix(createdAt, 0)
		u.UpdatedAt = time.Unix(updatedAt, 0)
		users = append(users, u)
	}
	err = rows.Err()
	return users, err
}

// ValidatePassword checks the credentials and returns the account when
// they are valid.
func (s *Store) ValidatePassword(username, password string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_password", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	user, hash, err := s.scanUser(ctx,
		"SELECT id, username, password_hash, role, created_at, updated_at FROM users WHERE username = ?",
		username,
	)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrInvalidCredentials
		} else {
			err = fmt.Errorf("failed to look up user: %w", err)
		}
		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		err = ErrInvalidCredentials
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	return user, nil
}

// UpdatePassword changes an account's password and invalidates its
// sessions.
func (s *Store) UpdatePassword(username, newPassword string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_password", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = strftime('%s', 'now') WHERE username = ?",
		string(hash), username,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = fmt.Errorf("no such user %q", username)
		return err
	}

	// Force re-login everywhere after a password change.
	if _, delErr := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id IN (SELECT id FROM users WHERE username = ?)",
		username,
	); delErr != nil {
		logging.Warn("failed to invalidate sessions for %s: %v", username, delErr)
	}

	return nil
}

// SetRole changes an account's role.
func (s *Store) SetRole(username, role string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_role", start, err) }()

	if !ValidRole(role) {
		err = fmt.Errorf("unknown role %q", role)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET role = ?, updated_at = strftime('%s', 'now') WHERE username = ?",
		role, username,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = fmt.Errorf("no such user %q", username)
		return err
	}
	return nil
}

// DeleteUser removes an account and, via the foreign key cascade, its
// sessions.
func (s *Store) DeleteUser(username string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_user", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = fmt.Errorf("no such user %q", username)
		return err
	}
	return nil
}

// scanUser runs a single-row user query. Callers hold the lock.
func (s *Store) scanUser(ctx context.Context, query string, args ...any) (*User, string, error) {
	var u User
	var hash string
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &hash, &u.Role, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, "", err
	}

	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)
	return &u, hash, nil
}
