package appdb

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"library-viewer/internal/logging"
	"library-viewer/internal/metrics"
)

// SessionDuration is the length of time a session remains valid.
const SessionDuration = 7 * 24 * time.Hour // 7 days

// Session is an authenticated user session. Token is the unhashed
// value handed to the client; only its SHA-256 is stored.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// hashToken converts a client token into its stored form.
func hashToken(token string) (string, error) {
	tokenBytes, err := hex.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid token format")
	}
	hash := sha256.Sum256(tokenBytes)
	return hex.EncodeToString(hash[:]), nil
}

// CreateSession creates a new session for a user.
func (s *Store) CreateSession(userID int64) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_session", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tokenBytes := make([]byte, 32)
	if _, err = rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	hash := sha256.Sum256(tokenBytes)
	tokenHash := hex.EncodeToString(hash[:])
	token := hex.EncodeToString(tokenBytes)

	expiresAt := time.Now().Add(SessionDuration)

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, tokenHash, expiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	id, _ := result.LastInsertId()
	metrics.ActiveSessions.Inc()

	return &Session{
		ID:        id,
		UserID:    userID,
		Token:     token, // unhashed, for the client
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// ValidateSession resolves a session token to its account.
func (s *Store) ValidateSession(token string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_session", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tokenHash, err := hashToken(token)
	if err != nil {
		return nil, err
	}

	var userID int64
	var expiresAt int64

	err = s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE token = ?",
		tokenHash,
	).Scan(&userID, &expiresAt)
	if err != nil {
		err = fmt.Errorf("invalid session")
		return nil, err
	}

	if time.Now().Unix() > expiresAt {
		// Clean up the expired row without blocking validation.
		go func() {
			if delErr := s.deleteSessionByHash(tokenHash); delErr != nil {
				logging.Error("failed to delete expired session: %v", delErr)
			}
		}()
		err = fmt.Errorf("session expired")
		return nil, err
	}

	user, _, err := s.scanUser(ctx,
		"SELECT id, username, password_hash, role, created_at, updated_at FROM users WHERE id = ?",
		userID,
	)
	if err != nil {
		err = fmt.Errorf("user not found")
		return nil, err
	}

	return user, nil
}

func (s *Store) deleteSessionByHash(tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", tokenHash)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows > 0 {
			metrics.ActiveSessions.Sub(float64(rows))
		}
	}
	return err
}

// DeleteSession removes a session by its client token.
func (s *Store) DeleteSession(token string) error {
	tokenHash, err := hashToken(token)
	if err != nil {
		return err
	}
	return s.deleteSessionByHash(tokenHash)
}

// ExtendSession pushes a session's expiry out by the full session
// duration (sliding expiration).
func (s *Store) ExtendSession(token string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("extend_session", start, err) }()

	tokenHash, err := hashToken(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET expires_at = ? WHERE token = ?",
		time.Now().Add(SessionDuration).Unix(), tokenHash,
	)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = fmt.Errorf("no such session")
		return err
	}
	return nil
}

// CleanExpiredSessions removes all expired sessions.
func (s *Store) CleanExpiredSessions() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clean_expired_sessions", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", time.Now().Unix(),
	)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows > 0 {
			metrics.ActiveSessions.Sub(float64(rows))
			logging.Debug("cleaned %d expired sessions", rows)
		}
	}
	return err
}
