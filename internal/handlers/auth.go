package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"library-viewer/internal/appdb"
	"library-viewer/internal/logging"
)

// SessionCookieName is the name of the session cookie
const SessionCookieName = "library_viewer_session"

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SetupRequest creates the initial admin account
type SetupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PasswordChangeRequest changes the current user's password
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse is the payload for authentication endpoints
type AuthResponse struct {
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	Message   string `json:"message,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"` // seconds until session expiry
}

type contextKey string

const userContextKey contextKey = "user"

// userFromContext returns the authenticated user, or a synthetic admin
// when authentication is disabled.
func (h *Handlers) userFromContext(ctx context.Context) *appdb.User {
	if !h.config.AuthEnabled {
		return &appdb.User{Username: "anonymous", Role: appdb.RoleAdmin}
	}
	user, _ := ctx.Value(userContextKey).(*appdb.User)
	return user
}

// requireRole checks that the request carries at least the given role.
// On failure it writes the error response and records an audit event.
func (h *Handlers) requireRole(w http.ResponseWriter, r *http.Request, role string) *appdb.User {
	user := h.userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return nil
	}
	if !appdb.RoleAtLeast(user.Role, role) {
		h.store.RecordAudit(appdb.AuditUnauthorized, user.Username, r.Method+" "+r.URL.Path, r.RemoteAddr)
		respondError(w, http.StatusForbidden, "insufficient privileges")
		return nil
	}
	return user
}

func validatePasswordPolicy(password string) string {
	if len(password) < 6 {
		return "Password must be at least 6 characters"
	}
	if len(password) > 72 {
		return "Password must not exceed 72 characters"
	}
	return ""
}

// CheckSetupRequired returns whether initial setup is needed
func (h *Handlers) CheckSetupRequired(w http.ResponseWriter, _ *http.Request) {
	respondData(w, map[string]bool{
		"needs_setup": !h.store.HasUsers(),
	})
}

// Setup creates the initial admin account. Only allowed while no users
// exist.
func (h *Handlers) Setup(w http.ResponseWriter, r *http.Request) {
	if h.store.HasUsers() {
		respondError(w, http.StatusForbidden, "Setup already completed")
		return
	}

	var req SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if msg := validatePasswordPolicy(req.Password); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := h.store.CreateUser(req.Username, req.Password, appdb.RoleAdmin)
	if err != nil {
		logging.Error("Failed to create initial user: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	h.store.RecordAudit(appdb.AuditUserCreated, user.Username, "initial admin account", r.RemoteAddr)
	logging.Info("Initial admin account %q configured", user.Username)

	respondData(w, AuthResponse{
		Username: user.Username,
		Role:     user.Role,
		Message:  "Account created successfully",
	})
}

// Login authenticates with username and password
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.store.ValidatePassword(req.Username, req.Password)
	if err != nil {
		logging.Warn("Failed login attempt for %q", req.Username)
		h.store.RecordAudit(appdb.AuditLoginFailure, req.Username, "", r.RemoteAddr)
		if errors.Is(err, appdb.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid username or password")
		} else {
			respondError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	session, err := h.store.CreateSession(user.ID)
	if err != nil {
		logging.Error("Failed to create session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	h.store.RecordAudit(appdb.AuditLoginSuccess, user.Username, "", r.RemoteAddr)
	logging.Info("User %q logged in, session expires in %v", user.Username, appdb.SessionDuration)

	respondData(w, AuthResponse{
		Username:  user.Username,
		Role:      user.Role,
		ExpiresIn: int(appdb.SessionDuration.Seconds()),
	})
}

// Logout ends the current session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		// Best-effort cleanup; logout succeeds regardless.
		if err := h.store.DeleteSession(cookie.Value); err != nil {
			logging.Error("failed to delete session during logout: %v", err)
		}
	}

	if user := h.userFromContext(r.Context()); user != nil {
		h.store.RecordAudit(appdb.AuditLogout, user.Username, "", r.RemoteAddr)
	}

	clearSessionCookie(w)
	respondData(w, AuthResponse{Message: "Logged out successfully"})
}

// CheckAuth verifies the current session
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.store.ValidateSession(cookie.Value)
	if err != nil {
		clearSessionCookie(w)
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	respondData(w, AuthResponse{
		Username:  user.Username,
		Role:      user.Role,
		ExpiresIn: int(appdb.SessionDuration.Seconds()),
	})
}

// ChangePassword handles password change requests for the current user
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := h.userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.store.ValidatePassword(user.Username, req.CurrentPassword); err != nil {
		logging.Warn("Failed password change attempt for %q", user.Username)
		respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	if msg := validatePasswordPolicy(req.NewPassword); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.UpdatePassword(user.Username, req.NewPassword); err != nil {
		logging.Error("Failed to update password: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	h.store.RecordAudit(appdb.AuditPasswordChanged, user.Username, "", r.RemoteAddr)
	logging.Info("Password changed for %q", user.Username)

	respondData(w, AuthResponse{Message: "Password updated successfully"})
}

// AuthMiddleware protects API routes that require authentication.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.config.AuthEnabled || !requiresAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			unauthorized(w, r)
			return
		}

		user, err := h.store.ValidateSession(cookie.Value)
		if err != nil {
			clearSessionCookie(w)
			unauthorized(w, r)
			return
		}

		// Sliding expiration.
		if err := h.store.ExtendSession(cookie.Value); err != nil {
			logging.Debug("Failed to extend session: %v", err)
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    cookie.Value,
				Path:     "/",
				Expires:  time.Now().Add(appdb.SessionDuration),
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requiresAuth reports whether a path sits behind the session check.
// Auth endpoints, probes, and static assets stay reachable.
func requiresAuth(path string) bool {
	if strings.HasPrefix(path, "/api/auth/") {
		return false
	}
	if !strings.HasPrefix(path, "/api/") {
		return false
	}
	return true
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
	} else {
		http.Redirect(w, r, "/login.html", http.StatusFound)
	}
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
