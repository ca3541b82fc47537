package web

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-myapp/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "session_id"

// context key for the *SessionData of an authenticated request
const ctxSession = "session"

// FlashMessage represents a temporary success/error message
type FlashMessage struct {
	Type    string // "success" or "error"
	Message string
	SetAt   time.Time
}

// Global flash message map and mutex
var (
	flashMessages   = make(map[string]FlashMessage)
	flashMessagesMu sync.Mutex
)

// SetFlashError sets a temporary error message for a session
func SetFlashError(sessionID, msg string) {
	flashMessagesMu.Lock()
	flashMessages[sessionID] = FlashMessage{Type: "error", Message: msg, SetAt: time.Now()}
	flashMessagesMu.Unlock()
}

// SetFlashSuccess sets a temporary success message for a session
func SetFlashSuccess(sessionID, msg string) {
	flashMessagesMu.Lock()
	flashMessages[sessionID] = FlashMessage{Type: "success", Message: msg, SetAt: time.Now()}
	flashMessagesMu.Unlock()
}

// GetAndClearFlash retrieves and clears flash messages for a session
func GetAndClearFlash(sessionID string) (success, errorMsg string) {
	flashMessagesMu.Lock()
	fm := flashMessages[sessionID]
	delete(flashMessages, sessionID)
	flashMessagesMu.Unlock()
	switch fm.Type {
	case "success":
		success = fm.Message
	case "error":
		errorMsg = fm.Message
	}
	return
}

// dropFlash forgets pending messages of a session that ended
func dropFlash(sessionID string) {
	flashMessagesMu.Lock()
	delete(flashMessages, sessionID)
	flashMessagesMu.Unlock()
}

// pruneFlash drops messages set before cutoff and returns how many it removed
func pruneFlash(cutoff time.Time) int {
	flashMessagesMu.Lock()
	defer flashMessagesMu.Unlock()
	n := 0
	for sid, fm := range flashMessages {
		if fm.SetAt.Before(cutoff) {
			delete(flashMessages, sid)
			n++
		}
	}
	return n
}

// AuthUser represents a user for authentication
type AuthUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

// SessionData represents session information with user data
type SessionData struct {
	SessionID string
	UserID    int64
	User      *AuthUser
	IsAdmin   bool
	ExpiresAt time.Time
}

// SetError sets a temporary error message in session data
func (s *SessionData) SetError(msg string) {
	SetFlashError(s.SessionID, msg)
}

// SetSuccess sets a temporary success message in session data
func (s *SessionData) SetSuccess(msg string) {
	SetFlashSuccess(s.SessionID, msg)
}

// WebAdminRequired middleware for admin-only routes
func (s *WebServer) WebAdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := s.getWebSession(c)
		if session == nil {
			c.Redirect(http.StatusSeeOther, s.MustReverse("login")+"?redirect="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		if !session.IsAdmin {
			s.renderError(c, http.StatusForbidden, "Access Denied", "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// getWebSession retrieves session from cookie and returns full session data.
// The result is cached on the request context.
func (s *WebServer) getWebSession(c *gin.Context) *SessionData {
	if v, ok := c.Get(ctxSession); ok {
		session, _ := v.(*SessionData)
		return session
	}

	sessionID, err := c.Cookie(sessionCookieName)
	if err != nil || sessionID == "" {
		c.Set(ctxSession, (*SessionData)(nil))
		return nil
	}

	user, err := s.DB.ValidateUserSession(sessionID)
	if err != nil {
		c.Set(ctxSession, (*SessionData)(nil))
		return nil
	}

	session := &SessionData{
		SessionID: sessionID,
		UserID:    user.ID,
		User: &AuthUser{
			ID:          user.ID,
			Username:    user.Username,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			CreatedAt:   user.CreatedAt.UTC().Format(models.DisplayTimeFormat),
		},
		IsAdmin: s.isAdminUser(user),
	}
	if user.SessionExpiresAt != nil {
		session.ExpiresAt = *user.SessionExpiresAt
	}
	c.Set(ctxSession, session)
	return session
}

// isAdminUser checks if a user has admin permissions.
// User 1 (the first account created) is always admin.
func (s *WebServer) isAdminUser(user *models.User) bool {
	if user.ID == 1 {
		return true
	}
	ok, err := s.DB.HasUserPermission(user.ID, models.PermissionAdmin)
	return err == nil && ok
}

// hashPassword creates a bcrypt hash of the password
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// checkPassword checks if password matches hash
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// safeRedirect only allows local absolute paths as redirect targets
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return fallback
	}
	return target
}

func isHTTPS(c *gin.Context) bool {
	return c.Request != nil && (c.Request.TLS != nil || c.Request.URL.Scheme == "https")
}

// Helper function to set session cookie
func (s *WebServer) setSessionCookie(c *gin.Context, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(c),
		SameSite: http.SameSiteLaxMode, // Works well with reverse proxies
	})
}

// Helper function to clear session cookie
func (s *WebServer) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(c),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1, // Delete cookie
	})
}
