package web

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-myapp/internal/database"
	"github.com/go-while/go-myapp/internal/models"
)

// LoginPageData represents data for login page
type LoginPageData struct {
	TemplateData
	Username    string
	RedirectURL string
}

// loginPage displays the login form
func (s *WebServer) loginPage(c *gin.Context) {
	redirectURL := safeRedirect(c.Query("redirect"), s.MustReverse("index"))
	if session := s.getWebSession(c); session != nil {
		c.Redirect(http.StatusSeeOther, redirectURL)
		return
	}

	data := LoginPageData{
		TemplateData: s.getBaseTemplateData(c, "Login"),
		RedirectURL:  redirectURL,
	}
	if c.Query("message") == "logged_out" {
		data.Success = "You have been logged out."
	}
	s.renderTemplate(c, http.StatusOK, "login.html", data)
}

// loginSubmit processes login form submission
func (s *WebServer) loginSubmit(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	redirectURL := safeRedirect(c.PostForm("redirect"), s.MustReverse("index"))

	if username == "" || password == "" {
		s.renderLoginError(c, "Username and password are required", username, redirectURL)
		return
	}

	// email logins resolve to the account so lockout counts per user
	var user *models.User
	var err error
	if strings.Contains(username, "@") {
		user, err = s.DB.GetUserByEmail(username)
	} else {
		user, err = s.DB.GetUserByUsername(username)
	}
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			log.Printf("[WEB]: Login lookup for %q failed: %v", username, err)
		}
		s.renderLoginError(c, "Invalid username or password", username, redirectURL)
		return
	}

	lockedOut, err := s.DB.IsUserLockedOut(user.Username)
	if err != nil {
		log.Printf("[WEB]: Login lockout check for %q failed: %v", user.Username, err)
		s.renderLoginError(c, "Login error. Please try again.", username, redirectURL)
		return
	}
	if lockedOut {
		s.renderLoginError(c, "Account temporarily locked due to too many failed attempts. Try again in 15 minutes.", username, redirectURL)
		return
	}

	if !checkPassword(password, user.PasswordHash) {
		if err := s.DB.IncrementLoginAttempts(user.Username); err != nil {
			log.Printf("[WEB]: Failed to count login attempt for %s: %v", user.Username, err)
		}
		s.renderLoginError(c, "Invalid username or password", username, redirectURL)
		return
	}

	// Successful login - create new session (this invalidates any existing session)
	sessionID, err := s.DB.CreateUserSession(user.ID, c.ClientIP())
	if err != nil {
		log.Printf("[WEB]: Failed to create session for %s: %v", user.Username, err)
		s.renderLoginError(c, "Failed to create session", username, redirectURL)
		return
	}
	log.Printf("[WEB]: User %s logged in from %s", user.Username, c.ClientIP())

	s.setSessionCookie(c, sessionID)
	c.Redirect(http.StatusSeeOther, redirectURL)
}

// logout handles user logout
func (s *WebServer) logout(c *gin.Context) {
	if session := s.getWebSession(c); session != nil {
		if err := s.DB.InvalidateUserSession(session.UserID); err != nil {
			log.Printf("[WEB]: Failed to invalidate session of user %d: %v", session.UserID, err)
		}
		dropFlash(session.SessionID)
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, s.MustReverse("login")+"?message=logged_out")
}

// renderLoginError renders login page with error
func (s *WebServer) renderLoginError(c *gin.Context, errorMsg, username, redirectURL string) {
	data := LoginPageData{
		TemplateData: s.getBaseTemplateData(c, "Login"),
		Username:     username,
		RedirectURL:  redirectURL,
	}
	data.Error = errorMsg
	s.renderTemplate(c, http.StatusBadRequest, "login.html", data)
}
