package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/go-while/go-myapp/internal/database"
	"github.com/go-while/go-myapp/internal/models"
)

// MinPasswordLength is enforced on create and update
const MinPasswordLength = 8

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errPasswordTooShort = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
)

// manager runs the user commands; readPassword prompts without echo
type manager struct {
	db           *database.Database
	out          io.Writer
	in           io.Reader
	readPassword func(prompt string) ([]byte, error)
	hashCost     int // bcrypt cost, 0 for bcrypt.DefaultCost
}

func readTerminalPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	defer fmt.Println()
	return term.ReadPassword(int(syscall.Stdin))
}

// promptNewPassword asks twice and returns the bcrypt hash
func (m *manager) promptNewPassword(prompt string) (string, error) {
	password, err := m.readPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := m.readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if string(password) != string(confirm) {
		return "", errPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return "", errPasswordTooShort
	}
	cost := m.hashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (m *manager) create(username, email, displayName string, isAdmin bool) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return errors.New("-username and -email are required for user creation")
	}
	if strings.Contains(username, "@") {
		return errors.New("username must not contain '@'")
	}
	if _, err := m.db.GetUserByUsername(username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	}
	if _, err := m.db.GetUserByEmail(email); err == nil {
		return fmt.Errorf("email '%s' already exists", email)
	}

	hash, err := m.promptNewPassword("Enter password: ")
	if err != nil {
		return err
	}
	if displayName == "" {
		displayName = username
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := m.db.InsertUser(user); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "User '%s' created (ID: %d)\n", username, user.ID)

	if user.ID == 1 {
		fmt.Fprintf(m.out, "'%s' is the first user and always admin\n", username)
		return nil
	}
	if isAdmin {
		return m.grant(user)
	}
	return nil
}

func (m *manager) grantAdmin(username string) error {
	user, err := m.lookup(username)
	if err != nil {
		return err
	}
	return m.grant(user)
}

func (m *manager) grant(user *models.User) error {
	up := &models.UserPermission{
		UserID:     user.ID,
		Permission: models.PermissionAdmin,
		GrantedAt:  time.Now(),
	}
	if err := m.db.InsertUserPermission(up); err != nil {
		return fmt.Errorf("failed to grant admin permission to '%s': %w", user.Username, err)
	}
	fmt.Fprintf(m.out, "Granted admin permission to '%s'\n", user.Username)
	return nil
}

func (m *manager) list() error {
	users, err := m.db.GetAllUsers()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(m.out, "No users found")
		return nil
	}

	const row = "%-4v %-6s %-20s %-30s %-20s %s\n"
	fmt.Fprintf(m.out, "Found %d users:\n\n", len(users))
	fmt.Fprintf(m.out, row, "ID", "Admin", "Username", "Email", "Display Name", "Created")
	for _, user := range users {
		adminMark := "no"
		if m.isAdmin(user) {
			adminMark = "yes"
		}
		fmt.Fprintf(m.out, row,
			user.ID,
			adminMark,
			truncate(user.Username, 20),
			truncate(user.Email, 30),
			truncate(user.DisplayName, 20),
			user.CreatedAt.UTC().Format("2006-01-02 15:04"),
		)
	}
	return nil
}

func (m *manager) delete(username string, skipConfirm bool) error {
	user, err := m.lookup(username)
	if err != nil {
		return err
	}
	if !skipConfirm {
		fmt.Fprintf(m.out, "Are you sure you want to delete user '%s' (ID: %d)? [y/N]: ", user.Username, user.ID)
		response, _ := bufio.NewReader(m.in).ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(m.out, "User deletion cancelled")
			return nil
		}
	}
	if err := m.db.DeleteUser(user.ID); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "User '%s' (ID: %d) deleted\n", user.Username, user.ID)
	return nil
}

func (m *manager) updatePassword(username string) error {
	user, err := m.lookup(username)
	if err != nil {
		return err
	}
	hash, err := m.promptNewPassword(fmt.Sprintf("Enter new password for '%s': ", user.Username))
	if err != nil {
		return err
	}
	if err := m.db.UpdateUserPassword(user.ID, hash); err != nil {
		return err
	}
	// a password change ends the current session
	if err := m.db.InvalidateUserSession(user.ID); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Password updated for user '%s'\n", user.Username)
	return nil
}

func (m *manager) lookup(username string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("-username is required")
	}
	user, err := m.db.GetUserByUsername(username)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, fmt.Errorf("user '%s' not found", username)
	}
	return user, err
}

// isAdmin mirrors the web server's rule: ID 1 or the admin permission
func (m *manager) isAdmin(user *models.User) bool {
	if user.ID == 1 {
		return true
	}
	ok, err := m.db.HasUserPermission(user.ID, models.PermissionAdmin)
	return err == nil && ok
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
