// Package models defines the core data structures for go-myapp
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// SampleNameMaxLength is the maximum length of SampleModel.Name in runes
const SampleNameMaxLength = 100

// DisplayTimeFormat is used wherever a timestamp is shown to a human
const DisplayTimeFormat = "2006-01-02 15:04:05"

var (
	ErrNameRequired = errors.New("name is required")
	ErrNameTooLong  = fmt.Errorf("name must be at most %d characters", SampleNameMaxLength)
)

// SampleModel is the single entity managed by the application (main DB)
type SampleModel struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FieldKind describes how a column is stored and rendered
type FieldKind int

const (
	FieldInt FieldKind = iota
	FieldText
	FieldTime
)

// FieldInfo describes one column of a model table
type FieldInfo struct {
	Name      string
	Label     string
	Kind      FieldKind
	Editable  bool // shown on add/change forms
	Multiline bool // rendered as textarea
	MaxLength int  // in runes, 0 for no limit
	Required  bool
}

// Searchable reports whether the field can be used in a text search
func (f FieldInfo) Searchable() bool {
	return f.Kind == FieldText
}

// SampleModelFields lists the columns of sample_models in declaration order
var SampleModelFields = []FieldInfo{
	{Name: "id", Label: "ID", Kind: FieldInt},
	{Name: "name", Label: "Name", Kind: FieldText, Editable: true, MaxLength: SampleNameMaxLength, Required: true},
	{Name: "description", Label: "Description", Kind: FieldText, Editable: true, Multiline: true},
	{Name: "created_at", Label: "Created at", Kind: FieldTime},
	{Name: "updated_at", Label: "Updated at", Kind: FieldTime},
}

// LookupSampleField returns the FieldInfo for a sample_models column
func LookupSampleField(name string) (FieldInfo, bool) {
	for _, f := range SampleModelFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// FieldValue returns the display value of the named column
func (m *SampleModel) FieldValue(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.FormatInt(m.ID, 10), true
	case "name":
		return m.Name, true
	case "description":
		return m.Description, true
	case "created_at":
		return formatTime(m.CreatedAt), true
	case "updated_at":
		return formatTime(m.UpdatedAt), true
	}
	return "", false
}

// Validate normalizes and checks user supplied fields
func (m *SampleModel) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(m.Name) > SampleNameMaxLength {
		return ErrNameTooLong
	}
	return nil
}

// String is what the admin shows for an object, e.g. in delete confirmations
func (m *SampleModel) String() string {
	return m.Name
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DisplayTimeFormat)
}

// User represents a web user that may log into the admin site (main DB)
type User struct {
	ID               int64      `json:"id" db:"id"`
	Username         string     `json:"username" db:"username"`
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	DisplayName      string     `json:"display_name" db:"display_name"`
	SessionID        string     `json:"-" db:"session_id"`                          // Current active session (64 chars)
	LastLoginIP      string     `json:"last_login_ip" db:"last_login_ip"`           // IP of last login (for logging only)
	SessionExpiresAt *time.Time `json:"session_expires_at" db:"session_expires_at"` // Session expiration (sliding)
	LoginAttempts    int        `json:"login_attempts" db:"login_attempts"`         // Failed login attempts counter
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// PermissionAdmin grants access to the admin site
const PermissionAdmin = "admin"

// UserPermission represents a permission granted to a user
type UserPermission struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Permission string    `json:"permission" db:"permission"`
	GrantedAt  time.Time `json:"granted_at" db:"granted_at"`
}

// PaginationInfo represents pagination information for templates
type PaginationInfo struct {
	CurrentPage int
	PageSize    int
	TotalCount  int
	TotalPages  int
	HasNext     bool
	HasPrev     bool
	NextPage    int
	PrevPage    int
}

// NewPaginationInfo creates pagination info
func NewPaginationInfo(page, pageSize, totalCount int) *PaginationInfo {
	if pageSize <= 0 {
		pageSize = 1
	}
	totalPages := (totalCount + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}

	return &PaginationInfo{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
		NextPage:    page + 1,
		PrevPage:    page - 1,
	}
}

// Offset returns the row offset of the current page
func (p *PaginationInfo) Offset() int {
	return (p.CurrentPage - 1) * p.PageSize
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalCount int         `json:"total_count"`
	TotalPages int         `json:"total_pages"`
	HasNext    bool        `json:"has_next"`
	HasPrev    bool        `json:"has_prev"`
}
