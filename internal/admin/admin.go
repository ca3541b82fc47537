// Package admin provides the model registry behind the go-myapp admin site.
//
// A ModelAdmin declares which columns a model's changelist shows and which
// text columns its search box looks at. The web package renders the
// changelist, add, change and delete pages from this description.
package admin

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/go-while/go-myapp/internal/models"
)

var (
	ErrAlreadyRegistered = errors.New("model already registered")
	ErrUnknownField      = errors.New("unknown field")
	ErrNotSearchable     = errors.New("field is not searchable")
)

// DefaultListPerPage matches the changelist page size of the admin we mirror
const DefaultListPerPage = 100

// ModelAdmin describes how a model appears in the admin site
type ModelAdmin struct {
	Model             string // url slug, e.g. "samplemodel"
	VerboseName       string
	VerboseNamePlural string
	Fields            []models.FieldInfo
	ListDisplay       []string
	SearchFields      []string
	ListPerPage       int
	Ordering          string // default ordering, "-id" for newest first
}

// SampleModelAdmin registers SampleModel for display and search
var SampleModelAdmin = ModelAdmin{
	Model:             "samplemodel",
	VerboseName:       "sample model",
	VerboseNamePlural: "sample models",
	Fields:            models.SampleModelFields,
	ListDisplay:       []string{"name", "description", "created_at"},
	SearchFields:      []string{"name", "description"},
	ListPerPage:       DefaultListPerPage,
	Ordering:          "-id",
}

// Site is a registry of ModelAdmins
type Site struct {
	mux      sync.RWMutex
	registry map[string]*ModelAdmin
	order    []string
}

// NewSite returns an empty admin site
func NewSite() *Site {
	return &Site{registry: make(map[string]*ModelAdmin)}
}

// DefaultSite returns a site with every model of the application registered
func DefaultSite() *Site {
	site := NewSite()
	sm := SampleModelAdmin
	if err := site.Register(&sm); err != nil {
		// SampleModelAdmin is static, failing here is a programming error
		panic(fmt.Sprintf("admin: register %s: %v", sm.Model, err))
	}
	return site
}

// Register validates ma and adds it to the site
func (s *Site) Register(ma *ModelAdmin) error {
	if ma == nil || ma.Model == "" {
		return fmt.Errorf("admin: model slug is required")
	}
	if err := ma.check(); err != nil {
		return fmt.Errorf("admin: %s: %w", ma.Model, err)
	}
	if ma.ListPerPage <= 0 {
		ma.ListPerPage = DefaultListPerPage
	}
	if ma.VerboseName == "" {
		ma.VerboseName = ma.Model
	}
	if ma.VerboseNamePlural == "" {
		ma.VerboseNamePlural = ma.VerboseName + "s"
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	if _, exists := s.registry[ma.Model]; exists {
		return fmt.Errorf("admin: %s: %w", ma.Model, ErrAlreadyRegistered)
	}
	s.registry[ma.Model] = ma
	s.order = append(s.order, ma.Model)
	log.Printf("[ADMIN] Registered %s (list_display=%v search_fields=%v)", ma.Model, ma.ListDisplay, ma.SearchFields)
	return nil
}

// Get returns the ModelAdmin registered under the slug
func (s *Site) Get(model string) (*ModelAdmin, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ma, ok := s.registry[model]
	return ma, ok
}

// Models returns all registered ModelAdmins in registration order
func (s *Site) Models() []*ModelAdmin {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*ModelAdmin, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.registry[name])
	}
	return out
}

func (ma *ModelAdmin) check() error {
	if len(ma.ListDisplay) == 0 {
		return fmt.Errorf("list_display must not be empty")
	}
	for _, name := range ma.ListDisplay {
		if _, ok := ma.field(name); !ok {
			return fmt.Errorf("list_display %q: %w", name, ErrUnknownField)
		}
	}
	for _, name := range ma.SearchFields {
		f, ok := ma.field(name)
		if !ok {
			return fmt.Errorf("search_fields %q: %w", name, ErrUnknownField)
		}
		if !f.Searchable() {
			return fmt.Errorf("search_fields %q: %w", name, ErrNotSearchable)
		}
	}
	if ma.Ordering != "" {
		if _, ok := ma.field(strings.TrimPrefix(ma.Ordering, "-")); !ok {
			return fmt.Errorf("ordering %q: %w", ma.Ordering, ErrUnknownField)
		}
	}
	return nil
}

func (ma *ModelAdmin) field(name string) (models.FieldInfo, bool) {
	for _, f := range ma.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return models.FieldInfo{}, false
}

// Columns returns list_display resolved to field descriptions
func (ma *ModelAdmin) Columns() []models.FieldInfo {
	cols := make([]models.FieldInfo, 0, len(ma.ListDisplay))
	for _, name := range ma.ListDisplay {
		if f, ok := ma.field(name); ok {
			cols = append(cols, f)
		}
	}
	return cols
}

// FormFields returns the fields shown on the add and change forms
func (ma *ModelAdmin) FormFields() []models.FieldInfo {
	var out []models.FieldInfo
	for _, f := range ma.Fields {
		if f.Editable {
			out = append(out, f)
		}
	}
	return out
}

// HasSearch reports whether the changelist shows a search box
func (ma *ModelAdmin) HasSearch() bool {
	return len(ma.SearchFields) > 0
}

// ResolveOrdering maps the "o" query parameter to a column and direction.
// Only list_display columns and the primary key are sortable; anything else
// falls back to the default ordering.
func (ma *ModelAdmin) ResolveOrdering(param string) (field string, desc bool) {
	param = strings.TrimSpace(param)
	name := strings.TrimPrefix(param, "-")
	if name != "" && (name == "id" || ma.inListDisplay(name)) {
		return name, strings.HasPrefix(param, "-")
	}
	def := ma.Ordering
	if def == "" {
		def = "-id"
	}
	return strings.TrimPrefix(def, "-"), strings.HasPrefix(def, "-")
}

func (ma *ModelAdmin) inListDisplay(name string) bool {
	for _, ld := range ma.ListDisplay {
		if ld == name {
			return true
		}
	}
	return false
}

// SplitSearchTerms splits a search query on whitespace. Quoted phrases
// ("foo bar" or 'foo bar') stay together with the quotes removed.
func SplitSearchTerms(q string) []string {
	var terms []string
	var cur strings.Builder
	var quote rune
	flush := func() {
		if cur.Len() > 0 {
			terms = append(terms, cur.String())
			cur.Reset()
		}
	}
	for _, r := range q {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				flush()
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			if cur.Len() == 0 {
				quote = r
				continue
			}
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return terms
}
