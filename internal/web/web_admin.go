package web

import (
	"github.com/go-while/go-myapp/internal/admin"
	"github.com/go-while/go-myapp/internal/cache"
	"github.com/go-while/go-myapp/internal/database"
	"github.com/go-while/go-myapp/internal/models"
)

// adminObject is one row shown by the admin pages
type adminObject interface {
	FieldValue(name string) (string, bool)
	String() string
}

// ListQuery is what a changelist asks a modelStore for
type ListQuery struct {
	Terms        []string
	SearchFields []string
	OrderBy      string
	Desc         bool
	Limit        int
	Offset       int
}

// modelStore is the data access behind the admin pages of one model
type modelStore interface {
	Count() (int, error)
	List(q ListQuery) ([]adminObject, int, error)
	Get(id int64) (adminObject, error)
	Create(values map[string]string) (int64, error)
	Update(id int64, values map[string]string) error
	Delete(id int64) error
}

// newModelStore returns the store for an admin model slug, nil if the
// database has no table for it. Writes clear listCache.
func newModelStore(db *database.Database, model string, listCache *cache.ListCache) modelStore {
	switch model {
	case admin.SampleModelAdmin.Model:
		return &sampleModelStore{db: db, listCache: listCache}
	}
	return nil
}

type sampleModelStore struct {
	db        *database.Database
	listCache *cache.ListCache
}

func (st *sampleModelStore) Count() (int, error) {
	return st.db.CountSampleModels()
}

func (st *sampleModelStore) List(q ListQuery) ([]adminObject, int, error) {
	rows, total, err := st.db.SearchSampleModels(database.SampleModelFilter{
		Terms:        q.Terms,
		SearchFields: q.SearchFields,
		OrderBy:      q.OrderBy,
		Desc:         q.Desc,
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]adminObject, len(rows))
	for i, m := range rows {
		out[i] = m
	}
	return out, total, nil
}

func (st *sampleModelStore) Get(id int64) (adminObject, error) {
	m, err := st.db.GetSampleModelByID(id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (st *sampleModelStore) Create(values map[string]string) (int64, error) {
	m := &models.SampleModel{Name: values["name"], Description: values["description"]}
	if err := st.db.CreateSampleModel(m); err != nil {
		return 0, err
	}
	st.listCache.Clear()
	return m.ID, nil
}

func (st *sampleModelStore) Update(id int64, values map[string]string) error {
	m, err := st.db.GetSampleModelByID(id)
	if err != nil {
		return err
	}
	m.Name = values["name"]
	m.Description = values["description"]
	if err := st.db.UpdateSampleModel(m); err != nil {
		return err
	}
	st.listCache.Clear()
	return nil
}

func (st *sampleModelStore) Delete(id int64) error {
	if err := st.db.DeleteSampleModel(id); err != nil {
		return err
	}
	st.listCache.Clear()
	return nil
}

// AdminModelEntry is one row of the admin index
type AdminModelEntry struct {
	Admin *admin.ModelAdmin
	Count int
}

// AdminPageData represents data for the admin index
type AdminPageData struct {
	TemplateData
	Models []AdminModelEntry
	Uptime string
}

// ChangelistColumn is a list_display column header
type ChangelistColumn struct {
	Field     models.FieldInfo
	Sorted    bool
	Desc      bool
	SortParam string // value of "o" that sorts by this column, toggling direction
}

// ChangelistPageData represents data for a model changelist
type ChangelistPageData struct {
	TemplateData
	Admin      *admin.ModelAdmin
	Columns    []ChangelistColumn
	Objects    []ChangelistRow
	Query      string
	Ordering   string
	Pagination *models.PaginationInfo
	TotalCount int // rows without search
}

// ChangelistRow is one object with its id for links
type ChangelistRow struct {
	ID     string
	Object adminObject
}

// FormField is one input of the add/change form
type FormField struct {
	Field models.FieldInfo
	Value string
	Error string
}

// ChangeFormPageData represents data for the add and change forms
type ChangeFormPageData struct {
	TemplateData
	Admin    *admin.ModelAdmin
	ObjectID string // empty when adding
	Object   adminObject
	Fields   []FormField
}

// DeletePageData represents data for the delete confirmation
type DeletePageData struct {
	TemplateData
	Admin    *admin.ModelAdmin
	ObjectID string
	Object   adminObject
}
