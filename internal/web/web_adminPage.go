package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-myapp/internal/admin"
	"github.com/go-while/go-myapp/internal/database"
	"github.com/go-while/go-myapp/internal/models"
)

// adminPage lists the registered models with their row counts
func (s *WebServer) adminPage(c *gin.Context) {
	data := AdminPageData{
		TemplateData: s.getBaseTemplateData(c, "Site administration"),
		Uptime:       time.Since(s.StartTime).Truncate(time.Second).String(),
	}
	for _, ma := range s.Admin.Models() {
		store, ok := s.stores[ma.Model]
		if !ok {
			continue
		}
		count, err := store.Count()
		if err != nil {
			s.renderError(c, http.StatusInternalServerError, "Database Error", err.Error())
			return
		}
		data.Models = append(data.Models, AdminModelEntry{Admin: ma, Count: count})
	}
	s.renderTemplate(c, http.StatusOK, "admin_index.html", data)
}

// adminModel resolves the :model parameter, rendering a 404 when unknown
func (s *WebServer) adminModel(c *gin.Context) (*admin.ModelAdmin, modelStore, bool) {
	ma, ok := s.Admin.Get(c.Param("model"))
	if !ok {
		s.renderError(c, http.StatusNotFound, "Page Not Found", "unknown model "+c.Param("model"))
		return nil, nil, false
	}
	store, ok := s.stores[ma.Model]
	if !ok {
		s.renderError(c, http.StatusNotFound, "Page Not Found", "no storage for model "+ma.Model)
		return nil, nil, false
	}
	return ma, store, true
}

// adminChangelist shows list_display columns of one page of objects,
// filtered by the "q" search over search_fields and sorted by "o"
func (s *WebServer) adminChangelist(c *gin.Context) {
	ma, store, ok := s.adminModel(c)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	orderField, desc := ma.ResolveOrdering(c.Query("o"))
	page := queryPage(c, "p")

	list := ListQuery{
		SearchFields: ma.SearchFields,
		OrderBy:      orderField,
		Desc:         desc,
		Limit:        ma.ListPerPage,
		Offset:       (page - 1) * ma.ListPerPage,
	}
	if ma.HasSearch() {
		list.Terms = admin.SplitSearchTerms(query)
	}

	objects, matched, err := store.List(list)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Database Error", err.Error())
		return
	}
	total := matched
	if len(list.Terms) > 0 {
		if total, err = store.Count(); err != nil {
			s.renderError(c, http.StatusInternalServerError, "Database Error", err.Error())
			return
		}
	}

	pagination := models.NewPaginationInfo(page, ma.ListPerPage, matched)
	if page > pagination.TotalPages {
		// out of range page numbers show the last page
		c.Redirect(http.StatusSeeOther, changelistURL(s.MustReverse("admin:changelist", ma.Model), query, c.Query("o"), pagination.TotalPages))
		return
	}

	ordering := orderField
	if desc {
		ordering = "-" + orderField
	}
	data := ChangelistPageData{
		TemplateData: s.getBaseTemplateData(c, "Select "+ma.VerboseName+" to change"),
		Admin:        ma,
		Query:        query,
		Ordering:     ordering,
		Pagination:   pagination,
		TotalCount:   total,
	}
	for _, f := range ma.Columns() {
		col := ChangelistColumn{Field: f, SortParam: f.Name}
		if f.Name == orderField {
			col.Sorted = true
			col.Desc = desc
			if !desc {
				col.SortParam = "-" + f.Name
			}
		}
		data.Columns = append(data.Columns, col)
	}
	for _, obj := range objects {
		id, _ := obj.FieldValue("id")
		data.Objects = append(data.Objects, ChangelistRow{ID: id, Object: obj})
	}
	s.renderTemplate(c, http.StatusOK, "admin_changelist.html", data)
}

func changelistURL(base, q, o string, page int) string {
	var params []string
	if q != "" {
		params = append(params, "q="+url.QueryEscape(q))
	}
	if o != "" {
		params = append(params, "o="+url.QueryEscape(o))
	}
	if page > 1 {
		params = append(params, "p="+strconv.Itoa(page))
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + strings.Join(params, "&")
}

// adminAdd shows and processes the add form
func (s *WebServer) adminAdd(c *gin.Context) {
	ma, store, ok := s.adminModel(c)
	if !ok {
		return
	}
	session := s.getWebSession(c)

	if c.Request.Method != http.MethodPost {
		s.renderChangeForm(c, ma, "", nil, emptyFormFields(ma), http.StatusOK)
		return
	}

	values, fields := readFormFields(c, ma)
	id, err := store.Create(values)
	if err != nil {
		if applyValidationError(fields, err) {
			s.renderChangeForm(c, ma, "", nil, fields, http.StatusOK)
			return
		}
		s.renderError(c, http.StatusInternalServerError, "Database Error", err.Error())
		return
	}

	log.Printf("[ADMIN] %s added %s %d", session.User.Username, ma.Model, id)
	obj, err := store.Get(id)
	name := strconv.FormatInt(id, 10)
	if err == nil {
		name = obj.String()
	}
	session.SetSuccess(fmt.Sprintf("The %s %q was added successfully.", ma.VerboseName, name))
	s.redirectAfterSave(c, ma, id)
}

// adminChange shows and processes the change form
func (s *WebServer) adminChange(c *gin.Context) {
	ma, store, ok := s.adminModel(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		s.renderError(c, http.StatusNotFound, "Page Not Found", "invalid id "+c.Param("id"))
		return
	}
	obj, err := store.Get(id)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	session := s.getWebSession(c)
	objectID := strconv.FormatInt(id, 10)

	if c.Request.Method != http.MethodPost {
		fields := emptyFormFields(ma)
		for i := range fields {
			fields[i].Value, _ = obj.FieldValue(fields[i].Field.Name)
		}
		s.renderChangeForm(c, ma, objectID, obj, fields, http.StatusOK)
		return
	}

	values, fields := readFormFields(c, ma)
	if err := store.Update(id, values); err != nil {
		if applyValidationError(fields, err) {
			s.renderChangeForm(c, ma, objectID, obj, fields, http.StatusOK)
			return
		}
		s.renderStoreError(c, err)
		return
	}

	log.Printf("[ADMIN] %s changed %s %d", session.User.Username, ma.Model, id)
	if updated, err := store.Get(id); err == nil {
		obj = updated
	}
	session.SetSuccess(fmt.Sprintf("The %s %q was changed successfully.", ma.VerboseName, obj.String()))
	s.redirectAfterSave(c, ma, id)
}

// adminDelete asks for confirmation on GET and deletes on POST
func (s *WebServer) adminDelete(c *gin.Context) {
	ma, store, ok := s.adminModel(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		s.renderError(c, http.StatusNotFound, "Page Not Found", "invalid id "+c.Param("id"))
		return
	}
	obj, err := store.Get(id)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	session := s.getWebSession(c)

	if c.Request.Method != http.MethodPost {
		data := DeletePageData{
			TemplateData: s.getBaseTemplateData(c, "Are you sure?"),
			Admin:        ma,
			ObjectID:     strconv.FormatInt(id, 10),
			Object:       obj,
		}
		s.renderTemplate(c, http.StatusOK, "admin_delete.html", data)
		return
	}

	if err := store.Delete(id); err != nil {
		s.renderStoreError(c, err)
		return
	}
	log.Printf("[ADMIN] %s deleted %s %d", session.User.Username, ma.Model, id)
	session.SetSuccess(fmt.Sprintf("The %s %q was deleted successfully.", ma.VerboseName, obj.String()))
	c.Redirect(http.StatusSeeOther, s.MustReverse("admin:changelist", ma.Model))
}

// redirectAfterSave follows the submit button that was used
func (s *WebServer) redirectAfterSave(c *gin.Context, ma *admin.ModelAdmin, id int64) {
	switch {
	case c.PostForm("_continue") != "":
		c.Redirect(http.StatusSeeOther, s.MustReverse("admin:change", ma.Model, id))
	case c.PostForm("_addanother") != "":
		c.Redirect(http.StatusSeeOther, s.MustReverse("admin:add", ma.Model))
	default:
		c.Redirect(http.StatusSeeOther, s.MustReverse("admin:changelist", ma.Model))
	}
}

func (s *WebServer) renderChangeForm(c *gin.Context, ma *admin.ModelAdmin, objectID string, obj adminObject, fields []FormField, status int) {
	title := "Add " + ma.VerboseName
	if objectID != "" {
		title = "Change " + ma.VerboseName
	}
	data := ChangeFormPageData{
		TemplateData: s.getBaseTemplateData(c, title),
		Admin:        ma,
		ObjectID:     objectID,
		Object:       obj,
		Fields:       fields,
	}
	for _, f := range fields {
		if f.Error != "" {
			data.Error = "Please correct the error below."
			break
		}
	}
	s.renderTemplate(c, status, "admin_change_form.html", data)
}

func (s *WebServer) renderStoreError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrSampleModelNotFound) {
		s.renderError(c, http.StatusNotFound, "Page Not Found", err.Error())
		return
	}
	s.renderError(c, http.StatusInternalServerError, "Database Error", err.Error())
}

func emptyFormFields(ma *admin.ModelAdmin) []FormField {
	var fields []FormField
	for _, f := range ma.FormFields() {
		fields = append(fields, FormField{Field: f})
	}
	return fields
}

func readFormFields(c *gin.Context, ma *admin.ModelAdmin) (map[string]string, []FormField) {
	values := make(map[string]string)
	fields := emptyFormFields(ma)
	for i := range fields {
		v := c.PostForm(fields[i].Field.Name)
		values[fields[i].Field.Name] = v
		fields[i].Value = v
	}
	return values, fields
}

// applyValidationError attaches a model validation error to its form field.
// It returns false for errors that are not about user input.
func applyValidationError(fields []FormField, err error) bool {
	var field string
	switch {
	case errors.Is(err, models.ErrNameRequired):
		field, err = "name", errors.New("This field is required.")
	case errors.Is(err, models.ErrNameTooLong):
		field, err = "name", fmt.Errorf("Ensure this value has at most %d characters.", models.SampleNameMaxLength)
	default:
		return false
	}
	for i := range fields {
		if fields[i].Field.Name == field {
			fields[i].Error = err.Error()
			return true
		}
	}
	return false
}
