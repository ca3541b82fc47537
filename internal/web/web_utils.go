package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-myapp/internal/config"
	"github.com/go-while/go-myapp/internal/models"
)

// getBaseTemplateData creates a TemplateData struct with common information including user auth
func (s *WebServer) getBaseTemplateData(c *gin.Context, title string) TemplateData {
	data := TemplateData{
		Title:       title,
		CurrentTime: time.Now().UTC().Format(models.DisplayTimeFormat),
		AppVersion:  config.AppVersion,
	}
	if session := s.getWebSession(c); session != nil {
		data.User = session.User
		data.IsAdmin = session.IsAdmin
		data.Success, data.Error = GetAndClearFlash(session.SessionID)
	}
	return data
}

// templateFuncs are available in every page template
func (s *WebServer) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"url": s.Reverse,
		"field": func(obj adminObject, name string) string {
			v, _ := obj.FieldValue(name)
			return v
		},
		"add": func(a, b int) int { return a + b },
	}
}

// pageTemplate returns base.html combined with the named page template,
// parsed once from the embedded templates
func (s *WebServer) pageTemplate(name string) (*template.Template, error) {
	s.tmplMux.Lock()
	defer s.tmplMux.Unlock()
	if tmpl, ok := s.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("base.html").Funcs(s.templateFuncs()).
		ParseFS(EmbeddedTemplatesFS, "templates/base.html", "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	s.templates[name] = tmpl
	return tmpl, nil
}

// renderTemplate renders a page template with the given status.
// Output is buffered so a template error still yields a clean error page.
func (s *WebServer) renderTemplate(c *gin.Context, status int, templateName string, data interface{}) {
	tmpl, err := s.pageTemplate(templateName)
	if err != nil {
		s.renderPlainError(c, http.StatusInternalServerError, "Template error", err)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("[WEB]: Error rendering template %s: %v", templateName, err)
		s.renderPlainError(c, http.StatusInternalServerError, "Template error", err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// ErrorPageData represents data for the error page
type ErrorPageData struct {
	TemplateData
	StatusCode int
	Message    string
}

// renderError renders an error page
func (s *WebServer) renderError(c *gin.Context, statusCode int, message string, errstring string) {
	if statusCode >= http.StatusInternalServerError {
		log.Printf("[WEB]: Error %d on %s: %s - %s", statusCode, c.Request.URL.Path, message, errstring)
	}
	data := ErrorPageData{
		TemplateData: s.getBaseTemplateData(c, message),
		StatusCode:   statusCode,
		Message:      message,
	}
	tmpl, err := s.pageTemplate("error.html")
	if err != nil {
		s.renderPlainError(c, statusCode, message, err)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.renderPlainError(c, statusCode, message, err)
		return
	}
	c.Data(statusCode, "text/html; charset=utf-8", buf.Bytes())
}

func (s *WebServer) renderPlainError(c *gin.Context, statusCode int, message string, err error) {
	log.Printf("[WEB]: Error rendering error page: %v", err)
	c.String(statusCode, "Error: %s", message)
}

// queryPage parses a 1-based page number query parameter, defaulting to 1
func queryPage(c *gin.Context, key string) int {
	if p, err := strconv.Atoi(c.Query(key)); err == nil && p > 0 {
		return p
	}
	return 1
}

// paramID parses a positive integer path parameter
func paramID(c *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
