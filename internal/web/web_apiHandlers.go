package web

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-myapp/internal/admin"
	"github.com/go-while/go-myapp/internal/cache"
	"github.com/go-while/go-myapp/internal/config"
	"github.com/go-while/go-myapp/internal/database"
	"github.com/go-while/go-myapp/internal/models"
)

// MaxAPIPageSize caps the page_size query parameter of list endpoints
const MaxAPIPageSize = 500

// sampleModelAdmin returns the registered admin options for SampleModel,
// which the API reuses for search fields and ordering
func (s *WebServer) sampleModelAdmin() *admin.ModelAdmin {
	if ma, ok := s.Admin.Get(admin.SampleModelAdmin.Model); ok {
		return ma
	}
	ma := admin.SampleModelAdmin
	return &ma
}

// listSampleModels serves GET /api/v1/samplemodels?q=&o=&page=&page_size=
func (s *WebServer) listSampleModels(c *gin.Context) {
	ma := s.sampleModelAdmin()

	page := queryPage(c, "page")
	pageSize := ma.ListPerPage
	if ps := c.Query("page_size"); ps != "" {
		parsed, err := strconv.Atoi(ps)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		pageSize = min(parsed, MaxAPIPageSize)
	}

	orderField, desc := ma.ResolveOrdering(c.Query("o"))
	query := cache.NormalizeQuery(c.Query("q"))
	key := cache.ListKey{Query: query, Ordering: orderField, Page: page, PageSize: pageSize}
	if desc {
		key.Ordering = "-" + orderField
	}

	rows, total, ok := s.listCache.Get(key)
	if !ok {
		gen := s.listCache.Generation()
		var err error
		rows, total, err = s.DB.SearchSampleModels(database.SampleModelFilter{
			Terms:        admin.SplitSearchTerms(query),
			SearchFields: ma.SearchFields,
			OrderBy:      orderField,
			Desc:         desc,
			Limit:        pageSize,
			Offset:       (page - 1) * pageSize,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.listCache.StoreAt(gen, key, rows, total)
	}
	if rows == nil {
		rows = []*models.SampleModel{}
	}

	p := models.NewPaginationInfo(page, pageSize, total)
	c.JSON(http.StatusOK, models.PaginatedResponse{
		Data:       rows,
		Page:       p.CurrentPage,
		PageSize:   p.PageSize,
		TotalCount: p.TotalCount,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext,
		HasPrev:    p.HasPrev,
	})
}

// getSampleModel serves GET /api/v1/samplemodels/:id
func (s *WebServer) getSampleModel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	m, err := s.DB.GetSampleModelByID(id)
	if err != nil {
		if errors.Is(err, database.ErrSampleModelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

// getStats serves GET /api/v1/stats
func (s *WebServer) getStats(c *gin.Context) {
	count, err := s.DB.CountSampleModels()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	dbStats := s.DB.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"version":       config.AppVersion,
		"uptime":        time.Since(s.StartTime).Truncate(time.Second).String(),
		"goroutines":    runtime.NumGoroutine(),
		"sample_models": count,
		"db": gin.H{
			"open_connections": dbStats.MainDB.OpenConnections,
			"idle":             dbStats.MainDB.IdleConnections,
			"in_use":           dbStats.MainDB.InUse,
			"wait_count":       dbStats.MainDB.WaitCount,
		},
		"list_cache": s.listCache.GetStats(),
	})
}
