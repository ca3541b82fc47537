package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed static/*
var EmbeddedStaticFS embed.FS

//go:embed templates/*.html
var EmbeddedTemplatesFS embed.FS

// EmbeddedStaticHandler returns a Gin handler serving embedded static files
// for a route with a *filepath parameter
func EmbeddedStaticHandler() gin.HandlerFunc {
	staticFS, err := fs.Sub(EmbeddedStaticFS, "static")
	if err != nil {
		panic("Failed to create embedded static filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(staticFS))

	return func(c *gin.Context) {
		path := c.Param("filepath")
		if path == "" || path == "/" || strings.HasSuffix(path, "/") {
			// no directory listings
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		if _, err := fs.Stat(staticFS, strings.TrimPrefix(path, "/")); err != nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		// serve a copy of the request so the router still sees the original path
		req := c.Request.Clone(c.Request.Context())
		req.URL.Path = path
		c.Header("Cache-Control", "public, max-age=3600") // browser caches an hour
		fileServer.ServeHTTP(c.Writer, req)
	}
}
