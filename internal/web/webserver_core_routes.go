// Package web provides the HTTP server and web interface for go-myapp
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/go-while/go-myapp/internal/admin"
	"github.com/go-while/go-myapp/internal/cache"
	"github.com/go-while/go-myapp/internal/config"
	"github.com/go-while/go-myapp/internal/database"
)

// WebServer represents the web server
type WebServer struct {
	DB        *database.Database
	Router    *gin.Engine
	Config    *config.WebConfig
	Admin     *admin.Site
	StartTime time.Time // Track server start time for uptime calculations

	routes    *routeTable
	stores    map[string]modelStore // admin data access by model slug
	listCache *cache.ListCache      // API list pages, nil when disabled

	tmplMux   sync.Mutex
	templates map[string]*template.Template // parsed page templates by file name

	srvMux     sync.Mutex
	httpServer *http.Server
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// TemplateData represents common template data
type TemplateData struct {
	Title       string
	CurrentTime string
	User        *AuthUser
	IsAdmin     bool
	AppVersion  string
	Success     string
	Error       string
}

// NewServer creates a new web server instance
func NewServer(db *database.Database, webconfig *config.WebConfig, site *admin.Site) *WebServer {
	if webconfig.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if site == nil {
		site = admin.DefaultSite()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	server := &WebServer{
		DB:        db,
		Router:    router,
		Config:    webconfig,
		Admin:     site,
		routes:    newRouteTable(),
		stores:    make(map[string]modelStore),
		listCache: cache.NewListCache(webconfig.ListCacheEntries, webconfig.ListCacheMaxAge),
		templates: make(map[string]*template.Template),
		stopChan:  make(chan struct{}),
		StartTime: time.Now(),
	}

	if webconfig.ApacheLog {
		router.Use(server.ApacheLogFormat())
	} else if gin.Mode() != gin.TestMode {
		router.Use(gin.Logger())
	}

	// Configure Gin to trust reverse proxy headers
	if err := router.SetTrustedProxies(webconfig.TrustedProxies); err != nil {
		log.Printf("[WEB]: Invalid trusted proxies %v: %v", webconfig.TrustedProxies, err)
	}

	// Configure security headers based on SSL setup
	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}

	// Only add SSL-specific headers if SSL is enabled on the application itself
	// (not when running behind a reverse proxy like nginx with SSL)
	if webconfig.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}
	router.Use(secure.New(secureConfig))

	// Add reverse proxy middleware for handling X-Forwarded headers
	router.Use(server.ReverseProxyMiddleware())
	if len(webconfig.BlockedUserAgents) > 0 {
		router.Use(server.UserAgentBlockMiddleware(webconfig.BlockedUserAgents))
	}

	// every registered admin model needs a store
	for _, ma := range site.Models() {
		store := newModelStore(db, ma.Model, server.listCache)
		if store == nil {
			log.Printf("[WEB]: No storage for admin model %q, skipping", ma.Model)
			continue
		}
		server.stores[ma.Model] = store
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	r := &s.Router.RouterGroup

	s.handle(r, "static", []string{http.MethodGet, http.MethodHead}, "/static/*filepath", EmbeddedStaticHandler())
	s.Router.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	s.Router.GET("/robots.txt", func(c *gin.Context) {
		c.String(http.StatusOK, "User-agent: *\nDisallow: /admin\n")
	})
	s.handle(r, "ping", get, "/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	s.handle(r, "index", get, "/", s.homePage)

	// Authentication routes
	s.handle(r, "login", get, "/login", s.loginPage)
	s.handle(r, "login", post, "/login", s.loginSubmit)
	s.handle(r, "logout", []string{http.MethodGet, http.MethodPost}, "/logout", s.logout)

	// Admin interface (authenticated)
	adm := s.Router.Group("/admin")
	adm.Use(s.WebAdminRequired())
	{
		s.handle(adm, "admin:index", get, "", s.adminPage)
		s.handle(adm, "admin:changelist", get, "/:model", s.adminChangelist)
		s.handle(adm, "admin:add", getPost, "/:model/add", s.adminAdd)
		s.handle(adm, "admin:change", getPost, "/:model/:id/change", s.adminChange)
		s.handle(adm, "admin:delete", getPost, "/:model/:id/delete", s.adminDelete)
	}

	// public read-only API
	api := s.Router.Group("/api/v1")
	{
		s.handle(api, "api:samplemodels", get, "/samplemodels", s.listSampleModels)
		s.handle(api, "api:samplemodel", get, "/samplemodels/:id", s.getSampleModel)
		s.handle(api, "api:stats", get, "/stats", s.getStats)
	}

	s.Router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		s.renderError(c, http.StatusNotFound, "Page Not Found", c.Request.URL.Path)
	})
}

var (
	get     = []string{http.MethodGet}
	post    = []string{http.MethodPost}
	getPost = []string{http.MethodGet, http.MethodPost}
)

// handle registers handler under a route name for each method.
// Registering the same name twice is only allowed for the same path.
func (s *WebServer) handle(g *gin.RouterGroup, name string, methods []string, relativePath string, handler gin.HandlerFunc) {
	fullPath := joinPaths(g.BasePath(), relativePath)
	if err := s.routes.add(name, fullPath); err != nil {
		panic(err)
	}
	for _, m := range methods {
		g.Handle(m, relativePath, handler)
	}
}

// Reverse resolves a route name to a path, see routeTable.reverse
func (s *WebServer) Reverse(name string, args ...interface{}) (string, error) {
	return s.routes.reverse(name, args...)
}

// MustReverse is Reverse for names and args fixed at compile time
func (s *WebServer) MustReverse(name string, args ...interface{}) string {
	p, err := s.Reverse(name, args...)
	if err != nil {
		panic(err)
	}
	return p
}

// Start starts the web server with SSL support if configured.
// It blocks until the server stops; after Shutdown it returns nil.
func (s *WebServer) Start() error {
	if s.Config.SSL && (s.Config.CertFile == "" || s.Config.KeyFile == "") {
		return errors.New("SSL enabled but cert_file or key_file not specified in config")
	}
	addr := ":" + strconv.Itoa(s.Config.ListenPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srvMux.Lock()
	s.httpServer = srv
	s.srvMux.Unlock()
	s.StartSessionCleanup(s.Config.CleanupInterval)

	var err error
	if s.Config.SSL {
		log.Printf("[WEB]: Starting HTTPS server on %s", addr)
		err = srv.ListenAndServeTLS(s.Config.CertFile, s.Config.KeyFile)
	} else {
		log.Printf("[WEB]: Starting HTTP server on %s", addr)
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops background tasks and gracefully stops the http server
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.srvMux.Lock()
	srv := s.httpServer
	s.srvMux.Unlock()
	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	log.Printf("[WEB]: Server stopped")
	return err
}

// UserAgentBlockMiddleware answers 403 to clients whose User-Agent contains
// one of the patterns (case-insensitive)
func (s *WebServer) UserAgentBlockMiddleware(patterns []string) gin.HandlerFunc {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return func(c *gin.Context) {
		userAgent := strings.ToLower(c.GetHeader("User-Agent"))
		for _, pattern := range lowered {
			if strings.Contains(userAgent, pattern) {
				log.Printf("[WEB]: Bot blocked: %q from %s", c.GetHeader("User-Agent"), c.ClientIP())
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		c.Next()
	}
}

// ReverseProxyMiddleware handles X-Forwarded headers when running behind a reverse proxy.
// Client IPs are left to gin's trusted proxy handling.
func (s *WebServer) ReverseProxyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.fromTrustedProxy(c) {
			c.Next()
			return
		}
		// Handle X-Forwarded-Proto to detect if the original request was HTTPS
		if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" {
			c.Request.URL.Scheme = "https"
		}
		// Handle X-Forwarded-Host to get the original host
		if host := c.GetHeader("X-Forwarded-Host"); host != "" {
			c.Request.Host = host
		}
		c.Next()
	}
}

// fromTrustedProxy reports whether the direct peer is in Config.TrustedProxies
func (s *WebServer) fromTrustedProxy(c *gin.Context) bool {
	peer, err := netip.ParseAddr(c.RemoteIP())
	if err != nil {
		return false
	}
	peer = peer.Unmap()
	for _, p := range s.Config.TrustedProxies {
		if strings.Contains(p, "/") {
			if prefix, err := netip.ParsePrefix(p); err == nil && prefix.Contains(peer) {
				return true
			}
			continue
		}
		if addr, err := netip.ParseAddr(p); err == nil && addr.Unmap() == peer {
			return true
		}
	}
	return false
}

// ApacheLogFormat logs requests in the combined log format
func (s *WebServer) ApacheLogFormat() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s"`+"\n",
			param.ClientIP,
			param.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.BodySize,
			param.Request.Referer(),
			param.Request.UserAgent(),
		)
	})
}
