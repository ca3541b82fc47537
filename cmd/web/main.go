// Web server for go-myapp: public pages, admin site and read-only API
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/go-while/go-myapp/internal/admin"
	"github.com/go-while/go-myapp/internal/config"
	"github.com/go-while/go-myapp/internal/database"
	"github.com/go-while/go-myapp/internal/web"
)

var (
	// command-line flags
	configFile  string
	webport     int
	webssl      bool
	webcertFile string
	webkeyFile  string
	dataDir     string
	pprofAddr   string
	updateFile  string
)

var appVersion = "-unset-"

var Prof *prof.Profiler

func main() {
	config.AppVersion = appVersion

	flag.StringVar(&configFile, "config", "", "YAML config file (optional, flags override its values)")
	flag.IntVar(&webport, "webport", 0, "Web server port (default: 11980)")
	flag.BoolVar(&webssl, "webssl", false, "Enable SSL")
	flag.StringVar(&webcertFile, "websslcert", "", "SSL certificate file (/path/to/fullchain.pem)")
	flag.StringVar(&webkeyFile, "websslkey", "", "SSL key file (/path/to/privkey.pem)")
	flag.StringVar(&dataDir, "data", "", "Data directory (default: ./data)")
	flag.StringVar(&pprofAddr, "pprof", "", "Start pprof web interface on this address (e.g. 127.0.0.1:51111)")
	flag.StringVar(&updateFile, "update-file", ".update", "Shut down gracefully when this file appears (empty disables)")
	flag.Parse()

	log.Printf("Starting go-myapp: Web Server (version: %s)", appVersion)

	mainConfig, err := loadConfig()
	if err != nil {
		log.Fatalf("[WEB]: %v", err)
	}
	log.Printf("[WEB]: Using WEB configuration: %#v", mainConfig.Web)

	if pprofAddr != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(pprofAddr)
		log.Printf("[WEB]: pprof listening on %s", pprofAddr)
	}

	db, err := database.OpenDatabase(dbConfigFrom(mainConfig))
	if err != nil {
		log.Fatalf("[WEB]: Failed to initialize database: %v", err)
	}

	site := admin.DefaultSite()
	if n := mainConfig.Admin.ListPerPage; n > 0 {
		for _, ma := range site.Models() {
			ma.ListPerPage = n
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go db.UpdateHeartbeat(ctx, 30*time.Second)

	server := web.NewServer(db, &mainConfig.Web, site)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Printf("[WEB]: Starting web server...")
	webServerErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			webServerErrChan <- err
		}
	}()

	updateFileChan := make(chan struct{}, 1)
	if updateFile != "" {
		go monitorUpdateFile(ctx, updateFile, time.Minute, updateFileChan)
	}

	log.Printf("[WEB]: Server started. Press Ctrl+C to gracefully shutdown...")
	select {
	case sig := <-sigChan:
		log.Printf("[WEB]: Received %v, initiating graceful shutdown...", sig)
	case err := <-webServerErrChan:
		log.Fatalf("[WEB]: Failed to start web server: %v", err)
	case <-updateFileChan:
		log.Printf("[WEB]: Update file detected, initiating graceful shutdown for update...")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WEB]: Error stopping web server: %v", err)
	}

	if err := db.Shutdown(); err != nil {
		log.Fatalf("[WEB]: Failed to shutdown database: %v", err)
	}
	log.Printf("[WEB]: Database shutdown successfully")
	log.Printf("[WEB]: Graceful shutdown completed")
} // end main
