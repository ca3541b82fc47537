package web

import (
	"log"
	"time"

	"github.com/go-while/go-myapp/internal/config"
	"github.com/go-while/go-myapp/internal/database"
)

// StartSessionCleanup starts a background goroutine that clears expired
// sessions and list cache entries every interval until Shutdown
func (s *WebServer) StartSessionCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = config.DefaultCleanupInterval
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanupSessions()
				s.listCache.CleanupExpired()
			}
		}
	}()

	log.Printf("[WEB]: Started session cleanup background task (every %v)", interval)
}

func (s *WebServer) cleanupSessions() {
	// a flash older than a session lifetime belongs to an expired session
	if n := pruneFlash(time.Now().Add(-database.SessionTimeout)); n > 0 {
		log.Printf("[WEB]: Session cleanup dropped %d stale flash messages", n)
	}
	n, err := s.DB.CleanupExpiredSessions()
	if err != nil {
		log.Printf("[WEB]: Error cleaning up expired sessions: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[WEB]: Session cleanup removed %d expired sessions", n)
	}
}
