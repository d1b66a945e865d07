package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"ledgerlink/internal/interfaces/scheduler"
	"ledgerlink/internal/shared/config"
)

// Server is the API listener together with the background replay workers
// that must stop with it.
type Server struct {
	srv       *http.Server
	tls       config.TLSConfig
	scheduler *scheduler.Scheduler
}

// NewServer builds the API server. sched may be nil when replay is disabled.
func NewServer(handler http.Handler, cfg *config.Config, sched *scheduler.Scheduler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      45 * time.Second, // session creation may spend provider retries
			IdleTimeout:       60 * time.Second,
		},
		tls:       cfg.TLS,
		scheduler: sched,
	}
}

// Start serves in the background. The returned channel receives the error
// that stopped the listener, if any, and is closed afterwards.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)

		var err error
		if s.tls.Enabled {
			log.Printf("HTTPS server starting on %s", s.srv.Addr)
			err = s.srv.ListenAndServeTLS(s.tls.CertPath, s.tls.KeyPath)
		} else {
			log.Printf("HTTP server starting on %s", s.srv.Addr)
			err = s.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh
}

// Shutdown stops accepting webhooks and waits for in-flight ones before the
// replay workers drain.
func (s *Server) Shutdown(timeout time.Duration) {
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	if s.scheduler != nil {
		s.scheduler.Shutdown(timeout)
	}

	log.Println("Server stopped")
}
