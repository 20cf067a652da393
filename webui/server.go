package webui

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mwestman/ddbgrid/ddbmap"
	"github.com/mwestman/ddbgrid/localstore"
)

//go:embed static/*
var staticFiles embed.FS

// Server is the demo HTTP server.
type Server struct {
	cfg        *Config
	port       int
	mapping    *ddbmap.Mapping
	local      *localstore.Store // nil unless local mode
	httpServer *http.Server
}

// NewServer connects to the configured table (AWS or local badger) and
// prepares the server.
func NewServer(ctx context.Context, cfg *Config, port int) (*Server, error) {
	s := &Server{cfg: cfg, port: port}

	var client ddbmap.DynamoAPI
	if cfg.Local.Enabled {
		store, err := localstore.New(localstore.Options{
			Path:     cfg.Local.Path,
			InMemory: cfg.Local.Path == "",
		}, cfg.Definition())
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		s.local = store
		client = store
	} else {
		var err error
		client, err = ddbmap.NewClient(ctx, ddbmap.ClientConfig{
			Region:   cfg.AWS.Region,
			Endpoint: cfg.AWS.Endpoint,
			RoleARN:  cfg.AWS.RoleARN,
		})
		if err != nil {
			return nil, err
		}
	}

	mapping, err := ddbmap.New(ctx, client, cfg.Table.Name, ddbmap.WithLogger(log.Logger))
	if err != nil {
		if s.local != nil {
			s.local.Close()
		}
		return nil, err
	}
	s.mapping = mapping
	return s, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	mux := http.NewServeMux()

	apiHandler := NewAPIHandler(s.mapping, s.cfg.Table.Name, s.cfg.Table.PartitionKey.Name, log.Logger)
	apiHandler.RegisterRoutes(mux)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("creating static fs: %w", err)
	}
	mux.Handle("GET /", http.FileServer(http.FS(staticFS)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      corsMiddleware(loggingMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.httpServer.Shutdown(ctx)
		if s.local != nil {
			s.local.Close()
		}
		close(done)
	}()

	mode := "aws"
	if s.cfg.Local.Enabled {
		mode = "local"
		if s.cfg.Local.Path == "" {
			mode = "local (in-memory)"
		}
	}
	log.Info().
		Str("table", s.cfg.Table.Name).
		Str("keyColumn", s.cfg.Table.PartitionKey.Name).
		Str("mode", mode).
		Msgf("editable table demo on http://localhost:%d", s.port)

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	if s.local != nil {
		return s.local.Close()
	}
	return nil
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path != "/favicon.ico" {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request")
		}
	})
}

// corsMiddleware adds CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
