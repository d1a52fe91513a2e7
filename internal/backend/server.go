// Package backend serves the config backend endpoints over a local point store. It exists so the import workflow
// can run end to end without the production service.
//
// Routes:
//
//	POST /api/toml_query/structure            -> structure tree and decoded document
//	POST /api/point_info/check_status         -> status per measurement name
//	POST /api/point_info/wizard_import        -> create and merge points in one transaction
//	POST /api/config_files                    -> store a config file
//	GET  /api/config_files/{id}               -> fetch a config file
//	POST /api/components/create_from_snippets -> save snippets as components
package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/twinmind/telegraf-importer/internal/logging"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/pointstore"
)

const maxBodyBytes = 8 << 20

// Store is the persistence the handlers need.
type Store interface {
	Lookup(ctx context.Context, names []string) (map[string]pointstore.Point, error)
	Import(ctx context.Context, configID int64, batch string, creates []pointstore.NewPoint, merges []pointstore.MergePoint) (pointstore.ImportResult, error)
	AddConfigFile(ctx context.Context, fileName, content string) (int64, error)
	GetConfigFile(ctx context.Context, id int64) (pointstore.ConfigFile, error)
	SaveComponents(ctx context.Context, components []pointstore.Component) ([]pointstore.Component, []string, error)
}

// Config controls server startup.
type Config struct {
	Addr string
}

// Server routes backend requests to the store.
type Server struct {
	cfg    Config
	store  Store
	logger *slog.Logger
	mux    *http.ServeMux
	newID  func() string
}

// NewServer constructs a Server with its routes registered.
func NewServer(cfg Config, store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		mux:    http.NewServeMux(),
		newID:  uuid.NewString,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST "+platform.PathStructure, s.handleStructure)
	s.mux.HandleFunc("POST "+platform.PathCheckStatus, s.handleCheckStatus)
	s.mux.HandleFunc("POST "+platform.PathWizardImport, s.handleWizardImport)
	s.mux.HandleFunc("POST "+platform.PathConfigFiles, s.handleUploadConfigFile)
	s.mux.HandleFunc("GET "+platform.PathConfigFiles+"/{id}", s.handleGetConfigFile)
	s.mux.HandleFunc("POST "+platform.PathCreateComponents, s.handleCreateComponents)
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("backend listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("backend stopped")
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
