package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"video-catalog/pkg/auth"
	"video-catalog/pkg/config"
	"video-catalog/pkg/errs"
	"video-catalog/pkg/logging"
	"video-catalog/pkg/metrics"
	"video-catalog/pkg/models"
	"video-catalog/pkg/render"
	"video-catalog/pkg/services"
	"video-catalog/pkg/storage"
)

// CatalogLoader supplies the catalog the pages are rendered from.
type CatalogLoader interface {
	Catalog(ctx context.Context) (*models.Catalog, error)
}

// Server holds the dependencies of every HTTP handler.
type Server struct {
	cfg       *config.Config
	svc       *services.Service
	pages     *render.Registry
	loader    CatalogLoader
	templates Templates
	auth      *auth.Authenticator
	multipart *storage.Multipart
	log       *logrus.Entry
}

// Option customizes a Server.
type Option func(*Server)

// WithCatalogLoader renders pages from loader instead of the local service.
func WithCatalogLoader(loader CatalogLoader) Option {
	return func(s *Server) { s.loader = loader }
}

// WithTemplates replaces the pug templates.
func WithTemplates(t Templates) Option {
	return func(s *Server) { s.templates = t }
}

// NewServer wires the handlers to svc. Admin routes are only enabled when
// the configuration allows logins and the source has an object store.
func NewServer(cfg *config.Config, svc *services.Service, log *logrus.Entry, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		pages:  render.NewRegistry(),
		loader: svc,
		log:    log,
	}
	if cfg.AdminEnabled() && svc.Store() != nil {
		s.auth = auth.New(cfg.SecretKey, cfg.AdminUser, cfg.AdminPasswordHash)
		s.multipart = storage.NewMultipart(svc.Store(), cfg.PartSize)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.templates == nil {
		s.templates = NewPugTemplates(cfg.ViewsDir)
	}
	return s
}

// Multipart returns the upload coordinator, or nil when admin is disabled.
func (s *Server) Multipart() *storage.Multipart {
	return s.multipart
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Requests(s.log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/health", s.HealthHandler)
	r.Handle("/metrics", metrics.Handler())

	if fs, ok := s.svc.Store().(*storage.FS); ok {
		r.Handle("/media/*", s.MediaHandler(fs.Root()))
	}
	if s.cfg.PublicDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.PublicDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.CatalogHandler)
		r.Get("/studios", s.StudiosHandler)
		r.Get("/shows", s.ShowsHandler)
		r.Get("/show", s.ShowHandler)

		if s.auth != nil {
			r.Route("/admin", s.adminRoutes)
		}
	})

	r.Get("/", s.PageHandler(render.PageHome))
	r.Get("/browse", s.PageHandler(render.PageBrowse))
	r.Get("/library", s.PageHandler(render.PageLibrary))
	r.Get("/show", s.PageHandler(render.PageShow))
	r.Get("/watch", s.PageHandler(render.PageWatch))
	r.Post("/watch/progress", s.ProgressHandler)

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MediaHandler serves files below root with long-lived cache headers.
func (s *Server) MediaHandler(root string) http.Handler {
	files := http.StripPrefix("/media/", http.FileServer(http.Dir(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, seg := range strings.Split(r.URL.Path, "/") {
			if storage.Hidden(seg) {
				http.NotFound(w, r)
				return
			}
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		files.ServeHTTP(w, r)
	})
}

// CatalogHandler returns the whole catalog.
func (s *Server) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	cat, err := s.svc.Catalog(r.Context())
	if err != nil {
		s.serverError(w, "catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// StudiosHandler returns the studio names.
func (s *Server) StudiosHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Studios(r.Context())
	if err != nil {
		s.serverError(w, "studios", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// ShowsHandler returns the show names of ?studio.
func (s *Server) ShowsHandler(w http.ResponseWriter, r *http.Request) {
	studio := r.URL.Query().Get("studio")
	if studio == "" {
		writeError(w, http.StatusBadRequest, "studio query parameter is required")
		return
	}
	names, err := s.svc.Shows(r.Context(), studio)
	if err != nil {
		s.serverError(w, "shows", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// ShowHandler returns one show by ?id.
func (s *Server) ShowHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}
	detail, err := s.svc.Show(r.Context(), id)
	if errs.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.serverError(w, "show", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// serverError logs err and answers 500 with its message.
func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	entry := s.log.WithError(err).WithField("op", op)
	var ce *errs.ConfigError
	if errors.As(err, &ce) {
		entry = entry.WithField("setting", ce.Setting)
	}
	entry.Error("request failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// NewHTTPServer wraps handler with the timeouts used by serve.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
