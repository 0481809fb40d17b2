package handlers

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/eknkc/pug"
	"github.com/eknkc/pug/compiler"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
	"video-catalog/pkg/render"
)

// Templates executes a named view.
type Templates interface {
	Execute(w io.Writer, name string, view *render.View) error
}

// PugTemplates compiles <dir>/<name>.pug on first use and keeps the result.
// Paths inside templates resolve against dir.
type PugTemplates struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewPugTemplates loads templates from dir.
func NewPugTemplates(dir string) *PugTemplates {
	return &PugTemplates{dir: dir, cache: make(map[string]*template.Template)}
}

// Execute renders the template name with view.
func (t *PugTemplates) Execute(w io.Writer, name string, view *render.View) error {
	t.mu.Lock()
	tpl, ok := t.cache[name]
	if !ok {
		var err error
		tpl, err = pug.CompileFile(name+".pug", pug.Options{Dir: compiler.FsDir(t.dir)})
		if err != nil {
			t.mu.Unlock()
			return err
		}
		t.cache[name] = tpl
	}
	t.mu.Unlock()
	return tpl.Execute(w, view)
}

// PageHandler renders a site page. A catalog that cannot be loaded is
// logged and the page is rendered empty.
func (s *Server) PageHandler(page render.Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("page", page)

		cat, err := s.loader.Catalog(r.Context())
		if err != nil {
			log.WithError(err).Warn("catalog unavailable, rendering empty page")
			cat = nil
		}

		ctx := render.NewContext(cat, r.URL.Query(), render.ResumeFromRequest(r))
		view, err := s.pages.Render(page, ctx)
		if errs.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.WithError(err).Error("render failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		if err := s.templates.Execute(&buf, view.Template, view); err != nil {
			log.WithError(err).Error("template execution failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}

type progressRequest struct {
	Show    string  `json:"show"`
	Episode string  `json:"episode"`
	Seconds float64 `json:"seconds"`
}

// ProgressHandler stores the continue-watching position of a show in a cookie.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Show == "" || req.Episode == "" {
		writeError(w, http.StatusBadRequest, "show and episode are required")
		return
	}

	cat, err := s.loader.Catalog(r.Context())
	if err == nil && !episodeOfShow(cat, req.Show, req.Episode) {
		writeError(w, http.StatusNotFound, "episode not found in show")
		return
	}

	store := render.ResumeFromRequest(r)
	store.Set(render.Position{
		Show:    req.Show,
		Episode: req.Episode,
		Seconds: req.Seconds,
		Updated: time.Now().UTC(),
	})
	store.Save(w)
	w.WriteHeader(http.StatusNoContent)
}

func episodeOfShow(cat *models.Catalog, showID, episodeID string) bool {
	for _, studio := range cat.Studios {
		for _, show := range studio.Shows {
			if show.ID != showID {
				continue
			}
			for _, season := range show.Seasons {
				for _, ep := range season.Episodes {
					if ep.ID == episodeID {
						return true
					}
				}
			}
		}
	}
	return false
}
