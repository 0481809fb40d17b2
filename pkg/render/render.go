// Package render turns a catalog into page view models. Each page is a
// function of an explicit Context; nothing is read from package state.
package render

import (
	"fmt"
	"net/url"
	"sort"
	"sync"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
)

// Page identifies a site page.
type Page string

// Site pages
const (
	PageHome    Page = "home"
	PageBrowse  Page = "browse"
	PageLibrary Page = "library"
	PageShow    Page = "show"
	PageWatch   Page = "watch"
)

// Context is everything a render function may look at.
type Context struct {
	Catalog *models.Catalog
	Query   url.Values
	Resume  *ResumeStore
}

// NewContext returns a context that is safe to render with a nil catalog.
func NewContext(cat *models.Catalog, query url.Values, resume *ResumeStore) *Context {
	if cat == nil {
		cat = &models.Catalog{Studios: []models.Studio{}, Videos: []models.Episode{}}
	}
	if query == nil {
		query = url.Values{}
	}
	if resume == nil {
		resume = NewResumeStore(nil)
	}
	return &Context{Catalog: cat, Query: query, Resume: resume}
}

// View is a rendered page: a template name and the data to execute it with.
type View struct {
	Page     Page
	Template string
	Title    string
	Data     any
}

// RenderFunc builds the view of one page.
type RenderFunc func(ctx *Context) (*View, error)

// Registry maps pages to render functions.
type Registry struct {
	mu    sync.RWMutex
	pages map[Page]RenderFunc
}

// NewRegistry returns a registry with every site page registered.
func NewRegistry() *Registry {
	r := &Registry{pages: make(map[Page]RenderFunc)}
	r.Register(PageHome, Home)
	r.Register(PageBrowse, Browse)
	r.Register(PageLibrary, Library)
	r.Register(PageShow, ShowPage)
	r.Register(PageWatch, Watch)
	return r
}

// Register adds or replaces the render function of a page.
func (r *Registry) Register(page Page, fn RenderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[page] = fn
}

// Pages lists the registered pages in name order.
func (r *Registry) Pages() []Page {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pages := make([]Page, 0, len(r.pages))
	for p := range r.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	return pages
}

// Render runs the render function of page.
func (r *Registry) Render(page Page, ctx *Context) (*View, error) {
	r.mu.RLock()
	fn, ok := r.pages[page]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("page", string(page))
	}

	view, err := fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", page, err)
	}
	view.Page = page
	if view.Template == "" {
		view.Template = string(page)
	}
	return view, nil
}
