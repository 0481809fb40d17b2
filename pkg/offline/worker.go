package offline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/logging"
	"video-catalog/pkg/metrics"
)

const revalidateTimeout = 30 * time.Second

// Matcher selects requests.
type Matcher func(req *http.Request) bool

// Config configures a Worker.
type Config struct {
	// Version suffixes the store names. Stores of other versions are
	// deleted on Activate.
	Version string
	// Origin is the base URL treated as same-origin, e.g. http://localhost:8080.
	Origin string
	// Precache lists the assets fetched on Install, relative to Origin.
	Precache []string
	// Denylist requests always go to the network. Defaults to DefaultDenylist.
	Denylist []Matcher
	// Next performs network requests. Defaults to http.DefaultTransport.
	Next http.RoundTripper
	Log  *logrus.Entry
}

// DefaultPrecache is the asset list installed by default.
var DefaultPrecache = []string{
	"/", "/browse", "/library", "/show", "/watch",
	"/static/css/site.css", "/static/js/site.js",
}

// DefaultDenylist keeps Drive JSON listings and the admin API out of the caches.
var DefaultDenylist = []Matcher{IsDriveJSON, IsAdminAPI}

// IsDriveJSON matches Drive files.list calls but not media or thumbnail fetches.
func IsDriveJSON(req *http.Request) bool {
	u := req.URL
	return strings.HasSuffix(u.Hostname(), "googleapis.com") &&
		strings.HasPrefix(u.Path, "/drive/v3/files") &&
		!strings.Contains(u.RawQuery, "alt=media") &&
		!strings.Contains(strings.ToLower(u.String()), "thumbnail")
}

// IsAdminAPI matches admin API calls.
func IsAdminAPI(req *http.Request) bool {
	return strings.HasPrefix(req.URL.Path, "/api/admin")
}

// IsImage matches image requests by fetch destination, extension, or a
// thumbnail URL.
func IsImage(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Dest") == "image" {
		return true
	}
	u := strings.ToLower(req.URL.String())
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp"} {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return strings.Contains(u, "thumbnail")
}

// Worker is an http.RoundTripper that answers from the offline stores once
// activated. Before activation every request goes to the network.
type Worker struct {
	cfg      Config
	origin   *url.URL
	registry *Registry
	next     http.RoundTripper
	log      *logrus.Entry
	active   atomic.Bool
	wg       sync.WaitGroup
}

// New creates a worker over registry.
func New(cfg Config, registry *Registry) (*Worker, error) {
	if cfg.Version == "" {
		return nil, errs.Missing("OFFLINE_VERSION")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Host == "" {
		return nil, &errs.ConfigError{Setting: "CATALOG_API_URL", Err: fmt.Errorf("invalid origin %q", cfg.Origin)}
	}
	if cfg.Denylist == nil {
		cfg.Denylist = DefaultDenylist
	}
	next := cfg.Next
	if next == nil {
		next = http.DefaultTransport
	}
	log := cfg.Log
	if log == nil {
		log = logging.New("offline")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Worker{cfg: cfg, origin: origin, registry: registry, next: next, log: log}, nil
}

// CoreStore is the name of the store for same-origin responses.
func (w *Worker) CoreStore() string { return "core-" + w.cfg.Version }

// ImageStore is the name of the store for images.
func (w *Worker) ImageStore() string { return "img-" + w.cfg.Version }

// Registry returns the stores of the worker.
func (w *Worker) Registry() *Registry { return w.registry }

// Install fetches every precache asset into the core store. Any failed or
// non-ok asset fails the install.
func (w *Worker) Install(ctx context.Context) error {
	core := w.registry.Open(w.CoreStore())
	for _, asset := range w.cfg.Precache {
		ref, err := url.Parse(asset)
		if err != nil {
			return &errs.ConfigError{Setting: "precache", Err: err}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.origin.ResolveReference(ref).String(), nil)
		if err != nil {
			return err
		}
		resp, err := w.next.RoundTrip(req)
		if err != nil {
			return errs.Retrieval("precache "+asset, err)
		}
		if !ok(resp) {
			resp.Body.Close()
			return errs.Retrieval("precache "+asset, fmt.Errorf("status %d", resp.StatusCode))
		}
		if err := core.Put(req, resp); err != nil {
			return errs.Retrieval("precache "+asset, err)
		}
	}
	w.log.WithField("assets", len(w.cfg.Precache)).Info("offline cache installed")
	return nil
}

// Activate deletes every store that is not of this version and starts
// answering requests.
func (w *Worker) Activate() {
	keep := map[string]bool{w.CoreStore(): true, w.ImageStore(): true}
	for _, name := range w.registry.Keys() {
		if !keep[name] {
			w.registry.Delete(name)
			w.log.WithField("store", name).Info("deleted stale offline store")
		}
	}
	w.active.Store(true)
}

// Wait blocks until background revalidations finish.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// RoundTrip implements http.RoundTripper.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if !w.active.Load() || req.Method != http.MethodGet {
		return w.next.RoundTrip(req)
	}
	for _, deny := range w.cfg.Denylist {
		if deny(req) {
			return w.next.RoundTrip(req)
		}
	}
	if IsImage(req) {
		return w.cacheFirst(req)
	}
	if w.sameOrigin(req.URL) {
		return w.staleWhileRevalidate(req)
	}
	return w.next.RoundTrip(req)
}

func (w *Worker) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, w.origin.Scheme) && strings.EqualFold(u.Host, w.origin.Host)
}

// cacheFirst answers images from the image store and refreshes them in the
// background. Misses are fetched and stored when ok.
func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	store := w.registry.Open(w.ImageStore())
	if cached, hit := store.Match(req); hit {
		metrics.OfflineRequests.WithLabelValues("image", "hit").Inc()
		w.revalidate(store, req)
		return cached, nil
	}
	metrics.OfflineRequests.WithLabelValues("image", "miss").Inc()

	resp, err := w.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if ok(resp) {
		if err := store.Put(req, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// staleWhileRevalidate answers same-origin requests from the core store and
// refreshes them in the background. A miss waits for the network.
func (w *Worker) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	store := w.registry.Open(w.CoreStore())
	if cached, hit := store.Match(req); hit {
		metrics.OfflineRequests.WithLabelValues("core", "hit").Inc()
		w.revalidate(store, req)
		return cached, nil
	}
	metrics.OfflineRequests.WithLabelValues("core", "miss").Inc()

	resp, err := w.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if ok(resp) {
		if err := store.Put(req, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// revalidate refetches req in a tracked goroutine and replaces the stored
// response when the fetch succeeds.
func (w *Worker) revalidate(store *Store, req *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	fresh := req.Clone(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()
		resp, err := w.next.RoundTrip(fresh)
		if err != nil {
			w.log.WithError(err).WithField("url", fresh.URL.String()).Debug("revalidate failed")
			return
		}
		if !ok(resp) {
			resp.Body.Close()
			return
		}
		if err := store.Put(fresh, resp); err != nil {
			w.log.WithError(err).Debug("revalidate store failed")
		}
	}()
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
