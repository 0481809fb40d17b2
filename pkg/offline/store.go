// Package offline caches outgoing HTTP responses in named, versioned stores
// and applies per-request caching policies through an http.RoundTripper.
package offline

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Entry is a stored response.
type Entry struct {
	Status int
	Header http.Header
	Body   []byte
	Stored time.Time
}

// Store holds responses keyed by request URL.
type Store struct {
	name    string
	entries *cache.Cache
}

func newStore(name string) *Store {
	return &Store{name: name, entries: cache.New(cache.NoExpiration, 0)}
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Len returns the number of stored responses.
func (s *Store) Len() int { return s.entries.ItemCount() }

func requestKey(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}

// Match returns a copy of the stored response for req.
func (s *Store) Match(req *http.Request) (*http.Response, bool) {
	v, ok := s.entries.Get(requestKey(req))
	if !ok {
		return nil, false
	}
	e := v.(*Entry)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}, true
}

// Put reads resp fully and stores it under req. resp.Body is replaced so the
// caller can still read it.
func (s *Store) Put(req *http.Request, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	s.entries.Set(requestKey(req), &Entry{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
		Stored: time.Now(),
	}, cache.NoExpiration)
	return nil
}

// Delete removes the response stored for req.
func (s *Store) Delete(req *http.Request) {
	s.entries.Delete(requestKey(req))
}

// Registry holds named stores.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Open returns the named store, creating it when missing.
func (r *Registry) Open(name string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[name]
	if !ok {
		s = newStore(name)
		r.stores[name] = s
	}
	return s
}

// Has reports whether a store exists.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stores[name]
	return ok
}

// Keys lists the store names in order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.stores))
	for k := range r.stores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Delete drops a store and everything in it.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[name]
	if ok {
		s.entries.Flush()
		delete(r.stores, name)
	}
	return ok
}
