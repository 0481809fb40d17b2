// Package metrics provides Prometheus instrumentation for the catalog server.
//
// Metrics registered here:
//
//	catalog_scans_total                 counter: scans by source and result
//	catalog_scan_duration_seconds       histogram: scan latency by source
//	catalog_cache_requests_total        counter: memo lookups by result (hit/miss)
//	catalog_http_requests_total         counter: HTTP requests by method/route/status
//	catalog_upload_parts_total          counter: multipart parts stored
//	catalog_upload_sessions_total       counter: multipart sessions by outcome
//	catalog_offline_requests_total      counter: offline worker lookups by policy and result
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scans counts catalog scans by source kind and result.
var Scans = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_scans_total",
	Help: "Catalog scans by source and result.",
}, []string{"source", "result"})

// ScanDuration tracks how long a full scan takes.
var ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "catalog_scan_duration_seconds",
	Help:    "Catalog scan latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"source"})

// CacheRequests counts memo lookups by result.
var CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_cache_requests_total",
	Help: "Catalog cache lookups by result.",
}, []string{"result"})

// HTTPRequests counts HTTP requests by method, route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// UploadParts counts stored multipart parts.
var UploadParts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "catalog_upload_parts_total",
	Help: "Multipart parts stored.",
})

// UploadSessions counts multipart sessions by outcome (started, completed, aborted, swept).
var UploadSessions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_upload_sessions_total",
	Help: "Multipart upload sessions by outcome.",
}, []string{"outcome"})

// OfflineRequests counts offline worker lookups by policy (image, core) and result (hit, miss).
var OfflineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_offline_requests_total",
	Help: "Offline cache lookups by policy and result.",
}, []string{"policy", "result"})

// ObserveScan records a finished scan.
func ObserveScan(source string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Scans.WithLabelValues(source, result).Inc()
	ScanDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// Middleware counts requests by their chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
