package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"video-catalog/pkg/auth"
	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
	"video-catalog/pkg/services"
	"video-catalog/pkg/storage"
)

const maxJSONBody = 1 << 20

func (s *Server) adminRoutes(r chi.Router) {
	r.Post("/login", s.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Require)

		r.Post("/multipart/start", s.StartUploadHandler)
		r.Post("/multipart/put", s.PutPartHandler)
		r.Post("/multipart/complete", s.CompleteUploadHandler)
		r.Post("/multipart/abort", s.AbortUploadHandler)

		r.Get("/list", s.ListHandler)
		r.Post("/delete", s.DeleteHandler)

		r.Post("/thumbnails", s.BulkGenerateThumbnailsHandler)
		r.Post("/thumbnails/one", s.GenerateThumbnailHandler)
		r.Post("/thumbnails/clear", s.BulkClearThumbnailsHandler)
		r.Post("/thumbnails/clear-one", s.ClearThumbnailHandler)
		r.Post("/artwork", s.ArtworkHandler)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// adminError maps upload and lookup errors to status codes.
func (s *Server) adminError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNoStore):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.serverError(w, op, err)
	}
}

// LoginHandler exchanges admin credentials for a bearer token.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := s.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.log.WithField("user", req.Username).Warn("admin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.serverError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// StartUploadHandler registers a multipart upload.
func (s *Server) StartUploadHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	started, err := s.multipart.Start(r.Context(), req.Key)
	if err != nil {
		s.adminError(w, "multipart start", err)
		return
	}
	s.log.WithFields(logrus.Fields{"key": req.Key, "upload": started.UploadID}).Info("upload started")
	writeJSON(w, http.StatusOK, started)
}

// PutPartHandler stores one part. The body may not exceed the part size.
func (s *Server) PutPartHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "partNumber must be a number")
		return
	}
	if r.ContentLength > s.multipart.PartSize() {
		writeError(w, http.StatusRequestEntityTooLarge, "part exceeds part size")
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.multipart.PartSize())
	etag, err := s.multipart.PutPart(r.Context(), q.Get("key"), q.Get("uploadId"), partNumber, body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "part exceeds part size")
		return
	}
	if err != nil {
		s.adminError(w, "multipart put", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"etag": etag})
}

// CompleteUploadHandler composes the uploaded parts and refreshes the catalog.
func (s *Server) CompleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key      string                 `json:"key"`
		UploadID string                 `json:"uploadId"`
		Parts    []models.CompletedPart `json:"parts"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.multipart.Complete(r.Context(), req.Key, req.UploadID, req.Parts); err != nil {
		s.adminError(w, "multipart complete", err)
		return
	}
	s.svc.Refresh()
	s.log.WithFields(logrus.Fields{"key": req.Key, "parts": len(req.Parts)}).Info("upload completed")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "key": storage.CleanKey(req.Key)})
}

// AbortUploadHandler drops an unfinished upload.
func (s *Server) AbortUploadHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key      string `json:"key"`
		UploadID string `json:"uploadId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.multipart.Abort(r.Context(), req.Key, req.UploadID); err != nil {
		s.adminError(w, "multipart abort", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListHandler lists one level of the store below ?prefix.
func (s *Server) ListHandler(w http.ResponseWriter, r *http.Request) {
	listing, err := s.svc.Store().List(r.Context(), storage.NormalizePrefix(r.URL.Query().Get("prefix")))
	if err != nil {
		s.adminError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// DeleteHandler removes one object and refreshes the catalog.
func (s *Server) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	key := storage.CleanKey(req.Key)
	if key == "" || storage.Hidden(key) {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	store := s.svc.Store()
	if _, err := store.Stat(r.Context(), key); err != nil {
		s.adminError(w, "delete", err)
		return
	}
	if err := store.Delete(r.Context(), key); err != nil {
		s.adminError(w, "delete", err)
		return
	}
	s.svc.Refresh()
	s.log.WithField("key", key).Info("object deleted")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GenerateThumbnailHandler extracts a thumbnail for one video
func (s *Server) GenerateThumbnailHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoKey string `json:"videoKey"`
		TimeMs   int    `json:"timeMs"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	s.log.WithFields(logrus.Fields{"video": req.VideoKey, "timeMs": req.TimeMs}).Info("generating thumbnail")
	if err := s.svc.GenerateThumbnail(r.Context(), req.VideoKey, req.TimeMs, nil); err != nil {
		s.adminError(w, "thumbnail", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Thumbnail generated successfully",
		"thumbnail": services.ThumbnailKey(req.VideoKey),
	})
}

// ClearThumbnailHandler removes the thumbnail of one video
func (s *Server) ClearThumbnailHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoKey string `json:"videoKey"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.ClearThumbnail(r.Context(), req.VideoKey); err != nil {
		s.adminError(w, "clear thumbnail", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Thumbnail cleared successfully"})
}

// BulkGenerateThumbnailsHandler extracts thumbnails for every video below a prefix
func (s *Server) BulkGenerateThumbnailsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prefix string `json:"prefix"`
		TimeMs int    `json:"timeMs"`
		Force  bool   `json:"force"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	s.log.WithFields(logrus.Fields{"prefix": req.Prefix, "timeMs": req.TimeMs, "force": req.Force}).Info("bulk generating thumbnails")
	res, err := s.svc.BulkGenerateThumbnails(r.Context(), req.Prefix, req.TimeMs, req.Force, nil)
	if err != nil {
		s.adminError(w, "bulk thumbnails", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Bulk thumbnail generation completed",
		"processed": res.Processed,
		"skipped":   res.Skipped,
		"errors":    res.Errors,
	})
}

// BulkClearThumbnailsHandler removes every episode thumbnail below a prefix
func (s *Server) BulkClearThumbnailsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prefix string `json:"prefix"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	deleted, err := s.svc.BulkClearThumbnails(r.Context(), req.Prefix)
	if err != nil {
		s.adminError(w, "bulk clear thumbnails", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Thumbnails cleared successfully",
		"deleted": deleted,
	})
}

// ArtworkHandler fetches a banner for a show from TMDb
func (s *Server) ArtworkHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowID string `json:"showId"`
		Title  string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ShowID == "" {
		writeError(w, http.StatusBadRequest, "showId is required")
		return
	}
	if err := s.svc.FetchShowArtwork(r.Context(), req.ShowID, req.Title, nil); err != nil {
		s.adminError(w, "artwork", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Artwork stored"})
}
