// Package upload pushes files to the admin API with the start/put/complete
// multipart protocol.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"video-catalog/pkg/models"
)

// DefaultPartSize is used when the server does not hand out a part size.
const DefaultPartSize int64 = 8 * 1024 * 1024

// Upload phases
const (
	PhaseStart    = "start"
	PhasePut      = "put"
	PhaseComplete = "complete"
)

// UploadError reports the phase of a failed upload.
type UploadError struct {
	Key    string
	Phase  string
	Status int
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload %s: %s failed: %v", e.Key, e.Phase, e.Err)
	}
	return fmt.Sprintf("upload %s: %s failed with status %d", e.Key, e.Phase, e.Status)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ProgressFunc receives the share of parts done, from 0 to 100.
type ProgressFunc func(percent int)

// Client is an authenticated admin API client.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client. Token may be empty until Login is called.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Minute},
	}
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, user, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	status, err := c.postJSON(ctx, "/api/admin/login", map[string]string{"username": user, "password": password}, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", status)
	}
	c.Token = out.Token
	return out.Token, nil
}

// UploadFile uploads the file at path to key.
func (c *Client) UploadFile(ctx context.Context, path, key string, progress ProgressFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	return c.Upload(ctx, f, fi.Size(), key, progress)
}

// Upload sends size bytes of r to key: start, one put per part in order,
// then complete. The first failing phase ends the upload; nothing is
// retried and the session is left for the server to sweep.
func (c *Client) Upload(ctx context.Context, r io.ReaderAt, size int64, key string, progress ProgressFunc) error {
	var started models.MultipartStart
	status, err := c.postJSON(ctx, "/api/admin/multipart/start", map[string]string{"key": key}, &started)
	if err != nil || status != http.StatusOK {
		return &UploadError{Key: key, Phase: PhaseStart, Status: status, Err: err}
	}

	partSize := started.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	total := int((size + partSize - 1) / partSize)

	parts := make([]models.CompletedPart, 0, total)
	for n := 1; n <= total; n++ {
		offset := int64(n-1) * partSize
		length := min(partSize, size-offset)
		etag, status, err := c.putPart(ctx, key, started.UploadID, n, io.NewSectionReader(r, offset, length), length)
		if err != nil || status != http.StatusOK {
			return &UploadError{Key: key, Phase: PhasePut, Status: status, Err: err}
		}
		parts = append(parts, models.CompletedPart{PartNumber: n, ETag: strings.ReplaceAll(etag, `"`, "")})
		if progress != nil {
			progress(Percent(n, total))
		}
	}

	body := struct {
		Key      string                 `json:"key"`
		UploadID string                 `json:"uploadId"`
		Parts    []models.CompletedPart `json:"parts"`
	}{key, started.UploadID, parts}
	status, err = c.postJSON(ctx, "/api/admin/multipart/complete", body, nil)
	if err != nil || status != http.StatusOK {
		return &UploadError{Key: key, Phase: PhaseComplete, Status: status, Err: err}
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

// Percent returns round(done/total*100).
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

func (c *Client) putPart(ctx context.Context, key, uploadID string, n int, body io.Reader, length int64) (string, int, error) {
	q := url.Values{}
	q.Set("key", key)
	q.Set("uploadId", uploadID)
	q.Set("partNumber", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/admin/multipart/put?"+q.Encode(), body)
	if err != nil {
		return "", 0, err
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", "application/octet-stream")

	var out struct {
		ETag string `json:"etag"`
	}
	status, err := c.do(req, &out)
	return out.ETag, status, err
}

// List returns one level of the admin store below prefix.
func (c *Client) List(ctx context.Context, prefix string) (*models.Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/admin/list?prefix="+url.QueryEscape(prefix), nil)
	if err != nil {
		return nil, err
	}
	var listing models.Listing
	status, err := c.do(req, &listing)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list failed with status %d", status)
	}
	return &listing, nil
}

// Delete removes one object.
func (c *Client) Delete(ctx context.Context, key string) error {
	status, err := c.postJSON(ctx, "/api/admin/delete", map[string]string{"key": key}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("delete %s failed with status %d", key, status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) (int, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do sends req with the bearer token and decodes a 200 body into out.
func (c *Client) do(req *http.Request, out any) (int, error) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
