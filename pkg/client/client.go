// Package client talks to a remote catalog API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
)

// Client reads the catalog API of a running server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for baseURL. A nil transport uses the default one.
func New(baseURL string, transport http.RoundTripper) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Transport: transport, Timeout: 60 * time.Second},
	}
}

// Catalog fetches the whole catalog.
func (c *Client) Catalog(ctx context.Context) (*models.Catalog, error) {
	var cat models.Catalog
	if err := c.get(ctx, "/api/catalog", nil, &cat); err != nil {
		return nil, err
	}
	if cat.Studios == nil {
		cat.Studios = []models.Studio{}
	}
	if cat.Videos == nil {
		cat.Videos = []models.Episode{}
	}
	return &cat, nil
}

// Studios fetches the studio names.
func (c *Client) Studios(ctx context.Context) ([]string, error) {
	var names []string
	err := c.get(ctx, "/api/studios", nil, &names)
	return names, err
}

// Shows fetches the show names of a studio.
func (c *Client) Shows(ctx context.Context, studio string) ([]string, error) {
	var names []string
	err := c.get(ctx, "/api/shows", url.Values{"studio": {studio}}, &names)
	return names, err
}

// Show fetches one show by id.
func (c *Client) Show(ctx context.Context, id string) (*models.ShowDetail, error) {
	var detail models.ShowDetail
	if err := c.get(ctx, "/api/show", url.Values{"id": {id}}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errs.Retrieval("GET "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && query.Has("id") {
		return errs.NotFound("show", query.Get("id"))
	}
	if resp.StatusCode != http.StatusOK {
		return errs.Retrieval("GET "+path, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(resp.Body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Retrieval("GET "+path, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func errorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
