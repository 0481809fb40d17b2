package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/logging"
	"video-catalog/pkg/models"
	"video-catalog/pkg/offline"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/catalog", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.Catalog{Studios: []models.Studio{{ID: "Acme", Name: "Acme", Shows: []models.Show{}}}})
	})
	mux.HandleFunc("/api/studios", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["Acme"]`))
	})
	mux.HandleFunc("/api/shows", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("studio") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"missing studio"}`))
			return
		}
		_, _ = w.Write([]byte(`["Roadrunner"]`))
	})
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "Acme/Roadrunner" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"show not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"Acme/Roadrunner","name":"Roadrunner","studio":"Acme","seasons":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newAPI(t)
	c := New(srv.URL+"/", nil)
	ctx := context.Background()

	cat, err := c.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, cat.Studios, 1)
	assert.NotNil(t, cat.Videos)

	studios, err := c.Studios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme"}, studios)

	shows, err := c.Shows(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"Roadrunner"}, shows)

	_, err = c.Shows(ctx, "")
	require.Error(t, err)
	assert.True(t, errs.IsRetrieval(err))
	assert.Contains(t, err.Error(), "missing studio")

	detail, err := c.Show(ctx, "Acme/Roadrunner")
	require.NoError(t, err)
	assert.Equal(t, "Acme", detail.Studio)

	_, err = c.Show(ctx, "Acme/Nope")
	assert.True(t, errs.IsNotFound(err))
}

func TestClientThroughOfflineWorker(t *testing.T) {
	srv := newAPI(t)
	w, err := offline.New(offline.Config{
		Version: "v1",
		Origin:  srv.URL,
		Next:    srv.Client().Transport,
		Log:     logging.Discard(),
	}, nil)
	require.NoError(t, err)
	w.Activate()

	c := New(srv.URL, w)
	_, err = c.Catalog(context.Background())
	require.NoError(t, err)
	w.Wait()

	srv.Close()
	cat, err := c.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", cat.Studios[0].Name)
	w.Wait()
}
