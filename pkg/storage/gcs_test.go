package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestGCSPutAbandonsFailedWrite(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"x","bucket":"b"}`))
	}))
	t.Cleanup(srv.Close)

	gcs, err := NewGCS(context.Background(), "b", "", option.WithEndpoint(srv.URL+"/storage/v1/"), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gcs.Close() })

	_, err = gcs.Put(context.Background(), "uploads/part-1", failingReader{}, "")
	require.Error(t, err)
	assert.Zero(t, requests.Load(), "a failed write must not commit an object")
}
