package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-catalog/pkg/config"
	"video-catalog/pkg/errs"
	"video-catalog/pkg/logging"
)

func TestMemoCachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	m := NewMemo(time.Minute, func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		return "value-" + key, nil
	})

	_, ok := m.Peek("a")
	assert.False(t, ok)

	v, err := m.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "value-a", v)

	v, err = m.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "value-a", v)
	assert.Equal(t, int32(1), calls.Load())

	at, ok := m.CapturedAt("a")
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), at, time.Second)

	m.Flush()
	_, err = m.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoExpires(t *testing.T) {
	var calls atomic.Int32
	m := NewMemo(20*time.Millisecond, func(context.Context, string) (int, error) {
		return int(calls.Add(1)), nil
	})

	first, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	second, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	m := NewMemo(time.Minute, func(context.Context, string) (int, error) {
		calls.Add(1)
		return 0, boom
	})

	_, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	_, err = m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoZeroTTLDisablesCaching(t *testing.T) {
	var calls atomic.Int32
	m := NewMemo(0, func(context.Context, string) (int, error) {
		return int(calls.Add(1)), nil
	})
	_, _ = m.Get(context.Background(), "k")
	_, _ = m.Get(context.Background(), "k")
	assert.Equal(t, int32(2), calls.Load())
}

// countingSource counts listing calls on the wrapped source.
type countingSource struct {
	Source
	lists atomic.Int32
}

func (c *countingSource) ListChildren(ctx context.Context, dir Entry) ([]Entry, error) {
	c.lists.Add(1)
	return c.Source.ListChildren(ctx, dir)
}

func newTestService(t *testing.T, root string, mutate ...func(*config.Config)) (*Service, *countingSource) {
	t.Helper()
	cfg := config.Default()
	cfg.MediaRoot = root
	cfg.CacheTTL = time.Minute
	for _, fn := range mutate {
		fn(cfg)
	}
	src := fsSource(t, root)
	counting := &countingSource{Source: src}
	return NewService(cfg, counting, src.store, logging.Discard()), counting
}

func TestServiceRescanWithinTTLIsByteIdentical(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "StudioA/ShowX/Season 1/ep1.mp4", "StudioA/ShowX/Season 2/ep2.mp4")
	svc, src := newTestService(t, root)
	ctx := context.Background()

	first, err := svc.Catalog(ctx)
	require.NoError(t, err)
	listed := src.lists.Load()
	require.Positive(t, listed)

	// Changes inside the TTL window are not seen.
	touch(t, root, "StudioA/ShowX/Season 1/ep3.mp4")

	second, err := svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, listed, src.lists.Load())

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	svc.Refresh()
	third, err := svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, third.Videos, 3)
}

func TestServiceSlices(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"Reese_s/The Pepperonis/Season 1/ep1.mp4",
		"Reese_s/Another/ep.mp4",
		"Acme/Roadrunner/ep.mp4",
	)
	svc, _ := newTestService(t, root)
	ctx := context.Background()

	studios, err := svc.Studios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Reese_s"}, studios)

	shows, err := svc.Shows(ctx, "Reese_s")
	require.NoError(t, err)
	assert.Equal(t, []string{"Another", "The Pepperonis"}, shows)

	none, err := svc.Shows(ctx, "Nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	detail, err := svc.Show(ctx, "Reese_s/The Pepperonis")
	require.NoError(t, err)
	assert.Equal(t, "The Pepperonis", detail.Name)
	assert.Equal(t, "Reese_s", detail.Studio)

	_, err = svc.Show(ctx, "Reese_s/Missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

// failingSource fails every listing.
type failingSource struct{ Source }

func (failingSource) ListChildren(context.Context, Entry) ([]Entry, error) {
	return nil, errs.Retrieval("list", errors.New("offline"))
}

func TestServiceFallsBackToCatalogFile(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "A/B/e.mp4")
	good, _ := newTestService(t, root)
	cat, err := good.Catalog(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(cat)
	require.NoError(t, err)
	fallback := root + "/videos.json"
	require.NoError(t, os.WriteFile(fallback, data, 0o644))

	cfg := config.Default()
	cfg.CacheTTL = time.Minute
	cfg.FallbackCatalog = fallback
	svc := NewService(cfg, failingSource{fsSource(t, root)}, nil, logging.Discard())

	got, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	gotData, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(gotData))

	cfg.FallbackCatalog = ""
	bare := NewService(cfg, failingSource{fsSource(t, root)}, nil, logging.Discard())
	_, err = bare.Catalog(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsRetrieval(err))
}
