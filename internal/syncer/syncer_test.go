package syncer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/store"
)

const bucket = "brazil-retail-results"

type env struct {
	remote  *store.Store
	backend *store.LocalStore
	out     string
	in      string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	backend := store.NewLocalStore(t.TempDir())
	require.NoError(t, backend.EnsureBucket(context.Background(), bucket))
	return &env{
		remote:  store.New(backend, bucket, config.DefaultPrefix),
		backend: backend,
		out:     t.TempDir(),
		in:      t.TempDir(),
	}
}

func (e *env) stage(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(e.out, n+".csv"), []byte("id\n"+n+"\n"), 0o644))
	}
}

func (e *env) remoteKeys(t *testing.T) []string {
	t.Helper()
	keys, err := e.remote.List(context.Background(), "")
	require.NoError(t, err)
	return keys
}

// failingProbe wraps a real store and fails every existence probe.
type failingProbe struct {
	*store.Store
	err  error
	puts atomic.Int32
}

func (f *failingProbe) Probe(context.Context, string) (store.RemoteObject, error) {
	return store.RemoteObject{}, f.err
}

func (f *failingProbe) Put(ctx context.Context, localPath, key string) (int64, error) {
	f.puts.Add(1)
	return f.Store.Put(ctx, localPath, key)
}

func TestUploadNewIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.stage(t, "customers_all", "orders_all")
	c := New(e.remote, e.out, e.in)
	ctx := context.Background()

	first, err := c.UploadNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers_all", "orders_all"}, first.Transferred)
	assert.Empty(t, first.Skipped)
	assert.Positive(t, first.Bytes)
	assert.NotEmpty(t, first.ID)

	second, err := c.UploadNew(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Transferred)
	assert.Equal(t, []string{"customers_all", "orders_all"}, second.Skipped)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestUploadNewOnlyAddsNewArtifacts(t *testing.T) {
	e := newEnv(t)
	e.stage(t, "a", "b")
	c := New(e.remote, e.out, e.in)
	ctx := context.Background()

	_, err := c.UploadNew(ctx)
	require.NoError(t, err)
	before := e.remoteKeys(t)

	e.stage(t, "c")
	res, err := c.UploadNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, res.Transferred)

	after := e.remoteKeys(t)
	assert.Subset(t, after, before)
	assert.Len(t, after, 3)
}

func TestUploadNewPropagatesTransientProbeErrors(t *testing.T) {
	e := newEnv(t)
	e.stage(t, "customers_all")
	probeErr := &store.Error{Code: store.CodeTimeout, Retryable: true, Err: context.DeadlineExceeded}
	remote := &failingProbe{Store: e.remote, err: probeErr}
	c := New(remote, e.out, e.in)

	_, err := c.UploadNew(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsTransient(err))
	assert.Zero(t, remote.puts.Load())
	assert.Empty(t, e.remoteKeys(t))
}

func TestUploadAllOverwrites(t *testing.T) {
	e := newEnv(t)
	e.stage(t, "a")
	c := New(e.remote, e.out, e.in)
	ctx := context.Background()

	_, err := c.UploadAll(ctx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(e.out, "a.csv"), []byte("id\nchanged\n"), 0o644))

	res, err := c.UploadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Transferred)

	dst := filepath.Join(t.TempDir(), "a.csv")
	_, err = e.remote.Get(ctx, e.remote.KeyFor("a"), dst)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "id\nchanged\n", string(got))
}

func TestFullSyncOfEmptySet(t *testing.T) {
	e := newEnv(t)
	c := New(e.remote, filepath.Join(e.out, "missing"), e.in)
	ctx := context.Background()

	up, err := c.UploadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, up.Transferred)
	assert.Zero(t, up.Bytes)

	down, err := c.DownloadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, down.Transferred)
}

func TestDownloadNewSkipsLocalArtifacts(t *testing.T) {
	e := newEnv(t)
	e.stage(t, "a", "b")
	c := New(e.remote, e.out, e.in)
	ctx := context.Background()

	_, err := c.UploadAll(ctx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(e.in, "a.csv"), []byte("local\n"), 0o644))

	res, err := c.DownloadNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Transferred)
	assert.Equal(t, []string{"a"}, res.Skipped)

	local, err := os.ReadFile(filepath.Join(e.in, "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "local\n", string(local))
	assert.FileExists(t, filepath.Join(e.in, "b.csv"))

	again, err := c.DownloadNew(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Transferred)
}

func TestDownloadIgnoresForeignKeys(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := "results/output_csvs/nested/x.csv"
	require.NoError(t, e.backend.PutObject(ctx, bucket, key, bytes.NewReader(nil), 0))

	res, err := New(e.remote, e.out, e.in).DownloadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Transferred)
}

func TestFilter(t *testing.T) {
	e := newEnv(t)
	e.stage(t, "a", "b", "c")
	c := New(e.remote, e.out, e.in, WithFilter("b"), WithConcurrency(2))

	res, err := c.UploadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Transferred)
	assert.Equal(t, []string{"results/output_csvs/b.csv"}, e.remoteKeys(t))
}

func TestParallelUpload(t *testing.T) {
	e := newEnv(t)
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	e.stage(t, names...)

	res, err := New(e.remote, e.out, e.in, WithConcurrency(8)).UploadNew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, names, res.Transferred)
	assert.Len(t, e.remoteKeys(t), len(names))
}

func TestKeyLocksSerializeSameKey(t *testing.T) {
	locks := newKeyLocks()
	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("results/output_csvs/a.csv")
			defer unlock()
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestFullPassDoesNotProbe(t *testing.T) {
	e := newEnv(t)
	e.stage(t, "a")
	remote := &failingProbe{Store: e.remote, err: errors.New("unused")}
	c := New(remote, e.out, e.in)

	res, err := c.UploadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), remote.puts.Load())
	assert.Equal(t, []string{"a"}, res.Transferred)
}
