package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
)

const testBucket = "brazil-retail-results"

func newLocal(t *testing.T) (*Store, *LocalStore) {
	t.Helper()
	backend := NewLocalStore(t.TempDir())
	require.NoError(t, backend.EnsureBucket(context.Background(), testBucket))
	return New(backend, testBucket, config.DefaultPrefix), backend
}

// statFailure fails every stat with the configured error.
type statFailure struct {
	*LocalStore
	err error
}

func (f statFailure) StatObject(context.Context, string, string) (ObjectInfo, error) {
	return ObjectInfo{}, f.err
}

func TestKeyLayout(t *testing.T) {
	s, _ := newLocal(t)

	assert.Equal(t, "results/output_csvs/customers_all.csv", s.KeyFor("customers_all"))

	name, ok := s.NameFromKey("results/output_csvs/customers_all.csv")
	require.True(t, ok)
	assert.Equal(t, "customers_all", name)

	for _, key := range []string{
		"results/output_csvs/nested/x.csv",
		"results/other/x.csv",
		"results/output_csvs/x.parquet",
		"results/output_csvs/.csv",
	} {
		_, ok := s.NameFromKey(key)
		assert.False(t, ok, key)
	}

	bare := New(NewLocalStore(t.TempDir()), testBucket, "/")
	assert.Equal(t, "orders_all.csv", bare.KeyFor("orders_all"))
	name, ok = bare.NameFromKey("orders_all.csv")
	assert.True(t, ok)
	assert.Equal(t, "orders_all", name)
}

func TestPutGetRoundTripIsByteIdentical(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()

	payload := []byte("customer_id,state\nc1,SP\n\"c2, jr\",RJ\n\xef\xbb\xbfodd bytes\x00\n")
	src := filepath.Join(t.TempDir(), "customers_all.csv")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	key := s.KeyFor("customers_all")
	n, err := s.Put(ctx, src, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	dst := filepath.Join(t.TempDir(), "in", "customers_all.csv")
	n, err = s.Get(ctx, key, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestPutOverwrites(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.csv")
	key := s.KeyFor("a")

	require.NoError(t, os.WriteFile(src, []byte("x\n1\n"), 0o644))
	_, err := s.Put(ctx, src, key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src, []byte("x\n2\n"), 0o644))
	_, err = s.Put(ctx, src, key)
	require.NoError(t, err)

	dst := filepath.Join(dir, "out.csv")
	_, err = s.Get(ctx, key, dst)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "x\n2\n", string(got))
}

func TestExists(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()
	key := s.KeyFor("orders_all")

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	src := filepath.Join(t.TempDir(), "orders_all.csv")
	require.NoError(t, os.WriteFile(src, []byte("order_id\no1\n"), 0o644))
	_, err = s.Put(ctx, src, key)
	require.NoError(t, err)

	obj, err := s.Probe(ctx, key)
	require.NoError(t, err)
	assert.True(t, obj.Exists)
	assert.Equal(t, int64(12), obj.Size)
}

func TestExistsPropagatesTransientErrors(t *testing.T) {
	cause := wrapError(CodeEndpointUnreachable, true, errors.New("dial tcp: connection refused"))
	s := New(statFailure{LocalStore: NewLocalStore(t.TempDir()), err: cause}, testBucket, config.DefaultPrefix)

	ok, err := s.Exists(context.Background(), s.KeyFor("customers_all"))
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, IsTransient(err))
	assert.False(t, IsNotFound(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeEndpointUnreachable, se.CodeValue())
	assert.True(t, se.RetryableStatus())
}

func TestGetMissingKey(t *testing.T) {
	s, _ := newLocal(t)
	dst := filepath.Join(t.TempDir(), "missing.csv")

	_, err := s.Get(context.Background(), s.KeyFor("missing"), dst)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoFileExists(t, dst)
}

func TestList(t *testing.T) {
	s, backend := newLocal(t)
	ctx := context.Background()

	for _, key := range []string{
		"results/output_csvs/b.csv",
		"results/output_csvs/a.csv",
		"elsewhere/c.csv",
	} {
		require.NoError(t, backend.PutObject(ctx, testBucket, key, bytes.NewReader([]byte("x\n")), 2))
	}

	keys, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"results/output_csvs/a.csv", "results/output_csvs/b.csv"}, keys)
}

func TestOpenLocalEndpoint(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		EndpointURL: "file://" + t.TempDir(),
		Bucket:      testBucket,
		Prefix:      config.DefaultPrefix,
	}

	_, err := Open(ctx, cfg)
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeBucketNotFound, se.Code)
	assert.False(t, IsTransient(err))

	cfg.EnsureBucket = true
	cfg.RateLimit = 100
	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, s.limiter)

	ok, err := s.Exists(ctx, s.KeyFor("anything"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	backend := NewLocalStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, backend.EnsureBucket(ctx, testBucket))

	for _, key := range []string{"../x.csv", "/abs.csv", "a/../../x.csv", ""} {
		err := backend.PutObject(ctx, testBucket, key, bytes.NewReader(nil), 0)
		assert.Error(t, err, key)
	}
}
