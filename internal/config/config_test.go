package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBucket, cfg.Store.Bucket)
	assert.Equal(t, DefaultPrefix, cfg.Store.Prefix)
	assert.Equal(t, DefaultOutputDir, cfg.Paths.Output)
	assert.Equal(t, DefaultInputDir, cfg.Paths.Input)
	assert.Equal(t, DefaultConcurrency, cfg.Sync.Concurrency)
	assert.Equal(t, "postgres", cfg.Source.Driver)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.yaml")
	yamlDoc := `
source:
  driver: sqlite
  database: /tmp/olist.db
store:
  endpointUrl: file:///tmp/store
  bucket: from-file
  prefix: /custom/prefix/
  rateLimit: 5
sync:
  concurrency: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("OLIST_STORE_BUCKET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Source.Driver)
	assert.Equal(t, "/tmp/olist.db", cfg.Source.ConnectionString())
	assert.Equal(t, "from-env", cfg.Store.Bucket)
	assert.Equal(t, "custom/prefix", cfg.Store.Prefix)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, 1, cfg.Store.RateBurst)
}

func TestLoad_StoreEnvOverrides(t *testing.T) {
	t.Setenv("OLIST_STORE_RATE_LIMIT", "20")
	t.Setenv("OLIST_STORE_RATE_BURST", "5")
	t.Setenv("OLIST_STORE_ENSURE_BUCKET", "true")
	t.Setenv("OLIST_STORE_USE_SSL", "1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Store.RateLimit)
	assert.Equal(t, 5, cfg.Store.RateBurst)
	assert.True(t, cfg.Store.EnsureBucket)
	assert.True(t, cfg.Store.UseSSL)
}

func TestLoad_StoreEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.yaml")
	yamlDoc := `
store:
  useSSL: true
  ensureBucket: true
  rateBurst: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("OLIST_STORE_USE_SSL", "false")
	t.Setenv("OLIST_STORE_ENSURE_BUCKET", "not-a-bool")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Store.UseSSL)
	assert.True(t, cfg.Store.EnsureBucket, "unparsable values keep the file setting")
	assert.Equal(t, 3, cfg.Store.RateBurst)
}

func TestLoad_InvalidConcurrency(t *testing.T) {
	t.Setenv("OLIST_SYNC_CONCURRENCY", "0")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.concurrency")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	src := SourceConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Database: "olist", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=olist sslmode=disable", src.ConnectionString())

	src.Driver = "pgx"
	assert.Equal(t, "postgres://u:p@db:5432/olist?sslmode=disable", src.ConnectionString())

	src.DSN = "explicit"
	assert.Equal(t, "explicit", src.ConnectionString())
}
