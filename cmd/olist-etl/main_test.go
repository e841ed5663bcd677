package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/source/sourcetest"
)

var testQueries = map[string]string{
	"revenue/total.sql": "SELECT SUM(price) AS total_revenue FROM order_items",
	"customers/all.sql": "SELECT customer_id, customer_state FROM customers ORDER BY customer_id",
}

type workspace struct {
	configPath string
	cfg        *config.Config
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()

	queries := filepath.Join(dir, "queries")
	for rel, text := range testQueries {
		path := filepath.Join(queries, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}

	c := config.Default()
	c.Source = sourcetest.Config(t)
	c.Store.EndpointURL = "file://"
	c.Store.RootPath = filepath.Join(dir, "bucket-root")
	c.Store.Bucket = "olist-test"
	c.Store.EnsureBucket = true
	c.Paths.Queries = queries
	c.Paths.Output = filepath.Join(dir, "out")
	c.Paths.Input = filepath.Join(dir, "in")
	c.Log.Level = "error"

	data, err := yaml.Marshal(c)
	require.NoError(t, err)
	path := filepath.Join(dir, "olist.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return &workspace{configPath: path, cfg: c}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func (w *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--config", w.configPath))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExtract_WritesEveryQuery(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "extract")
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted 2 artifact(s)")
	assert.FileExists(t, filepath.Join(w.cfg.Paths.Output, "revenue_total.csv"))
	assert.FileExists(t, filepath.Join(w.cfg.Paths.Output, "customers_all.csv"))
}

func TestExtract_NewSkipsUploadedArtifacts(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "extract")
	require.NoError(t, err)
	_, err = w.run(t, "sync", "upload")
	require.NoError(t, err)

	out, err := w.run(t, "extract", "--new")
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted 0 artifact(s)")
}

func TestSync_UploadThenDownloadNew(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "extract")
	require.NoError(t, err)

	out, err := w.run(t, "sync", "upload")
	require.NoError(t, err)
	assert.Contains(t, out, "upload (full): 2 transferred, 0 skipped")

	out, err = w.run(t, "sync", "download", "--new")
	require.NoError(t, err)
	assert.Contains(t, out, "download (incremental): 2 transferred, 0 skipped")
	assert.FileExists(t, filepath.Join(w.cfg.Paths.Input, "revenue_total.csv"))

	out, err = w.run(t, "sync", "download", "--new")
	require.NoError(t, err)
	assert.Contains(t, out, "download (incremental): 0 transferred, 2 skipped")
}

func TestSync_RejectsUnknownDirection(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "sync", "sideways")
	assert.Error(t, err)
}

func TestRun_ValidatesDownloadedArtifacts(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "run", "--validate")
	require.NoError(t, err)
	assert.Contains(t, out, "extract: 2 new artifact(s), 0 failed")
	assert.Contains(t, out, "revenue_total")
	assert.Contains(t, out, "customers_all")
}

func TestValidate_FailsOnDrift(t *testing.T) {
	w := newWorkspace(t)

	require.NoError(t, os.MkdirAll(w.cfg.Paths.Input, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(w.cfg.Paths.Input, "revenue_total.csv"),
		[]byte("total_revenue\n999.99\n"), 0o644))

	out, err := w.run(t, "validate", "--format", "markdown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed: 1 of 1 artifact(s)")
	assert.Contains(t, out, "revenue_total")
}

func TestValidate_RejectsUnknownFormat(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "validate", "--format", "html")
	assert.Error(t, err)
}

func TestExdKey_RoundTripsOneArtifact(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "exd-key", "revenue_total")
	require.NoError(t, err)
	assert.Contains(t, out, "revenue_total: extracted")
	assert.FileExists(t, filepath.Join(w.cfg.Paths.Input, "revenue_total.csv"))
	assert.NoFileExists(t, filepath.Join(w.cfg.Paths.Input, "customers_all.csv"))
}

func TestConfig_MissingFile(t *testing.T) {
	w := &workspace{configPath: filepath.Join(t.TempDir(), "absent.yaml")}

	_, err := w.run(t, "extract")
	assert.Error(t, err)
}
