// Package pipeline chains extraction and synchronization into the
// end-to-end flows the CLI exposes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/catalog"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/extract"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/syncer"
)

// Remote is the part of the store adapter the pipeline talks to directly.
type Remote interface {
	KeyFor(name string) string
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, localPath, key string) (int64, error)
	Get(ctx context.Context, key, localPath string) (int64, error)
}

// Pipeline wires the catalog, executor, store and sync coordinator together.
type Pipeline struct {
	catalog  *catalog.Catalog
	executor *extract.Executor
	remote   Remote
	sync     *syncer.Coordinator
	inDir    string
	logger   *slog.Logger
}

// New creates a Pipeline. Downloads made by ExtractKey land in inDir.
func New(cat *catalog.Catalog, exec *extract.Executor, remote Remote, sync *syncer.Coordinator, inDir string) *Pipeline {
	return &Pipeline{
		catalog:  cat,
		executor: exec,
		remote:   remote,
		sync:     sync,
		inDir:    inDir,
		logger:   logging.New("pipeline"),
	}
}

// ExtractNew runs only the queries whose artifact is not yet in the remote
// store. A failed existence probe aborts before any query runs.
func (p *Pipeline) ExtractNew(ctx context.Context) (*extract.BatchResult, error) {
	var pending []string
	for _, name := range p.catalog.Names() {
		ok, err := p.remote.Exists(ctx, p.remote.KeyFor(name))
		if err != nil {
			return nil, err
		}
		if ok {
			p.logger.Debug("artifact already stored", "artifact", name)
			continue
		}
		pending = append(pending, name)
	}
	p.logger.Info("extracting new artifacts", "pending", len(pending), "catalog", p.catalog.Len())
	return p.executor.RunNames(ctx, p.catalog, pending), nil
}

// ExtractKey runs one query, uploads the artifact and downloads it back
// into the input directory.
func (p *Pipeline) ExtractKey(ctx context.Context, name string) error {
	q, ok := p.catalog.Get(name)
	if !ok {
		return fmt.Errorf("query %q is not in the catalog", name)
	}
	a, err := p.executor.Run(ctx, q.Name, q.Text)
	if err != nil {
		return err
	}
	key := p.remote.KeyFor(name)
	if _, err := p.remote.Put(ctx, a.Path, key); err != nil {
		return err
	}
	if _, err := p.remote.Get(ctx, key, artifact.PathFor(p.inDir, name)); err != nil {
		return err
	}
	return nil
}

// Outcome records each stage of ExtractSyncNew.
type Outcome struct {
	Extract  *extract.BatchResult
	Upload   *syncer.Result
	Download *syncer.Result
}

// ExtractSyncNew extracts new artifacts, uploads the new ones and downloads
// what the input directory lacks. Query failures do not stop the sync
// stages; they are returned together at the end.
func (p *Pipeline) ExtractSyncNew(ctx context.Context) (*Outcome, error) {
	out := &Outcome{}
	batch, err := p.ExtractNew(ctx)
	if err != nil {
		return out, err
	}
	out.Extract = batch

	if out.Upload, err = p.sync.UploadNew(ctx); err != nil {
		return out, err
	}
	if out.Download, err = p.sync.DownloadNew(ctx); err != nil {
		return out, err
	}
	return out, batch.Err()
}
