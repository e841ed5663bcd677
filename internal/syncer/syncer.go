// Package syncer moves artifacts between the local staging directories and the
// remote store, either in full or only what the other side lacks.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/store"
)

// Remote is the part of the store adapter a sync pass needs.
type Remote interface {
	KeyFor(name string) string
	NameFromKey(key string) (string, bool)
	Probe(ctx context.Context, key string) (store.RemoteObject, error)
	Put(ctx context.Context, localPath, key string) (int64, error)
	Get(ctx context.Context, key, localPath string) (int64, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

type Direction string

const (
	Upload   Direction = "upload"
	Download Direction = "download"
)

type Mode string

const (
	Full        Mode = "full"
	Incremental Mode = "incremental"
)

// Result summarizes one sync pass.
type Result struct {
	ID          string
	Direction   Direction
	Mode        Mode
	Transferred []string
	Skipped     []string
	Bytes       int64
}

// Coordinator runs sync passes between outDir (uploads), inDir (downloads)
// and the remote store.
type Coordinator struct {
	remote      Remote
	outDir      string
	inDir       string
	concurrency int
	filter      map[string]bool
	locks       *keyLocks
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency bounds the number of artifacts handled at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithFilter restricts passes to the named artifacts.
func WithFilter(names ...string) Option {
	return func(c *Coordinator) {
		if len(names) == 0 {
			return
		}
		c.filter = make(map[string]bool, len(names))
		for _, n := range names {
			c.filter[n] = true
		}
	}
}

// New creates a Coordinator.
func New(remote Remote, outDir, inDir string, opts ...Option) *Coordinator {
	c := &Coordinator{
		remote:      remote,
		outDir:      outDir,
		inDir:       inDir,
		concurrency: config.DefaultConcurrency,
		locks:       newKeyLocks(),
		logger:      logging.New("syncer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadAll uploads every local artifact.
func (c *Coordinator) UploadAll(ctx context.Context) (*Result, error) {
	return c.upload(ctx, Full)
}

// UploadNew uploads the local artifacts whose key is absent remotely.
func (c *Coordinator) UploadNew(ctx context.Context) (*Result, error) {
	return c.upload(ctx, Incremental)
}

// DownloadAll downloads every remote artifact.
func (c *Coordinator) DownloadAll(ctx context.Context) (*Result, error) {
	return c.download(ctx, Full)
}

// DownloadNew downloads the remote artifacts missing from the local input directory.
func (c *Coordinator) DownloadNew(ctx context.Context) (*Result, error) {
	return c.download(ctx, Incremental)
}

func (c *Coordinator) upload(ctx context.Context, mode Mode) (*Result, error) {
	names, err := localNames(c.outDir)
	if err != nil {
		return nil, err
	}
	names = c.selected(names)

	pass := c.newPass(Upload, mode)
	err = c.each(ctx, names, func(ctx context.Context, name string) error {
		key := c.remote.KeyFor(name)
		unlock := c.locks.lock(key)
		defer unlock()

		if mode == Incremental {
			obj, err := c.remote.Probe(ctx, key)
			if err != nil {
				return err
			}
			if obj.Exists {
				pass.skip(name)
				return nil
			}
		}
		n, err := c.remote.Put(ctx, artifact.PathFor(c.outDir, name), key)
		if err != nil {
			return err
		}
		pass.transfer(name, n)
		return nil
	})
	return pass.finish(c.logger, err)
}

func (c *Coordinator) download(ctx context.Context, mode Mode) (*Result, error) {
	keys, err := c.remote.List(ctx, "")
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name, ok := c.remote.NameFromKey(key)
		if !ok {
			continue
		}
		byName[name] = key
		names = append(names, name)
	}
	names = c.selected(names)

	pass := c.newPass(Download, mode)
	err = c.each(ctx, names, func(ctx context.Context, name string) error {
		key := byName[name]
		unlock := c.locks.lock(key)
		defer unlock()

		path := artifact.PathFor(c.inDir, name)
		if mode == Incremental {
			_, err := os.Stat(path)
			if err == nil {
				pass.skip(name)
				return nil
			}
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", path, err)
			}
		}
		n, err := c.remote.Get(ctx, key, path)
		if err != nil {
			return err
		}
		pass.transfer(name, n)
		return nil
	})
	return pass.finish(c.logger, err)
}

// each runs fn for every name with bounded parallelism. The first error
// cancels the remaining work and is returned.
func (c *Coordinator) each(ctx context.Context, names []string, fn func(context.Context, string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, name)
		})
	}
	return g.Wait()
}

func (c *Coordinator) selected(names []string) []string {
	if c.filter == nil {
		return names
	}
	out := names[:0:0]
	for _, n := range names {
		if c.filter[n] {
			out = append(out, n)
		}
	}
	return out
}

func (c *Coordinator) newPass(dir Direction, mode Mode) *pass {
	return &pass{res: Result{ID: uuid.NewString(), Direction: dir, Mode: mode}}
}

type pass struct {
	mu  sync.Mutex
	res Result
}

func (p *pass) skip(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.res.Skipped = append(p.res.Skipped, name)
}

func (p *pass) transfer(name string, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.res.Transferred = append(p.res.Transferred, name)
	p.res.Bytes += n
}

func (p *pass) finish(logger *slog.Logger, err error) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sort.Strings(p.res.Transferred)
	sort.Strings(p.res.Skipped)
	res := p.res
	if err != nil {
		logger.Error("sync pass aborted", "pass", res.ID, "direction", res.Direction, "mode", res.Mode, "error", err)
		return &res, err
	}
	logger.Info("sync pass complete",
		"pass", res.ID,
		"direction", res.Direction,
		"mode", res.Mode,
		"transferred", len(res.Transferred),
		"skipped", len(res.Skipped),
		"bytes", humanize.Bytes(uint64(res.Bytes)),
	)
	return &res, nil
}

// localNames lists the artifacts staged in dir. A missing dir holds none.
func localNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != artifact.Extension {
			continue
		}
		names = append(names, artifact.NameFromPath(e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// keyLocks serializes transfers that touch the same key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
