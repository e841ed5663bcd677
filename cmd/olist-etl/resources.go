package main

import (
	"context"
	"fmt"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/catalog"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/extract"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/pipeline"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/source"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/store"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/syncer"
)

func openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func loadCatalog(only []string) (*catalog.Catalog, error) {
	cat, err := catalog.Discover(cfg.Paths.Queries)
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		return cat, nil
	}
	texts := make(map[string]string, len(only))
	for _, name := range only {
		q, ok := cat.Get(name)
		if !ok {
			return nil, fmt.Errorf("query %q is not in the catalog", name)
		}
		texts[name] = q.Text
	}
	return catalog.New(texts), nil
}

func newExecutor(src *source.Source) *extract.Executor {
	return extract.New(src, cfg.Paths.Output, extract.WithParquet(cfg.Paths.ExportParquet))
}

func newCoordinator(remote *store.Store, only []string) *syncer.Coordinator {
	return syncer.New(remote, cfg.Paths.Output, cfg.Paths.Input,
		syncer.WithConcurrency(cfg.Sync.Concurrency),
		syncer.WithFilter(only...),
	)
}

// session bundles the resources a full pipeline needs. Close releases them.
type session struct {
	src    *source.Source
	remote *store.Store
	pipe   *pipeline.Pipeline
}

func openSession(ctx context.Context, only []string) (*session, error) {
	cat, err := loadCatalog(only)
	if err != nil {
		return nil, err
	}
	remote, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	pipe := pipeline.New(cat, newExecutor(src), remote, newCoordinator(remote, only), cfg.Paths.Input)
	return &session{src: src, remote: remote, pipe: pipe}, nil
}

func (s *session) Close() error {
	return s.src.Close()
}
