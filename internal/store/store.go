// Package store is the artifact store adapter: key layout, existence probes
// and whole-file transfers over an S3-compatible ObjectStore.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
)

// RemoteObject is the result of one existence probe. It is never cached.
type RemoteObject struct {
	Key    string
	Exists bool
	Size   int64
}

// Store binds an ObjectStore to a bucket and key prefix.
type Store struct {
	backend ObjectStore
	bucket  string
	prefix  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRateLimit throttles backend calls to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Store) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over backend.
func New(backend ObjectStore, bucket, prefix string, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		logger:  logging.New("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds the backend named by cfg.EndpointURL: a LocalStore for file://
// endpoints, an S3Client otherwise. The bucket is created when cfg.EnsureBucket
// is set and must already exist otherwise.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	var backend ObjectStore
	if root, ok := localRoot(cfg); ok {
		backend = NewLocalStore(root)
	} else {
		client, err := NewS3Client(cfg)
		if err != nil {
			return nil, err
		}
		backend = client
	}

	s := New(backend, cfg.Bucket, cfg.Prefix, WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	if err := s.Check(ctx, cfg.EnsureBucket); err != nil {
		return nil, err
	}
	return s, nil
}

func localRoot(cfg config.StoreConfig) (string, bool) {
	if !strings.HasPrefix(cfg.EndpointURL, "file://") {
		return "", false
	}
	if cfg.RootPath != "" {
		return cfg.RootPath, true
	}
	if u, err := url.Parse(cfg.EndpointURL); err == nil && u.Path != "" {
		return u.Path, true
	}
	return "", true
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Prefix returns the key prefix without slashes at either end.
func (s *Store) Prefix() string { return s.prefix }

// Check verifies the bucket, creating it when ensure is set.
func (s *Store) Check(ctx context.Context, ensure bool) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if ensure {
		if err := s.backend.EnsureBucket(ctx, s.bucket); err != nil {
			return err
		}
		s.logger.Debug("bucket ready", "bucket", s.bucket)
		return nil
	}
	exists, err := s.backend.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return wrapError(CodeBucketNotFound, false, fmt.Errorf("bucket %q does not exist", s.bucket))
	}
	return nil
}

// KeyFor returns the remote key of the named artifact.
func (s *Store) KeyFor(name string) string {
	file := name + artifact.Extension
	if s.prefix == "" {
		return file
	}
	return s.prefix + "/" + file
}

// NameFromKey reverses KeyFor. Keys outside the prefix, in nested folders or
// without the artifact extension are rejected.
func (s *Store) NameFromKey(key string) (string, bool) {
	rest := key
	if s.prefix != "" {
		var ok bool
		rest, ok = strings.CutPrefix(key, s.prefix+"/")
		if !ok {
			return "", false
		}
	}
	if strings.Contains(rest, "/") || path.Ext(rest) != artifact.Extension {
		return "", false
	}
	name := strings.TrimSuffix(rest, artifact.Extension)
	if artifact.ValidateName(name) != nil {
		return "", false
	}
	return name, true
}

// Probe looks the key up in the remote store. Only object absence yields
// Exists=false; every other failure is returned.
func (s *Store) Probe(ctx context.Context, key string) (RemoteObject, error) {
	if err := s.wait(ctx); err != nil {
		return RemoteObject{}, err
	}
	info, err := s.backend.StatObject(ctx, s.bucket, key)
	if err != nil {
		if IsNotFound(err) {
			return RemoteObject{Key: key}, nil
		}
		return RemoteObject{}, fmt.Errorf("probe %s: %w", key, err)
	}
	return RemoteObject{Key: key, Exists: true, Size: info.Size}, nil
}

// Exists reports whether key is present remotely.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	obj, err := s.Probe(ctx, key)
	return obj.Exists, err
}

// Put streams the local file to key, overwriting any existing object.
func (s *Store) Put(ctx context.Context, localPath, key string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	if err := s.backend.PutObject(ctx, s.bucket, key, f, info.Size()); err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Info("uploaded", "key", key, "bucket", s.bucket, "size", humanize.Bytes(uint64(info.Size())))
	return info.Size(), nil
}

// Get downloads key into localPath. The data lands in a temporary file in the
// same directory first so a failed transfer never leaves a partial artifact.
func (s *Store) Get(ctx context.Context, key, localPath string) (int64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	rc, err := s.backend.GetObject(ctx, s.bucket, key)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+"-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	n, copyErr := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("download %s: %w", key, wrapError(CodeTransferFailed, true, err))
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("download %s: %w", key, err)
	}
	s.logger.Info("downloaded", "key", key, "path", localPath, "size", humanize.Bytes(uint64(n)))
	return n, nil
}

// List returns every key under prefix, sorted. An empty prefix lists the
// store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if prefix == "" && s.prefix != "" {
		prefix = s.prefix + "/"
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	keys, err := s.backend.ListPrefix(ctx, s.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return keys, nil
}

func (s *Store) wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}
