package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ObjectInfo is the metadata returned by a successful stat.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore abstracts the S3 operations the sync engine needs.
// StatObject and GetObject return an *Error with CodeObjectNotFound when the key is absent.
type ObjectStore interface {
	Ping(ctx context.Context) error
	EnsureBucket(ctx context.Context, bucket string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error)
}

// LocalStore keeps objects on disk under root/<bucket>/<key>.
type LocalStore struct {
	root string
}

// NewLocalStore creates a new local object store rooted at dir.
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "olist-store")
	}
	return &LocalStore{root: root}
}

// Root returns the directory holding the buckets.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return wrapError(CodePermissionDenied, false, err)
	}
	return nil
}

func (s *LocalStore) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bucket == "" {
		return wrapError(CodeBucketNotFound, false, errors.New("bucket name is required"))
	}
	if err := os.MkdirAll(s.bucketPath(bucket), 0o755); err != nil {
		return wrapError(CodePermissionDenied, false, err)
	}
	return nil
}

func (s *LocalStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.bucketPath(bucket))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrapError(CodePermissionDenied, false, err)
	}
	return info.IsDir(), nil
}

func (s *LocalStore) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	full, err := s.objectPath(ctx, bucket, key)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, wrapError(CodeObjectNotFound, false, fmt.Errorf("%s/%s: %w", bucket, key, err))
		}
		return ObjectInfo{}, wrapError(CodePermissionDenied, false, err)
	}
	if info.IsDir() {
		return ObjectInfo{}, wrapError(CodeObjectNotFound, false, fmt.Errorf("%s/%s is a prefix", bucket, key))
	}
	return ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
}

func (s *LocalStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, _ int64) error {
	full, err := s.objectPath(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return wrapError(CodePermissionDenied, false, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".put-*")
	if err != nil {
		return wrapError(CodeTransferFailed, true, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return wrapError(CodeTransferFailed, true, err)
	}
	if err := tmp.Close(); err != nil {
		return wrapError(CodeTransferFailed, true, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return wrapError(CodeTransferFailed, true, err)
	}
	return nil
}

func (s *LocalStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	full, err := s.objectPath(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrapError(CodeObjectNotFound, false, err)
		}
		return nil, wrapError(CodeTransferFailed, true, err)
	}
	return f, nil
}

func (s *LocalStore) ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, wrapError(CodeBucketNotFound, false, errors.New("bucket name is required"))
	}
	base := s.bucketPath(bucket)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, wrapError(CodeBucketNotFound, false, fmt.Errorf("bucket %q does not exist", bucket))
	}

	var keys []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, relErr := filepath.Rel(base, p)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(CodeTransferFailed, true, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) bucketPath(bucket string) string {
	return filepath.Join(s.root, sanitizePath(bucket))
}

func (s *LocalStore) objectPath(ctx context.Context, bucket, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if bucket == "" {
		return "", wrapError(CodeBucketNotFound, false, errors.New("bucket name is required"))
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.bucketPath(bucket), filepath.FromSlash(key)), nil
}

func validateKey(key string) error {
	if key == "" {
		return wrapError(CodeTransferFailed, false, errors.New("object key is required"))
	}
	if path.IsAbs(key) || path.Clean(key) != key || strings.HasPrefix(key, "../") || key == ".." {
		return wrapError(CodeTransferFailed, false, fmt.Errorf("invalid object key %q", key))
	}
	return nil
}

func sanitizePath(raw string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(raw)
}
