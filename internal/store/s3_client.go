package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
)

// S3Client implements ObjectStore on top of minio-go for S3 and MinIO endpoints.
type S3Client struct {
	client *minio.Client
	region string
}

// NewS3Client creates a client from the store configuration.
func NewS3Client(cfg config.StoreConfig) (*S3Client, error) {
	if cfg.EndpointURL == "" {
		return nil, wrapError(CodeEndpointUnreachable, true, errors.New("endpoint URL is required"))
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, wrapError(CodeAuthInvalid, false, errors.New("credentials are required"))
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("invalid endpoint URL: %w", err))
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL
	if u.Scheme == "https" {
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("failed to create minio client: %w", err))
	}
	return &S3Client{client: client, region: cfg.Region}, nil
}

func (s *S3Client) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return classifyError(err)
	}
	return nil
}

func (s *S3Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return classifyError(err)
	}
	return nil
}

func (s *S3Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if bucket == "" {
		return false, wrapError(CodeBucketNotFound, false, errors.New("bucket name is required"))
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, classifyError(err)
	}
	return exists, nil
}

func (s *S3Client) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, classifyError(err)
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, LastModified: info.LastModified}, nil
}

func (s *S3Client) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	if key == "" {
		return wrapError(CodeTransferFailed, false, errors.New("object key is required"))
	}
	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".csv") {
		contentType = "text/csv"
	}
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classifyError(err)
	}
	return nil
}

func (s *S3Client) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyError(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller starts writing.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classifyError(err)
	}
	return obj, nil
}

func (s *S3Client) ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	objectCh := s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objectCh {
		if obj.Err != nil {
			return nil, classifyError(obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// classifyError converts minio-go and transport errors to a coded *Error.
// Only a 404 for a missing key becomes CodeObjectNotFound.
func classifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	if resp := minio.ToErrorResponse(err); resp.Code != "" || resp.StatusCode != 0 {
		switch resp.Code {
		case "NoSuchKey", "NotFound":
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == 0 {
				return wrapError(CodeObjectNotFound, false, err)
			}
		case "NoSuchBucket":
			return wrapError(CodeBucketNotFound, false, err)
		case "AccessDenied", "AllAccessDisabled":
			return wrapError(CodePermissionDenied, false, err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return wrapError(CodeAuthInvalid, false, err)
		case "RequestTimeout", "RequestTimeTooSkewed":
			return wrapError(CodeTimeout, true, err)
		case "SlowDown", "ServiceUnavailable", "InternalError":
			return wrapError(CodeEndpointUnreachable, true, err)
		}
		switch {
		case resp.StatusCode == http.StatusForbidden:
			return wrapError(CodePermissionDenied, false, err)
		case resp.StatusCode == http.StatusUnauthorized:
			return wrapError(CodeAuthInvalid, false, err)
		case resp.StatusCode >= 500:
			return wrapError(CodeEndpointUnreachable, true, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(CodeTimeout, true, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrapError(CodeTimeout, true, err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return wrapError(CodeEndpointUnreachable, true, err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return wrapError(CodeTimeout, true, err)
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "unreachable") ||
		strings.Contains(errStr, "no such host") || strings.Contains(errStr, "connection reset"):
		return wrapError(CodeEndpointUnreachable, true, err)
	case strings.Contains(errStr, "access denied"):
		return wrapError(CodePermissionDenied, false, err)
	}
	return wrapError(CodeTransferFailed, true, err)
}
