package store

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		code      string
		transient bool
	}{
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, CodeObjectNotFound, false},
		{"head 404", minio.ErrorResponse{Code: "NotFound", StatusCode: http.StatusNotFound}, CodeObjectNotFound, false},
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, CodeBucketNotFound, false},
		{"forbidden", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, CodePermissionDenied, true},
		{"bad key id", minio.ErrorResponse{Code: "InvalidAccessKeyId", StatusCode: http.StatusForbidden}, CodeAuthInvalid, true},
		{"server error", minio.ErrorResponse{Code: "Whatever", StatusCode: http.StatusBadGateway}, CodeEndpointUnreachable, true},
		{"deadline", context.DeadlineExceeded, CodeTimeout, true},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, CodeEndpointUnreachable, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "s3.invalid"}, CodeEndpointUnreachable, true},
		{"unknown", errors.New("boom"), CodeTransferFailed, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyError(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.transient, IsTransient(got))
			assert.Equal(t, tc.err, got.Unwrap())
		})
	}
}

func TestNewS3ClientRequiresCredentials(t *testing.T) {
	_, err := NewS3Client(config.StoreConfig{EndpointURL: "https://s3.amazonaws.com"})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeAuthInvalid, se.Code)
}

func TestS3ClientStatObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bucket/present.csv":
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Content-Length", "0")
			w.Header().Set("Content-Type", "text/csv")
			w.WriteHeader(http.StatusOK)
		case "/bucket/forbidden.csv":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewS3Client(config.StoreConfig{
		EndpointURL:     srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	s := New(client, "bucket", "")
	ctx := context.Background()

	ok, err := s.Exists(ctx, "present.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "absent.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(ctx, "forbidden.csv")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, IsTransient(err))
}
