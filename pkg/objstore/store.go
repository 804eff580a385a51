// Package objstore is the object-store boundary used by recovery and bucket
// preparation. Providers register a factory; Open picks one by name.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Provider names an object-store implementation.
type Provider string

const (
	ProviderS3     Provider = "s3"
	ProviderMinio  Provider = "minio"
	ProviderMemory Provider = "memory"
)

// ErrNoSuchUpload is returned when a multipart session does not exist.
var ErrNoSuchUpload = errors.New("no such multipart upload")

// Upload is an open multipart upload session.
type Upload struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

// Store holds the operations recovery needs. All calls block until the store
// answers and errors are returned as received.
type Store interface {
	// ListMultipartUploads returns every open session in bucket.
	ListMultipartUploads(ctx context.Context, bucket string) ([]Upload, error)

	// PutObject uploads the file at path as a single object.
	PutObject(ctx context.Context, bucket, key, path string) error

	// UploadPart uploads the file at path as part partNumber of uploadID. When
	// last is set the part is the final one and the upload is finalized.
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, path string, last bool) error

	// AbortMultipartUpload releases the session's parts. Unknown sessions are
	// not an error.
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

// ObjectLister enumerates and removes plain objects.
type ObjectLister interface {
	// ListObjects calls fn for every key under prefix, in store order. A
	// non-nil error from fn stops the listing and is returned.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(key string) error) error

	DeleteObject(ctx context.Context, bucket, key string) error
}

// Client is a full provider implementation.
type Client interface {
	Store
	ObjectLister
	Provider() Provider
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Provider        Provider
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
	TLS             bool

	// CAFile adds a CA certificate to the system roots.
	CAFile             string
	InsecureSkipVerify bool

	// CompleteOnLastPart makes UploadPart(last=true) issue the completion
	// request itself. Stores that finalize on a last-part marker can turn it off.
	CompleteOnLastPart bool

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Factory creates a Client from config.
type Factory func(ctx context.Context, cfg Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Provider]Factory)
)

// Register adds a factory for a provider.
func Register(p Provider, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p] = f
}

// Providers lists registered provider names, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for p := range registry {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// Open creates a Client for cfg.Provider. An empty provider means S3.
func Open(ctx context.Context, cfg Config) (Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderS3
	}

	registryMu.RLock()
	f, ok := registry[cfg.Provider]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown object store provider: %q", cfg.Provider)
	}
	return f(ctx, cfg)
}
