package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// DefaultMaxFetchSize caps the body size Bucket.Fetch reads from a remote
// URL.
const DefaultMaxFetchSize = 64 << 20

// Bucket maps storage paths to public URLs. Objects written through Upload
// are addressable at PublicURL(path); Fetch of such a URL reads back from
// the store, any other http(s) URL is downloaded.
type Bucket struct {
	store   ObjectStore
	base    string
	client  *http.Client
	maxSize int64
}

// BucketOption configures a Bucket.
type BucketOption func(*Bucket)

// WithHTTPClient sets the client used to fetch foreign URLs.
func WithHTTPClient(c *http.Client) BucketOption {
	return func(b *Bucket) {
		b.client = c
	}
}

// WithMaxFetchSize limits the size of remote downloads.
func WithMaxFetchSize(n int64) BucketOption {
	return func(b *Bucket) {
		b.maxSize = n
	}
}

// NewBucket creates a Bucket over store. publicBase is the URL under which
// the store's root is served, without a trailing slash.
func NewBucket(store ObjectStore, publicBase string, opts ...BucketOption) *Bucket {
	b := &Bucket{
		store:   store,
		base:    strings.TrimRight(publicBase, "/"),
		client:  http.DefaultClient,
		maxSize: DefaultMaxFetchSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns the underlying object store.
func (b *Bucket) Store() ObjectStore {
	return b.store
}

// PublicURL returns the URL path is served from.
func (b *Bucket) PublicURL(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return b.base + "/" + strings.Join(segs, "/")
}

// pathOf reverses PublicURL. ok is false for URLs outside the bucket.
func (b *Bucket) pathOf(rawURL string) (path string, ok bool) {
	rest, found := strings.CutPrefix(rawURL, b.base+"/")
	if !found || rest == "" {
		return "", false
	}
	p, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return p, true
}

// Upload stores data at path, overwriting any previous object, and returns
// its public URL.
func (b *Bucket) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := b.store.Put(ctx, path, data, contentType); err != nil {
		return "", err
	}
	return b.PublicURL(path), nil
}

// Fetch returns the bytes behind rawURL.
func (b *Bucket) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if p, ok := b.pathOf(rawURL); ok {
		return b.store.Get(ctx, p)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("storage: fetch %q: unsupported scheme", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("storage: fetch %q: %w", rawURL, os.ErrNotExist)
	case resp.StatusCode/100 != 2:
		return nil, fmt.Errorf("storage: fetch %q: status %s", rawURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("storage: fetch %q: %w", rawURL, err)
	}
	if int64(len(data)) > b.maxSize {
		return nil, fmt.Errorf("storage: fetch %q: body exceeds %d bytes", rawURL, b.maxSize)
	}
	return data, nil
}
