package persistence

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 10 * time.Second

// Mirror keeps a remote copy of the write-ahead log.
type Mirror interface {
	Download(ctx context.Context, path string) error
	Upload(ctx context.Context, path string) error
}

// GCSMirror stores the log as a single Cloud Storage object.
type GCSMirror struct {
	client *storage.Client
	bucket string
	object string
	mu     sync.Mutex
}

func NewGCSMirror(ctx context.Context, bucket, object string) (*GCSMirror, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSMirror{
		client: client,
		bucket: bucket,
		object: object,
	}, nil
}

// Download replaces path with the remote object. A missing object leaves
// path untouched.
func (g *GCSMirror) Download(ctx context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rc, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (g *GCSMirror) Upload(ctx context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSMirror) Close() error {
	return g.client.Close()
}
