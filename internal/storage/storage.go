// Package storage reads and writes the files genreid keeps outside the
// request path: the trained artifact, the feature-table schema and the
// offline extraction outputs. A location is either a local path or an
// s3://bucket/key URI.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating it if it exists.
	// The caller must close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// S3Options configures the client built for s3:// locations.
type S3Options struct {
	Region   string
	Endpoint string // non-empty for S3-compatible stores (MinIO, R2)
}

// Open resolves a location into a store and the path of the file inside
// it. s3://bucket/dir/file.ext yields an S3 store for the bucket and
// "dir/file.ext"; anything else is a local file whose directory becomes
// the store root.
func Open(ctx context.Context, location string, opts S3Options) (FileStore, string, error) {
	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return nil, "", fmt.Errorf("storage: invalid s3 location %q", location)
		}
		client, err := NewS3Client(ctx, opts)
		if err != nil {
			return nil, "", err
		}
		return NewS3(client, bucket, ""), key, nil
	}

	if location == "" {
		return nil, "", fmt.Errorf("storage: empty location")
	}
	dir, name := filepath.Split(location)
	if dir == "" {
		dir = "."
	}
	l, err := NewLocal(dir)
	if err != nil {
		return nil, "", err
	}
	return l, name, nil
}

// ReadAll opens location and returns its contents.
func ReadAll(ctx context.Context, location string, opts S3Options) ([]byte, error) {
	fs, path, err := Open(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
