package filestore

import (
	"context"
	"fmt"
	"io"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options keeps minio connection settings
type Options struct {
	URL    string
	User   string
	Key    string
	Bucket string
	Secure bool
}

// Store reads and drops answer audio objects in minio
type Store struct {
	mc     *minio.Client
	bucket string
}

// NewStore creates minio backed audio store
func NewStore(opts Options) (*Store, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("no URL")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("no bucket")
	}
	mc, err := minio.New(opts.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Key, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("can't init minio client: %w", err)
	}
	goapp.Log.Info().Str("url", opts.URL).Str("bucket", opts.Bucket).Msg("minio")
	return &Store{mc: mc, bucket: opts.Bucket}, nil
}

// LoadFile returns the object by its path
func (s *Store) LoadFile(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("can't get %s: %w", name, err)
	}
	return obj, nil
}

// Delete drops the object by its path. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("can't delete %s: %w", name, err)
	}
	goapp.Log.Info().Str("file", name).Msg("deleted")
	return nil
}
