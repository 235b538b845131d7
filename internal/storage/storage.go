// Package storage uploads pack images to Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const MaxImageBytes = 5 << 20

var ErrUnsupportedType = errors.New("unsupported image type")

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ImageStore stores an object and returns its public download URL.
type ImageStore interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

type newWriterFunc func(ctx context.Context, objectPath, contentType string, metadata map[string]string) io.WriteCloser

type GCSStore struct {
	bucket    string
	client    *storage.Client
	newWriter newWriterFunc
}

// NewGCSStore uses application default credentials unless credentialsFile is set.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	s := &GCSStore{bucket: bucket, client: client}
	s.newWriter = func(ctx context.Context, objectPath, contentType string, metadata map[string]string) io.WriteCloser {
		w := client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
		w.ContentType = contentType
		w.Metadata = metadata
		return w
	}
	return s, nil
}

// Put writes data with a Firebase download token so the object is readable
// through the firebasestorage URL without making the bucket public.
func (s *GCSStore) Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	token := uuid.NewString()
	w := s.newWriter(ctx, objectPath, contentType, map[string]string{
		"firebaseStorageDownloadTokens": token,
	})
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", objectPath, err)
	}
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		s.bucket, url.PathEscape(objectPath), token), nil
}

func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// PackImagePath names a new object for a pack image: packs/<id>/<uuid>.<ext>.
func PackImagePath(packID uint64, contentType string) (string, error) {
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return fmt.Sprintf("packs/%d/%s.%s", packID, uuid.NewString(), ext), nil
}
