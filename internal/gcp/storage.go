package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/pdf2md/internal/output"
)

// ParseGCSURI splits gs://bucket/object into its parts. The object may be empty.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", uri)
	}
	return bucket, object, nil
}

// DownloadObject streams gs://bucket/object into a local file at destPath.
func DownloadObject(ctx context.Context, client *storage.Client, bucket, object, destPath string) error {
	gcsReader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object yields output.ErrDestinationExists.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "text/markdown; charset=utf-8"

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: gs://%s/%s", output.ErrDestinationExists, bucket.BucketName(), objectName)
		}
		slog.Error("Failed to copy content to GCS object", "object", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: gs://%s/%s", output.ErrDestinationExists, bucket.BucketName(), objectName)
		}
		slog.Error("Failed to close GCS writer", "object", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// GCSDestination is an object in a bucket. It never replaces an existing object.
type GCSDestination struct {
	bucket *storage.BucketHandle
	object string
}

// NewGCSDestination places the output name under the prefix of a gs:// results URI.
func NewGCSDestination(client *storage.Client, resultsURI, name string) (*GCSDestination, error) {
	bucket, prefix, err := ParseGCSURI(resultsURI)
	if err != nil {
		return nil, err
	}
	base, err := output.OutputName(name)
	if err != nil {
		return nil, err
	}
	return &GCSDestination{bucket: client.Bucket(bucket), object: path.Join(prefix, base)}, nil
}

func (d *GCSDestination) String() string {
	return fmt.Sprintf("gs://%s/%s", d.bucket.BucketName(), d.object)
}

// Exists implements output.Destination.
func (d *GCSDestination) Exists(ctx context.Context) (bool, error) {
	_, err := d.bucket.Object(d.object).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check %s: %w", d, err)
	}
}

// Write implements output.Destination.
func (d *GCSDestination) Write(ctx context.Context, doc string) error {
	return SaveToGCSAtomically(ctx, d.bucket, d.object, doc)
}
