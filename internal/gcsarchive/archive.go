// Package gcsarchive stores uploaded export files in a GCS bucket so the
// async ingestion worker can fetch them, and keeps the raw file around for
// reprocessing.
package gcsarchive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archive writes an uploaded export to the bucket and returns its gs:// URI.
// Objects are laid out by upload date with a UUID prefix so equal filenames
// never collide. Assumes Application Default Credentials are configured.
func Archive(ctx context.Context, bucketName, profileID, filename string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Archive: create storage client: %w", err)
	}
	defer client.Close()

	return ArchiveWithClient(ctx, client, bucketName, profileID, filename, data)
}

// ArchiveWithClient is Archive using the provided storage client.
func ArchiveWithClient(ctx context.Context, client *storage.Client, bucketName, profileID, filename string, data []byte) (string, error) {
	objectName := path.Join(
		"uploads",
		profileID,
		time.Now().UTC().Format("2006-01-02"),
		uuid.NewString()+"_"+path.Base(filename),
	)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveWithClient: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveWithClient: finalize upload: %w", err)
	}

	return "gs://" + bucketName + "/" + objectName, nil
}

// Fetch downloads the file bytes from the given GCS URI.
func Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// FilenameFromURI recovers the original filename from an archived URI by
// stripping the uuid prefix Archive adds.
// e.g. "gs://bucket/uploads/p1/2025-03-01/<uuid>_bank.xlsx" → "bank.xlsx"
func FilenameFromURI(uri string) string {
	base := path.Base(strings.TrimPrefix(uri, "gs://"))
	if idx := strings.Index(base, "_"); idx != -1 && looksLikeUUID(base[:idx]) {
		return base[idx+1:]
	}
	return base
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

func looksLikeUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
