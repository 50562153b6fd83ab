// Package archive keeps a JSON snapshot of every submitted document in
// object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tradexpert/whatsnew-admin/internal/config"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
)

// Key is the object name of a snapshot: submissions/YYYY/MM/DD/<draftID>.json (UTC day).
func Key(draftID string, at time.Time) string {
	return fmt.Sprintf("submissions/%s/%s.json", at.UTC().Format("2006/01/02"), draftID)
}

// MinIOArchive is a thin wrapper around the minio client.
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchive creates the client and ensures the bucket exists.
func NewMinIOArchive(ctx context.Context, cfg config.MinIOConfig) (*MinIOArchive, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	a := &MinIOArchive{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, a.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return a, nil
}

// Archive uploads doc as sent upstream and returns its key.
func (a *MinIOArchive) Archive(ctx context.Context, draftID string, doc whatsnew.Document, at time.Time) (string, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := Key(draftID, at)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	return key, nil
}

// Load reads a snapshot back.
func (a *MinIOArchive) Load(ctx context.Context, key string) (whatsnew.Document, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return whatsnew.Document{}, err
	}
	defer obj.Close()
	// stat first so a missing object reports as an error, not an empty body
	if _, err := obj.Stat(); err != nil {
		return whatsnew.Document{}, err
	}
	var doc whatsnew.Document
	if err := json.NewDecoder(obj).Decode(&doc); err != nil {
		return whatsnew.Document{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return doc, nil
}
