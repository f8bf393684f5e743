// Package storage stores uploaded lease and addendum documents in S3.
// The core keeps only the object key and a sha256 content hash; the hash
// is what detects a re-upload with altered content.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type DocumentStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

func NewDocumentStore(client *s3.Client, bucket string) *DocumentStore {
	return &DocumentStore{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}
}

// Upload writes the document and returns its storage key and sha256 hex
// hash.
func (d *DocumentStore) Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, string, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read document: %w", err)
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload document: %w", err)
	}

	return key, hash, nil
}

// PresignedURL returns a short-lived download URL for a stored document.
func (d *DocumentStore) PresignedURL(ctx context.Context, key string) (string, error) {
	out, err := d.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign document url: %w", err)
	}

	return out.URL, nil
}

// Delete removes a stored document.
func (d *DocumentStore) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}
