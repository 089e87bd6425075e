// Copyright 2025 The DBQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package objectstore wraps the S3-compatible object storage used as the
// hand-off point between the ingestion and transformation stages and as the
// artifact sink of the experiment tracker.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DataBridgeTech/commitflow"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Client struct {
	mc     *minio.Client
	logger *slog.Logger
}

func NewClient(cfg commitflow.ObjectStoreConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &Client{mc: mc, logger: logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		c.logger.Debug("bucket already exists", "bucket", bucket)
		return nil
	}

	if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	c.logger.Info("created bucket", "bucket", bucket)
	return nil
}

// PutJSON serializes v as indented JSON and uploads it under the given key.
// It returns the object size in bytes.
func (c *Client) PutJSON(ctx context.Context, bucket, key string, v any) (int64, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to serialize object %s: %w", key, err)
	}

	_, err = c.mc.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return 0, fmt.Errorf("failed to store object s3://%s/%s: %w", bucket, key, err)
	}

	c.logger.Info("stored object", "key", fmt.Sprintf("s3://%s/%s", bucket, key), "size_bytes", len(data))
	return int64(len(data)), nil
}

// GetJSON downloads the object under key and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, bucket, key string, out any) error {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get object s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return fmt.Errorf("failed to read object s3://%s/%s: %w", bucket, key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode object s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// LatestKey returns the key of the most recently modified object under the
// prefix.
func (c *Client) LatestKey(ctx context.Context, bucket, prefix string) (string, error) {
	objects := c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var latestKey string
	var latestModified time.Time
	for obj := range objects {
		if obj.Err != nil {
			return "", fmt.Errorf("failed to list objects under %s: %w", prefix, obj.Err)
		}
		if latestKey == "" || obj.LastModified.After(latestModified) {
			latestKey = obj.Key
			latestModified = obj.LastModified
		}
	}

	if latestKey == "" {
		return "", fmt.Errorf("no objects found under s3://%s/%s", bucket, prefix)
	}

	c.logger.Info("resolved latest object", "key", latestKey, "last_modified", latestModified)
	return latestKey, nil
}
