// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package blobstore is the file worker's blob-storage client, grounded
// on intelligencedev-manifold's internal/objectstore/s3.go: AWS SDK v2,
// static credentials, path-style addressing so a MinIO-compatible
// S3_ENDPOINT works the same as real S3.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store fetches file bytes by id (§6 "Blob storage"). The pipeline only
// reads from blob storage; writes are produced upstream of this module.
type Store struct {
	client *s3.Client
	bucket string
}

// Config carries the S3-compatible endpoint and credentials from §6's
// environment variables.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// New builds an S3 client. When Endpoint is set (MinIO, etc.), the client
// uses path-style addressing the way manifold's s3.go does for
// non-AWS-hosted buckets.
func New(ctx context.Context, cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Get fetches the object for fileID and returns its content stream. The
// caller must Close the returned reader.
func (s *Store) Get(ctx context.Context, fileID string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", fileID, err)
	}
	return out.Body, nil
}

// Ping verifies bucket reachability.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("blobstore: head bucket %s: %w", s.bucket, err)
	}
	return nil
}
