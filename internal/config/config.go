// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package config builds infrastructure clients from the environment
// variables listed in §6 of the specification. Each constructor logs what
// it connected to (with credentials redacted) and returns a ready-to-use
// client, following the teacher's NewRedisClient convention throughout.
package config

import (
	"context"
	"log"
	"os"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid bool for %s=%q, using default %v", key, v, def)
		return def
	}
	return b
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Unlimited reports whether UNLIMITED is set, disabling the organization
// quota check in the bulk ingestion path.
func Unlimited() bool {
	return envBool("UNLIMITED", false)
}

// BM25Active is the runtime toggle gating BM25 computation independent of
// the per-dataset BM25_ENABLED flag (§4.3.2 item 3).
func BM25Active() bool {
	return envBool("BM25_ACTIVE", false)
}

// Origins bundles the external service base URLs the worker binaries wire
// up at startup.
type Origins struct {
	DatabaseURL          string
	QdrantURL            string
	QdrantAPIKey         string
	QdrantCollection     string
	EmbeddingServerOrigin string
	SparseServerDocOrigin string
	SparseServerQueryOrigin string
	GPUServerOrigin      string
	TikaURL              string
	Pdf2mdURL            string
	Pdf2mdAuth           string
	S3Endpoint           string
	S3Bucket             string
	S3AccessKey          string
	S3SecretKey          string
}

// LoadOrigins reads every external-service environment variable named in
// §6. Missing optional values are left empty; callers decide whether that
// disables the corresponding feature (e.g. an empty SparseServerQueryOrigin
// falls back to SparseServerDocOrigin).
func LoadOrigins() Origins {
	o := Origins{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		QdrantURL:               envDefault("QDRANT_URL", "127.0.0.1:6334"),
		QdrantAPIKey:            os.Getenv("QDRANT_API_KEY"),
		QdrantCollection:        envDefault("QDRANT_COLLECTION", "hive_chunks"),
		EmbeddingServerOrigin:   os.Getenv("EMBEDDING_SERVER_ORIGIN"),
		SparseServerDocOrigin:   os.Getenv("SPARSE_SERVER_DOC_ORIGIN"),
		SparseServerQueryOrigin: os.Getenv("SPARSE_SERVER_QUERY_ORIGIN"),
		GPUServerOrigin:         os.Getenv("GPU_SERVER_ORIGIN"),
		TikaURL:                 os.Getenv("TIKA_URL"),
		Pdf2mdURL:               os.Getenv("PDF2MD_URL"),
		Pdf2mdAuth:              os.Getenv("PDF2MD_AUTH"),
		S3Endpoint:              os.Getenv("S3_ENDPOINT"),
		S3Bucket:                os.Getenv("S3_BUCKET"),
		S3AccessKey:             os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:             os.Getenv("S3_SECRET_KEY"),
	}
	if o.EmbeddingServerOrigin == "" {
		o.EmbeddingServerOrigin = o.GPUServerOrigin
	}
	if o.SparseServerQueryOrigin == "" {
		o.SparseServerQueryOrigin = o.SparseServerDocOrigin
	}
	return o
}

// NewQdrantConn dials the Qdrant gRPC endpoint. The connection is
// plaintext by default; TLS is used only when QDRANT_INSECURE is set to
// false. Construction follows grpc.NewClient's
// non-blocking idiom (WessleyAI-wessley-mvp/engine/semantic/store.go) rather
// than the older blocking grpc.DialContext the teacher's hive-server used.
func NewQdrantConn(ctx context.Context, o Origins) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if envBool("QDRANT_INSECURE", true) {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(nil)
	}

	var opts []grpc.DialOption
	opts = append(opts, grpc.WithTransportCredentials(creds))
	if o.QdrantAPIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(o.QdrantAPIKey)))
	}

	conn, err := grpc.NewClient(o.QdrantURL, opts...)
	if err != nil {
		log.Printf("NewQdrantConn: failed to dial %s: %v", o.QdrantURL, err)
		return nil, err
	}
	log.Printf("NewQdrantConn: dialed %s collection=%s", o.QdrantURL, o.QdrantCollection)
	return conn, nil
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
