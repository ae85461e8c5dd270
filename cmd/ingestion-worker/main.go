// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/northbound-system/hive-ingest/internal/config"
	"github.com/northbound-system/hive-ingest/internal/embedding"
	"github.com/northbound-system/hive-ingest/internal/ingestion"
	"github.com/northbound-system/hive-ingest/internal/logger"
	"github.com/northbound-system/hive-ingest/internal/queue"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/vectordb"
	"github.com/northbound-system/hive-ingest/internal/worker"
)

var (
	workerCount    = flag.Int("worker-count", 5, "number of dispatch-loop goroutines")
	reserveTimeout = flag.Duration("reserve-timeout", 5*time.Second, "blocking reserve timeout per poll")
)

func main() {
	logFile := "ingestion-worker.log"
	if _, err := logger.Init(logFile); err != nil {
		logger.GetDefault().Printf("failed to initialize file logger: %v, using stdout only", err)
	}

	if err := godotenv.Load(); err != nil {
		logger.Printf("no .env file found, using environment variables: %v", err)
	}

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	origins := config.LoadOrigins()

	s, err := store.Open(ctx, origins.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	qdrantConn, err := config.NewQdrantConn(ctx, origins)
	if err != nil {
		logger.Fatalf("failed to dial qdrant: %v", err)
	}
	defer qdrantConn.Close()

	vdb, err := vectordb.NewQdrantVectorDB(qdrantConn, origins.QdrantCollection)
	if err != nil {
		logger.Fatalf("failed to init vector db: %v", err)
	}
	if err := vdb.EnsureCollection(ctx); err != nil {
		logger.Fatalf("failed to ensure qdrant collection: %v", err)
	}

	sparse := embedding.NewSparseClient(origins.SparseServerDocOrigin, origins.SparseServerQueryOrigin)

	redisClient, err := config.NewRedisClient(ctx)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	q, err := queue.NewRedisQueue(redisClient)
	if err != nil {
		logger.Fatalf("failed to build job queue: %v", err)
	}

	handler := ingestion.NewHandler(s, vdb, sparse, origins)

	cfg := worker.Config{
		ReadyList:      queue.ListIngestion,
		ProcessingList: queue.ListProcessing,
		DeadLetterList: queue.ListDeadLetters,
		AttemptCap:     queue.AttemptCapBulk,
		ReserveTimeout: *reserveTimeout,
		Handler:        handler,
	}

	logger.Printf("ingestion-worker: starting %d workers on %s", *workerCount, cfg.ReadyList)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := worker.StartWorkers(ctx, q, cfg, *workerCount); err != nil {
			logger.Errorf("worker.StartWorkers returned error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Println("ingestion-worker: shutting down")
	cancel()
	<-done
}
