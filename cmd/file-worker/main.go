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

	"github.com/northbound-system/hive-ingest/internal/blobstore"
	"github.com/northbound-system/hive-ingest/internal/config"
	"github.com/northbound-system/hive-ingest/internal/fileworker"
	"github.com/northbound-system/hive-ingest/internal/logger"
	"github.com/northbound-system/hive-ingest/internal/ocr"
	"github.com/northbound-system/hive-ingest/internal/queue"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/worker"
)

var (
	workerCount    = flag.Int("worker-count", 3, "number of dispatch-loop goroutines")
	reserveTimeout = flag.Duration("reserve-timeout", 5*time.Second, "blocking reserve timeout per poll")
)

func main() {
	logFile := "file-worker.log"
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

	blob, err := blobstore.New(ctx, blobstore.Config{
		Endpoint:  origins.S3Endpoint,
		Bucket:    origins.S3Bucket,
		AccessKey: origins.S3AccessKey,
		SecretKey: origins.S3SecretKey,
	})
	if err != nil {
		logger.Fatalf("failed to build blob store: %v", err)
	}

	ocrClient := ocr.NewOCRClient(origins.Pdf2mdURL, origins.Pdf2mdAuth)
	tikaClient := ocr.NewTikaClient(origins.TikaURL)

	redisClient, err := config.NewRedisClient(ctx)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	q, err := queue.NewRedisQueue(redisClient)
	if err != nil {
		logger.Fatalf("failed to build job queue: %v", err)
	}

	handler := fileworker.NewHandler(blob, ocrClient, tikaClient, s, q)

	cfg := worker.Config{
		ReadyList:      queue.ListFileIngestion,
		ProcessingList: queue.ListFileProcessing,
		DeadLetterList: queue.ListDeadLettersFile,
		AttemptCap:     queue.AttemptCapFile,
		ReserveTimeout: *reserveTimeout,
		Handler:        handler,
	}

	logger.Printf("file-worker: starting %d workers on %s", *workerCount, cfg.ReadyList)

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

	logger.Println("file-worker: shutting down")
	cancel()
	<-done
}
