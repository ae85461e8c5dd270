// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package fileworker implements the file worker (§4.2): fetch a blob,
// extract its text via pdf2md OCR or Tika, write the file record, coarse
// chunk the extracted text, create a group for it, and enqueue one bulk
// chunk ingestion message. Grounded on
// original_source/server/src/bin/file-worker.rs's upload_file for
// control flow, reshaped into the dispatch-loop worker.Handler contract
// internal/ingestion.Handler already uses.
package fileworker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/blobstore"
	"github.com/northbound-system/hive-ingest/internal/events"
	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
	"github.com/northbound-system/hive-ingest/internal/ocr"
	"github.com/northbound-system/hive-ingest/internal/queue"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/textproc"
)

// Handler wires blob storage, the two extraction clients, and the
// relational store into the dispatch loop.
type Handler struct {
	Blob  *blobstore.Store
	OCR   *ocr.OCRClient
	Tika  *ocr.TikaClient
	Store *store.Store
	Queue queue.Queue
}

// NewHandler builds a Handler from already-constructed infrastructure
// clients, as cmd/file-worker's main does at startup.
func NewHandler(blob *blobstore.Store, ocrClient *ocr.OCRClient, tika *ocr.TikaClient, s *store.Store, q queue.Queue) *Handler {
	return &Handler{Blob: blob, OCR: ocrClient, Tika: tika, Store: s, Queue: q}
}

// Handle implements worker.Handler.
func (h *Handler) Handle(ctx context.Context, raw []byte) error {
	var msg models.FileMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ingesterr.User("fileworker: unparseable message: %v", err)
	}

	fileID, err := h.process(ctx, msg)
	if err != nil {
		return err
	}
	if fileID != uuid.Nil {
		log.Printf("fileworker: processed file=%s dataset=%s", fileID, msg.DatasetID)
	}
	return nil
}

// Attempt implements worker.Handler.
func (h *Handler) Attempt(raw []byte) (int, error) {
	var msg models.FileMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, err
	}
	return msg.AttemptNumber, nil
}

// Reinject implements worker.Handler.
func (h *Handler) Reinject(raw []byte) ([]byte, error) {
	var msg models.FileMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	msg = msg.WithAttempt(msg.AttemptNumber + 1)
	return json.Marshal(msg)
}

// DeadLetterEvent implements worker.EventDescriber (§4.2 "dead-letter to
// dead_letters_file and emit a failure event").
func (h *Handler) DeadLetterEvent(raw []byte, cause string) events.DeadLetterEvent {
	var msg models.FileMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return events.DeadLetterEvent{Cause: cause}
	}
	fileID := msg.FileID
	return events.DeadLetterEvent{DatasetID: msg.DatasetID, FileID: &fileID, Cause: cause}
}

// process implements §4.2's process(file_msg) steps 1-7.
func (h *Handler) process(ctx context.Context, msg models.FileMessage) (uuid.UUID, error) {
	body, err := h.Blob.Get(ctx, msg.FileID.String())
	if err != nil {
		return uuid.Nil, ingesterr.Transient(fmt.Errorf("fetch blob %s: %w", msg.FileID, err))
	}
	fileData, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return uuid.Nil, ingesterr.Transient(fmt.Errorf("read blob %s: %w", msg.FileID, err))
	}

	isPDF := strings.HasSuffix(strings.ToLower(msg.UploadFileData.FileName), ".pdf")

	// perPageChunks marks chunkHTMLs entries that already are the final
	// chunk boundaries (one per OCR page) and must not be re-split by the
	// coarse chunker below.
	var chunkHTMLs []string
	var perPageChunks bool
	switch {
	case isPDF && msg.UploadFileData.UsePdf2mdOCR:
		chunkHTMLs, err = h.extractViaOCR(ctx, msg.UploadFileData.FileName, fileData)
		if err != nil {
			return uuid.Nil, err
		}
		perPageChunks = true
	case isPDF:
		if pages, localErr := extractLocalPDFText(fileData); localErr == nil {
			chunkHTMLs = pages
		} else {
			log.Printf("fileworker: local pdf extraction unavailable for file %s, falling back to tika: %v", msg.FileID, localErr)
			chunkHTMLs, err = h.extractViaTika(ctx, fileData)
			if err != nil {
				return uuid.Nil, err
			}
		}
	default:
		chunkHTMLs, err = h.extractViaTika(ctx, fileData)
		if err != nil {
			return uuid.Nil, err
		}
	}

	sizeMB := sizeInMB(len(fileData))
	if err := h.Store.CreateFileRecord(ctx, msg.FileID, msg.DatasetID, msg.UploadFileData.FileName, sizeMB, msg.UploadFileData.Metadata, msg.UploadFileData.Link, nil); err != nil {
		return uuid.Nil, err
	}

	if !msg.UploadFileData.ShouldCreateChunks() {
		return msg.FileID, nil
	}

	var windows []string
	for _, html := range chunkHTMLs {
		text, err := textproc.StripHTML(html)
		if err != nil {
			return uuid.Nil, ingesterr.User("fileworker: strip html for file %s: %v", msg.FileID, err)
		}
		if perPageChunks {
			// OCR page boundaries are already the chunk boundaries (§8
			// scenario 4): one chunk_html per page, not re-split.
			if text != "" {
				windows = append(windows, text)
			}
			continue
		}
		windows = append(windows, textproc.ChunkByTokens(text, textproc.CoarseWindow)...)
	}
	if len(windows) == 0 {
		return msg.FileID, nil
	}

	groupID := uuid.New()
	if err := h.Store.CreateGroup(ctx, groupID, msg.DatasetID, msg.UploadFileData.FileName, &msg.FileID); err != nil {
		return uuid.Nil, err
	}
	if err := h.Store.AttachFileToGroup(ctx, groupID, msg.FileID); err != nil {
		return uuid.Nil, err
	}

	bulk := models.BulkUploadPayload{
		DatasetID:         msg.DatasetID,
		IngestionMessages: make([]models.RawChunkMessage, len(windows)),
	}
	for i, text := range windows {
		bulk.IngestionMessages[i] = models.RawChunkMessage{
			ChunkID:   uuid.New(),
			ChunkHTML: text,
			TagSet:    msg.UploadFileData.TagSet,
			Metadata:  msg.UploadFileData.Metadata,
			Link:      msg.UploadFileData.Link,
			GroupIDs:  append([]uuid.UUID{groupID}, msg.UploadFileData.GroupIDs...),
		}
	}

	out := models.IngestionMessage{Kind: models.IngestionKindBulkUpload, BulkUpload: &bulk}
	payload, err := json.Marshal(out)
	if err != nil {
		return uuid.Nil, ingesterr.Transientf("fileworker: marshal bulk message: %w", err)
	}
	if err := h.Queue.Enqueue(ctx, queue.ListIngestion, payload); err != nil {
		return uuid.Nil, ingesterr.Transient(fmt.Errorf("enqueue bulk message for file %s: %w", msg.FileID, err))
	}

	return msg.FileID, nil
}

func sizeInMB(bytes int) int {
	mb := float64(bytes) / 1024.0 / 1024.0
	if mb < 0 {
		return 0
	}
	return int(mb + 0.5)
}
