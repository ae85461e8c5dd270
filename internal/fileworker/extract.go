// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package fileworker

import (
	"context"
	"fmt"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
)

// extractViaOCR implements §4.2 step 3: submit the PDF to the OCR task
// service and poll it to completion, returning one chunk HTML per page.
func (h *Handler) extractViaOCR(ctx context.Context, fileName string, content []byte) ([]string, error) {
	taskID, err := h.OCR.CreateTask(ctx, fileName, content)
	if err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("ocr create task: %w", err))
	}
	pages, err := h.OCR.PollTask(ctx, taskID)
	if err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("ocr poll task %s: %w", taskID, err))
	}
	return pages, nil
}

// extractViaTika implements §4.2 step 4: PUT the raw bytes to Tika and
// treat an empty result as a fatal (non-retryable) failure of the job,
// since resubmitting the same bytes to the same extractor will not
// produce a different outcome.
func (h *Handler) extractViaTika(ctx context.Context, content []byte) ([]string, error) {
	html, err := h.Tika.ExtractHTML(ctx, content)
	if err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("tika extract: %w", err))
	}
	if html == "" {
		return nil, ingesterr.User("fileworker: tika returned empty extraction")
	}
	return []string{html}, nil
}
