// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package textproc

import "strings"

// CoarseWindow is the target token count for the file worker's paragraph
// splitter and the single-chunk split-average path (§4.3.5, §4.4).
const CoarseWindow = 20

// ChunkByTokens splits text into windows of roughly CoarseWindow
// whitespace-delimited tokens each. It never splits inside a token and is
// deterministic: the same input always produces the same windows, unlike
// the sentence-boundary search in processor.Chunker.
func ChunkByTokens(text string, window int) []string {
	if window <= 0 {
		window = CoarseWindow
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	var windows []string
	for start := 0; start < len(tokens); start += window {
		end := start + window
		if end > len(tokens) {
			end = len(tokens)
		}
		windows = append(windows, strings.Join(tokens[start:end], " "))
	}
	return windows
}
