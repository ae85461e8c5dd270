// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package textproc

import (
	"time"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
)

// timestampLayouts are tried in order; the first one that parses wins.
var timestampLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01/02/2006 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTimestamp accepts RFC 3339 and a handful of common human formats
// (§3.1 Chunk.TimeStamp). An unparseable value is a user error, not a
// transient one: the caller supplied it.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ingesterr.User("textproc: unrecognized timestamp format %q", raw)
}
