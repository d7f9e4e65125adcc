package logparse

import (
	"fmt"
	"os"
)

const (
	// MaxParseSize is the file size above which the event-count cap is
	// enforced; smaller files always parse in full.
	MaxParseSize = 5 * 1024 * 1024
	// DefaultMaxEvents is the event-count cap applied to oversized files
	// when the caller does not choose one.
	DefaultMaxEvents = 2000
)

// parserFunc is the shared shape of all format parsers.
type parserFunc func(path string, maxEvents int) ([]*Event, error)

// parsers maps each detectable format to its parser. Built once at startup
// and treated as immutable.
var parsers = map[Format]parserFunc{
	FormatXMLEvent:  ParseXMLEvents,
	FormatKeyValue:  ParseKeyValueEvents,
	FormatJSON:      ParseJSONEvents,
	FormatDelimited: ParseDelimitedEvents,
}

// LoadResult carries the events parsed from one file plus the metadata a
// caller needs to report truncation honestly.
type LoadResult struct {
	Events         []*Event
	Format         Format
	Loaded         int
	TotalEstimated int
	Truncated      bool
	FileSize       int64
	// Warning holds an advisory for recoverable conditions (unknown
	// format); the best-effort result is still returned.
	Warning string
}

// Load detects a file's format and parses it, enforcing the event-count cap
// on oversized files so a huge file cannot stall the caller. When truncated,
// TotalEstimated extrapolates the true event count from the bytes-per-event
// of the loaded prefix.
//
// An unknown format is not an error: the result carries a warning and zero
// events. Only a missing or unopenable file returns an error.
func Load(path string, maxEvents int, hint string) (*LoadResult, error) {
	return LoadCapped(path, maxEvents, MaxParseSize, hint)
}

// LoadCapped is Load with a caller-chosen oversize threshold.
func LoadCapped(path string, maxEvents int, maxParseSize int64, hint string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if maxParseSize <= 0 {
		maxParseSize = MaxParseSize
	}

	result := &LoadResult{
		Format:   Detect(path, hint),
		FileSize: info.Size(),
	}

	parse, ok := parsers[result.Format]
	if !ok {
		result.Warning = fmt.Sprintf("no parser for format %q", result.Format)
		return result, nil
	}

	// The cap only applies to oversized files; everything else parses in
	// full so counts stay exact.
	limit := 0
	if info.Size() > maxParseSize {
		limit = maxEvents
	}

	events, err := parse(path, limit)
	if err != nil {
		return nil, err
	}

	result.Events = events
	result.Loaded = len(events)
	result.TotalEstimated = len(events)

	if limit > 0 && len(events) >= limit {
		result.Truncated = true
		result.TotalEstimated = estimateTotal(events, info.Size())
	}

	return result, nil
}

// estimateTotal extrapolates the true event count of a truncated file from
// the bytes-per-event of the loaded prefix. The estimate never reports fewer
// events than were actually loaded.
func estimateTotal(events []*Event, fileSize int64) int {
	if len(events) == 0 {
		return 0
	}

	var prefixBytes int64
	for _, ev := range events {
		for _, key := range ev.Keys() {
			// key=value plus separator/newline overhead
			prefixBytes += int64(len(key) + len(ev.Get(key)) + 2)
		}
	}

	bytesPerEvent := float64(prefixBytes) / float64(len(events))
	if bytesPerEvent <= 0 {
		return len(events)
	}

	estimated := int(float64(fileSize) / bytesPerEvent)
	if estimated < len(events) {
		estimated = len(events)
	}
	return estimated
}
