// Package logparse detects and parses the heterogeneous log formats found in
// attack-technique exercise datasets: XML windows event exports, plain-text
// key=value event logs, JSON/NDJSON cloud audit trails, and space-delimited
// IIS/Exchange access logs.
//
// All parsers are tolerant: individual records that fail to parse
// are skipped, never fatal. Only a failure to open the file surfaces as an
// error, since partial and corrupted logs are the norm in exercise datasets.
package logparse

// Format identifies one of the supported log file formats.
type Format string

const (
	// FormatXMLEvent is a windows event log export with one <Event> XML
	// element per line (sysmon, security, etc.).
	FormatXMLEvent Format = "xml-event"
	// FormatKeyValue is a plain-text windows event export with
	// timestamp-separated blocks of Key=Value lines.
	FormatKeyValue Format = "key-value"
	// FormatJSON is a JSON array of objects or newline-delimited JSON
	// objects (CloudTrail and similar cloud audit logs).
	FormatJSON Format = "json"
	// FormatDelimited is a space-delimited IIS/Exchange access log with a
	// fixed positional schema.
	FormatDelimited Format = "delimited-text"
	// FormatUnknown means no format could be determined. No parser is
	// invoked for unknown files.
	FormatUnknown Format = "unknown"
)

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// Event is a single parsed log record: an ordered, flat string-to-string
// mapping tagged with its source file and format. Nested structures are
// flattened to dotted paths by the parsers. Events are transient and never
// persisted; every consumer must tolerate missing keys since there is no
// shared schema across formats.
type Event struct {
	SourcePath string
	Format     Format

	keys   []string
	values map[string]string
}

// NewEvent creates an empty event tagged with its source file and format.
func NewEvent(sourcePath string, format Format) *Event {
	return &Event{
		SourcePath: sourcePath,
		Format:     format,
		values:     make(map[string]string),
	}
}

// Set stores a field value, preserving first-set key order. Setting an
// existing key overwrites the value without changing its position.
func (e *Event) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value for key, or the empty string when absent.
func (e *Event) Get(key string) string {
	return e.values[key]
}

// Has reports whether the event carries the given key.
func (e *Event) Has(key string) bool {
	_, ok := e.values[key]
	return ok
}

// Keys returns the field names in insertion order. The returned slice is
// shared with the event and must not be modified.
func (e *Event) Keys() []string {
	return e.keys
}

// Len returns the number of fields in the event.
func (e *Event) Len() int {
	return len(e.keys)
}
