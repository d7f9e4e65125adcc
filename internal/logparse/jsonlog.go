package logparse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

const (
	// jsonFlattenDepth bounds recursion when flattening nested objects.
	jsonFlattenDepth = 3
	// jsonArrayFlattenMax is the largest array flattened per-index; longer
	// arrays are stringified whole.
	jsonArrayFlattenMax = 5
)

// ParseJSONEvents parses JSON log files, accepting both a top-level array of
// objects and newline-delimited objects. Each object is flattened to a
// single level with dot-joined keys in source order. Malformed entries are
// skipped. maxEvents of zero means unlimited.
func ParseJSONEvents(path string, maxEvents int) ([]*Event, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return nil, nil
	}

	var events []*Event

	if content[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(content, &items); err != nil {
			return nil, nil
		}
		for _, item := range items {
			ev := flattenJSONObject(path, item)
			if ev == nil {
				continue
			}
			events = append(events, ev)
			if maxEvents > 0 && len(events) >= maxEvents {
				break
			}
		}
		return events, nil
	}

	for _, line := range bytes.Split(content, []byte("\n")) {
		line = bytes.TrimSpace(line)
		ev := flattenJSONObject(path, line)
		if ev == nil {
			continue
		}
		events = append(events, ev)
		if maxEvents > 0 && len(events) >= maxEvents {
			break
		}
	}

	return events, nil
}

// flattenJSONObject flattens one raw JSON object into a single-level event.
// Returns nil when raw is not a valid object.
func flattenJSONObject(path string, raw json.RawMessage) *Event {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' || !json.Valid(raw) {
		return nil
	}
	ev := NewEvent(path, FormatJSON)
	flattenJSONValue(raw, "", ev, 0)
	return ev
}

// flattenJSONValue walks a raw JSON value, writing flat dotted keys into the
// event. Object key order is preserved by re-scanning each object with a
// token decoder instead of decoding into a map.
func flattenJSONValue(raw json.RawMessage, prefix string, ev *Event, depth int) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}

	if depth >= jsonFlattenDepth {
		ev.Set(prefix, stringifyJSON(raw))
		return
	}

	switch raw[0] {
	case '{':
		for _, item := range objectItems(raw) {
			key := item.key
			if prefix != "" {
				key = prefix + "." + key
			}
			flattenJSONValue(item.value, key, ev, depth+1)
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return
		}
		if len(items) <= jsonArrayFlattenMax {
			for i, item := range items {
				flattenJSONValue(item, fmt.Sprintf("%s[%d]", prefix, i), ev, depth+1)
			}
		} else {
			ev.Set(prefix, stringifyJSON(raw))
		}
	default:
		ev.Set(prefix, stringifyJSON(raw))
	}
}

type jsonMember struct {
	key   string
	value json.RawMessage
}

// objectItems returns an object's members in source order.
func objectItems(raw json.RawMessage) []jsonMember {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil { // opening brace
		return nil
	}

	var members []jsonMember
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return members
		}
		key, ok := keyTok.(string)
		if !ok {
			return members
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return members
		}
		members = append(members, jsonMember{key: key, value: value})
	}
	return members
}

// stringifyJSON renders a raw JSON value as a flat string: strings bare,
// null as empty, everything else as its compact source text.
func stringifyJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		return compact.String()
	}
	return string(raw)
}
