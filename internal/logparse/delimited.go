package logparse

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// delimitedFields is the fixed positional schema of IIS/Exchange access
// logs, in column order.
var delimitedFields = []string{
	"date", "time", "server_ip", "method", "uri_stem", "uri_query",
	"port", "username", "client_ip", "user_agent", "protocol_status",
	"protocol_substatus", "win32_status", "time_taken",
}

// ParseDelimitedEvents parses space-delimited IIS/Exchange log files.
// Comment lines and lines without the leading timestamp are skipped; the
// "-" placeholder maps to an empty string. maxEvents of zero means
// unlimited.
func ParseDelimitedEvents(path string, maxEvents int) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var events []*Event

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !isoTimestampRe.MatchString(line) {
			continue
		}

		parts := strings.Fields(line)
		ev := NewEvent(path, FormatDelimited)

		for i, field := range delimitedFields {
			if i >= len(parts) {
				break
			}
			val := parts[i]
			if val == "-" {
				val = ""
			}
			ev.Set(field, val)
		}

		if ev.Get("date") != "" && ev.Get("time") != "" {
			ev.Set("Timestamp", ev.Get("date")+" "+ev.Get("time"))
		}

		if len(parts) > len(delimitedFields) {
			ev.Set("extra_fields", strings.Join(parts[len(delimitedFields):], " "))
		}

		events = append(events, ev)

		if maxEvents > 0 && len(events) >= maxEvents {
			break
		}
	}

	return events, nil
}
