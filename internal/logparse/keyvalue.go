package logparse

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// kvTimestampRe matches the MM/DD/YYYY H:MM:SS AM/PM lines that open a
	// new event block.
	kvTimestampRe = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}\s+(?:AM|PM)$`)
	// kvKeyRe constrains field names to identifier-like tokens so message
	// body lines containing '=' are not mistaken for fields.
	kvKeyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ]*$`)
)

// messagePreviewLen is the cutoff above which a truncated MessagePreview
// field is added alongside the full Message.
const messagePreviewLen = 500

// ParseKeyValueEvents parses plain-text key=value windows event exports.
// Events are separated by timestamp lines; a Message field enters multi-line
// continuation until the next timestamp. maxEvents of zero means unlimited.
func ParseKeyValueEvents(path string, maxEvents int) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var (
		events     []*Event
		current    *Event
		currentKey string
		inMessage  bool
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if kvTimestampRe.MatchString(strings.TrimSpace(line)) {
			if current != nil {
				finalizeKeyValueEvent(current)
				events = append(events, current)
				if maxEvents > 0 && len(events) >= maxEvents {
					return events, nil
				}
			}
			current = NewEvent(path, FormatKeyValue)
			current.Set("Timestamp", strings.TrimSpace(line))
			currentKey = ""
			inMessage = false
			continue
		}

		if current == nil {
			continue
		}

		if !inMessage && strings.Contains(line, "=") &&
			!strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			key, value, _ := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			if key != "" && kvKeyRe.MatchString(key) {
				currentKey = key
				current.Set(key, strings.TrimSpace(value))
				if key == "Message" {
					inMessage = true
				}
				continue
			}
		}

		// Continuation lines append to the open field.
		if inMessage && currentKey == "Message" {
			current.Set("Message", current.Get("Message")+"\n"+line)
		} else if currentKey != "" && strings.TrimSpace(line) != "" {
			current.Set(currentKey, current.Get(currentKey)+"\n"+line)
		}
	}

	if current != nil {
		finalizeKeyValueEvent(current)
		events = append(events, current)
	}

	return events, nil
}

// finalizeKeyValueEvent trims the accumulated message body and records a
// bounded preview for oversized messages.
func finalizeKeyValueEvent(ev *Event) {
	msg := ev.Get("Message")
	if msg == "" {
		return
	}
	ev.Set("Message", strings.TrimSpace(msg))
	if len(msg) > messagePreviewLen {
		ev.Set("MessagePreview", msg[:messagePreviewLen]+"...")
	}
}
