package logparse

import (
	"io"
	"os"
	"regexp"
	"strings"
)

// SourcetypeFormats maps dataset metadata sourcetype strings to the log
// format they imply. Built once at startup and treated as immutable.
var SourcetypeFormats = map[string]Format{
	"XmlWinEventLog":           FormatXMLEvent,
	"xmlwineventlog":           FormatXMLEvent,
	"WinEventLog":              FormatKeyValue,
	"wineventlog":              FormatKeyValue,
	"cloudtrail":               FormatJSON,
	"aws:cloudtrail":           FormatJSON,
	"google:workspace":         FormatJSON,
	"o365:management:activity": FormatJSON,
}

var isoTimestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`)

const (
	jsonHeadLimit    = 500
	genericHeadLimit = 1000
)

// Detect classifies a file into one of the supported formats.
//
// The hint, when present, is a sourcetype string from dataset metadata and is
// trusted for recognized substrings. Otherwise a bounded header is read and a
// fixed-priority chain of structural rules is applied. Detect never returns
// an error: unreadable or unrecognizable files classify as FormatUnknown.
func Detect(path, hint string) Format {
	if hint != "" {
		h := strings.ToLower(hint)
		if strings.Contains(h, "xmlwineventlog") || strings.Contains(h, "sysmon") {
			return FormatXMLEvent
		}
		if strings.Contains(h, "json") || strings.Contains(h, "cloudtrail") {
			return FormatJSON
		}
	}

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		head, err := readHead(path, jsonHeadLimit)
		if err != nil {
			return FormatUnknown
		}
		head = strings.TrimLeft(head, " \t\r\n")
		if strings.HasPrefix(head, "{") || strings.HasPrefix(head, "[") {
			return FormatJSON
		}
		// Some .json files are actually IIS/Exchange logs.
		if isoTimestampRe.MatchString(head) {
			return FormatDelimited
		}
	}

	head, err := readHead(path, genericHeadLimit)
	if err != nil {
		return FormatUnknown
	}
	head = strings.TrimLeft(head, " \t\r\n")

	// Structural rules, in fixed priority order.
	rules := []struct {
		match  func(string) bool
		format Format
	}{
		{func(h string) bool { return strings.HasPrefix(h, "<Event") }, FormatXMLEvent},
		{func(h string) bool { return strings.HasPrefix(h, "{") || strings.HasPrefix(h, "[") }, FormatJSON},
		{func(h string) bool { return strings.Contains(h, "LogName=") && strings.Contains(h, "EventCode=") }, FormatKeyValue},
		{func(h string) bool { return isoTimestampRe.MatchString(h) }, FormatDelimited},
		{hasKeyValueLines, FormatKeyValue},
	}
	for _, rule := range rules {
		if rule.match(head) {
			return rule.format
		}
	}

	return FormatUnknown
}

// hasKeyValueLines reports whether the header looks like a key=value log:
// at least three of the first lines contain an assignment.
func hasKeyValueLines(head string) bool {
	if !strings.Contains(head, "=") || !strings.Contains(head, "\n") {
		return false
	}
	count := 0
	for _, line := range strings.Split(head, "\n") {
		if strings.Contains(line, "=") {
			count++
			if count >= 3 {
				return true
			}
		}
	}
	return false
}

// readHead reads up to limit bytes from the start of the file.
func readHead(path string, limit int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, limit)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return string(buf[:n]), nil
}
