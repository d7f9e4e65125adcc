package logparse

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// namespaceDeclRe matches inline xmlns declarations so each line can be
// parsed without namespace resolution.
var namespaceDeclRe = regexp.MustCompile(`\s+xmlns(?::\w+)?=(?:'[^']*'|"[^"]*")`)

// xmlEventRecord mirrors the subset of the windows event schema the
// extractor consumes: the System header plus named EventData values.
type xmlEventRecord struct {
	System struct {
		Provider struct {
			Name string `xml:"Name,attr"`
			Guid string `xml:"Guid,attr"`
		} `xml:"Provider"`
		EventID       string `xml:"EventID"`
		Level         string `xml:"Level"`
		Task          string `xml:"Task"`
		Opcode        string `xml:"Opcode"`
		Keywords      string `xml:"Keywords"`
		EventRecordID string `xml:"EventRecordID"`
		Channel       string `xml:"Channel"`
		Computer      string `xml:"Computer"`
		TimeCreated   struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
		Execution struct {
			ProcessID string `xml:"ProcessID,attr"`
			ThreadID  string `xml:"ThreadID,attr"`
		} `xml:"Execution"`
		Security struct {
			UserID    string `xml:"UserID,attr"`
			UserIDAlt string `xml:"UserId,attr"`
		} `xml:"Security"`
	} `xml:"System"`
	EventData struct {
		Data []struct {
			Name  string `xml:"Name,attr"`
			Value string `xml:",chardata"`
		} `xml:"Data"`
	} `xml:"EventData"`
}

// ParseXMLEvents parses windows event log exports where each line is a
// standalone <Event> element. Unparseable lines are skipped. maxEvents of
// zero means unlimited.
func ParseXMLEvents(path string, maxEvents int) ([]*Event, error) {
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
		if line == "" || !strings.HasPrefix(line, "<Event") {
			continue
		}

		clean := namespaceDeclRe.ReplaceAllString(line, "")

		var rec xmlEventRecord
		if err := xml.Unmarshal([]byte(clean), &rec); err != nil {
			continue
		}

		ev := xmlRecordToEvent(path, &rec)
		if ev == nil {
			continue
		}
		events = append(events, ev)

		if maxEvents > 0 && len(events) >= maxEvents {
			break
		}
	}
	// Scanner errors (e.g. an oversized line) end the scan; events parsed
	// so far are still returned.

	return events, nil
}

// xmlRecordToEvent converts a decoded record into a flat event. Returns nil
// when the record carried no usable fields.
func xmlRecordToEvent(path string, rec *xmlEventRecord) *Event {
	ev := NewEvent(path, FormatXMLEvent)

	setIf := func(key, value string) {
		if value != "" {
			ev.Set(key, value)
		}
	}

	sys := rec.System
	setIf("ProviderName", sys.Provider.Name)
	setIf("ProviderGuid", sys.Provider.Guid)
	setIf("EventID", strings.TrimSpace(sys.EventID))
	setIf("Level", strings.TrimSpace(sys.Level))
	setIf("Task", strings.TrimSpace(sys.Task))
	setIf("Opcode", strings.TrimSpace(sys.Opcode))
	setIf("Keywords", strings.TrimSpace(sys.Keywords))
	setIf("EventRecordID", strings.TrimSpace(sys.EventRecordID))
	setIf("Channel", strings.TrimSpace(sys.Channel))
	setIf("Computer", strings.TrimSpace(sys.Computer))
	setIf("TimeCreated", sys.TimeCreated.SystemTime)
	setIf("ProcessID", sys.Execution.ProcessID)
	setIf("ThreadID", sys.Execution.ThreadID)

	uid := sys.Security.UserID
	if uid == "" {
		uid = sys.Security.UserIDAlt
	}
	setIf("UserID", uid)

	for _, d := range rec.EventData.Data {
		if d.Name != "" {
			ev.Set(d.Name, strings.TrimSpace(d.Value))
		}
	}

	if ev.Len() == 0 {
		return nil
	}
	return ev
}
