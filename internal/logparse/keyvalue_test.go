package logparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyValueSample = `01/02/2023 3:04:05 PM
LogName=Security
EventCode=4624
ComputerName=victim.attackrange.local
Message=An account was successfully logged on.

Subject:
	Security ID:		S-1-0-0
01/02/2023 3:04:06 PM
LogName=Security
EventCode=4625
ComputerName=victim.attackrange.local
01/02/2023 3:04:07 PM
LogName=Security
EventCode=4688
ComputerName=victim.attackrange.local
User=ATTACKRANGE\victim
Message=A new process has been created.

New Process Name: C:\a.exe
Creator Process Name: C:\b.exe
`

func TestParseKeyValueEvents(t *testing.T) {
	path := writeTempFile(t, "security.log", keyValueSample)

	events, err := ParseKeyValueEvents(path, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "01/02/2023 3:04:05 PM", events[0].Get("Timestamp"))
	assert.Equal(t, "4624", events[0].Get("EventCode"))
	assert.Contains(t, events[0].Get("Message"), "successfully logged on")
	assert.Contains(t, events[0].Get("Message"), "Security ID")

	assert.Equal(t, "4625", events[1].Get("EventCode"))

	third := events[2]
	assert.Equal(t, "4688", third.Get("EventCode"))
	assert.Contains(t, third.Get("Message"), `New Process Name: C:\a.exe`)
	assert.Contains(t, third.Get("Message"), `Creator Process Name: C:\b.exe`)
}

func TestParseKeyValueEventsMessagePreview(t *testing.T) {
	long := strings.Repeat("x", 600)
	content := "01/02/2023 3:04:05 PM\nEventCode=4104\nMessage=" + long + "\n"
	path := writeTempFile(t, "security.log", content)

	events, err := ParseKeyValueEvents(path, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	preview := events[0].Get("MessagePreview")
	require.NotEmpty(t, preview)
	assert.Len(t, preview, messagePreviewLen+3)
	assert.True(t, strings.HasSuffix(preview, "..."))
}

func TestParseKeyValueEventsContinuationAppendsToLastKey(t *testing.T) {
	content := "01/02/2023 3:04:05 PM\nEventCode=7045\nServiceName=evil\n  continued value\n"
	path := writeTempFile(t, "security.log", content)

	events, err := ParseKeyValueEvents(path, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Get("ServiceName"), "continued value")
}

func TestParseKeyValueEventsMaxEvents(t *testing.T) {
	path := writeTempFile(t, "security.log", keyValueSample)

	events, err := ParseKeyValueEvents(path, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestParseKeyValueEventsIgnoresLeadingGarbage(t *testing.T) {
	content := "garbage before any timestamp\nEventCode=9999\n" + keyValueSample
	path := writeTempFile(t, "security.log", content)

	events, err := ParseKeyValueEvents(path, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "4624", events[0].Get("EventCode"))
}
