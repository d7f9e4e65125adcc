package logparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSmallFileParsesInFull(t *testing.T) {
	path := writeTempFile(t, "security.log", keyValueSample)

	result, err := Load(path, 2, "")
	require.NoError(t, err)

	// Files under the size threshold ignore the cap entirely.
	assert.Equal(t, FormatKeyValue, result.Format)
	assert.Equal(t, 3, result.Loaded)
	assert.Equal(t, 3, result.TotalEstimated)
	assert.False(t, result.Truncated)
	assert.Empty(t, result.Warning)
}

func TestLoadUnknownFormat(t *testing.T) {
	path := writeTempFile(t, "mystery.log", "nothing recognizable here\n")

	result, err := Load(path, 0, "")
	require.NoError(t, err)
	assert.Equal(t, FormatUnknown, result.Format)
	assert.Empty(t, result.Events)
	assert.NotEmpty(t, result.Warning)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/file.log", 0, "")
	assert.Error(t, err)
}

func TestLoadOversizedFileTruncates(t *testing.T) {
	// Build a file just over the size threshold so the event cap applies.
	line := `{"eventName":"RunInstances","awsRegion":"us-east-1","padding":"` +
		strings.Repeat("p", 400) + `"}` + "\n"
	var sb strings.Builder
	for sb.Len() <= MaxParseSize {
		sb.WriteString(line)
	}
	path := writeTempFile(t, "big.json", sb.String())

	result, err := Load(path, 100, "")
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 100, result.Loaded)
	assert.LessOrEqual(t, result.Loaded, 100)
	assert.GreaterOrEqual(t, result.TotalEstimated, result.Loaded)
	// The file holds far more events than the cap; the extrapolation should
	// reflect that.
	assert.Greater(t, result.TotalEstimated, 1000)
}

func TestLoadCappedCustomThreshold(t *testing.T) {
	path := writeTempFile(t, "security.log", keyValueSample)

	// A tiny threshold makes even this small file "oversized".
	result, err := LoadCapped(path, 2, 16, "")
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, 2, result.Loaded)
	assert.GreaterOrEqual(t, result.TotalEstimated, 2)
}

func TestLoadHonorsHint(t *testing.T) {
	// Content alone would classify as JSON; the sysmon hint wins.
	path := writeTempFile(t, "ambiguous.log", `{"not":"xml"}`)

	result, err := Load(path, 0, "XmlWinEventLog:Microsoft-Windows-Sysmon/Operational")
	require.NoError(t, err)
	assert.Equal(t, FormatXMLEvent, result.Format)
	assert.Empty(t, result.Events)
}
