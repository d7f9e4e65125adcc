package quality

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/coverage"
)

func TestRatingAverage(t *testing.T) {
	r := Rating{
		DeviceCompleteness:    5,
		DataFieldCompleteness: 4,
		Timeliness:            3,
		Consistency:           2,
		Retention:             1,
	}
	assert.InDelta(t, 3.0, r.Average(), 1e-9)
	assert.True(t, r.HasScores())
	assert.False(t, Rating{}.HasScores())
	assert.Equal(t, 0.0, Rating{}.Average())
}

func TestDataSourceRatingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage", "data_sources_admin.yml")

	in := map[string]*DataSourceEntry{
		"Process Creation": {
			DateRegistered:        "2026-08-23",
			DateConnected:         "2026-08-23",
			AvailableForAnalytics: true,
			Products:              []string{"Sysmon EID 1"},
			Comment:               "reviewed",
			Quality: &Rating{
				DeviceCompleteness:    4,
				DataFieldCompleteness: 4,
				Timeliness:            3,
				Consistency:           4,
				Retention:             2,
			},
		},
		"Logon Session Creation": {AvailableForAnalytics: true},
	}
	require.NoError(t, SaveDataSourceRatings(path, in))

	out, err := LoadDataSourceRatings(path)
	require.NoError(t, err)
	require.Len(t, out, 2)

	proc := out["Process Creation"]
	require.NotNil(t, proc)
	assert.Equal(t, in["Process Creation"].Quality, proc.Quality)
	assert.Equal(t, []string{"Sysmon EID 1"}, proc.Products)
	assert.Nil(t, out["Logon Session Creation"].Quality,
		"entry saved without a data_quality block stays unrated")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "file_type: data-source-administration")
	assert.Contains(t, string(raw), "version: 1")
}

func TestLoadDataSourceRatingsZeroBlockIsPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds.yml")
	raw := `version: 1
file_type: data-source-administration
data_sources:
  - data_source_name: Process Creation
    data_quality:
      device_completeness: 0
      data_field_completeness: 0
      timeliness: 0
      consistency: 0
      retention: 0
  - data_source_name: File Access
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	out, err := LoadDataSourceRatings(path)
	require.NoError(t, err)

	require.NotNil(t, out["Process Creation"].Quality, "explicit zero block is a rating")
	assert.False(t, out["Process Creation"].Quality.HasScores())
	assert.Nil(t, out["File Access"].Quality, "no block means never rated")
}

func TestLoadDataSourceRatingsMissingFile(t *testing.T) {
	ratings, err := LoadDataSourceRatings(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestLoadDataSourceRatingsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("data_sources: [unclosed"), 0o644))

	_, err := LoadDataSourceRatings(path)
	require.Error(t, err)
}

func TestGenerateDataSourceRatings(t *testing.T) {
	result := &coverage.Result{
		Detected: map[string]*coverage.Detection{
			"Process Creation": {Count: 12, Sources: []string{"Sysmon EID 1", "WinSecurity EID 4688"}},
		},
	}

	ratings := GenerateDataSourceRatings(result)
	require.Len(t, ratings, 1)

	entry := ratings["Process Creation"]
	require.NotNil(t, entry)
	assert.True(t, entry.AvailableForAnalytics)
	assert.Equal(t, []string{"Sysmon EID 1", "WinSecurity EID 4688"}, entry.Products)
	assert.Equal(t, "Auto-detected from dataset (12 events)", entry.Comment)
	require.NotNil(t, entry.Quality, "generated entries carry a zeroed rating block")
	assert.False(t, entry.Quality.HasScores(), "generated entries await manual rating")
}

func TestTechniqueAdminRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "technique_admin.yml")

	in := map[string]*TechniqueEntry{
		"T1003": {
			Name:       "OS Credential Dumping",
			Visibility: ScoreComment{Score: 3, Comment: "lsass telemetry present"},
			Detection:  ScoreComment{Score: 1},
		},
	}
	require.NoError(t, SaveTechniqueAdmin(path, in))

	out, err := LoadTechniqueAdmin(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out["T1003"].Visibility.Score)
	assert.Equal(t, "lsass telemetry present", out["T1003"].Visibility.Comment)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "file_type: technique-administration")
}

func TestGenerateTechniqueAdmin(t *testing.T) {
	kb := &attack.KnowledgeBase{
		Techniques: map[string]*attack.Technique{
			"T1003": {ID: "T1003", Name: "OS Credential Dumping"},
			"T1059": {ID: "T1059", Name: "Command and Scripting Interpreter"},
		},
	}
	result := &coverage.Result{
		Techniques: map[string]*coverage.TechniqueCoverage{
			"T1003": {Pct: 50},
		},
	}

	entries := GenerateTechniqueAdmin(kb, result)
	require.Len(t, entries, 2)
	assert.Equal(t, "Auto: 50% data component coverage", entries["T1003"].Visibility.Comment)
	assert.Equal(t, 0, entries["T1003"].Visibility.Score)
	assert.Empty(t, entries["T1059"].Visibility.Comment)
}
