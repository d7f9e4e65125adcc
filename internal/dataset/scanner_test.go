package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree materializes a corpus layout: map of relative path to file
// content, directories created as needed.
func buildTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

const sampleMeta = `author: Jose Rodriguez
description: Credential dumping via lsass
date: '2020-10-21'
environment: shire
mitre_technique:
  - T1003.001
datasets:
  - name: security_events
    sourcetype: WinEventLog:Security
`

func TestScanBasicLayout(t *testing.T) {
	root := buildTree(t, map[string]string{
		"T1003.001/T1003.001.yml":             sampleMeta,
		"T1003.001/security_events.log":       "EventCode=4688\n",
		"T1003.001/sysmon_events.log":         "<Event>\n",
		"T1003.001/notes.zip":                 "ignored",
		"T1059/T1059.yml":                     "author: Ana\n",
		"T1059/powershell.log":                "EventCode=4104\n",
		"T1059/scenario_one/scenario_one.yml": "author: Ana\n",
		"T1059/scenario_one/cloudtrail.json":  "{}",
		"README.md":                           "not a technique",
		"tools/helper.py":                     "not a technique",
	})

	tree, err := Scan(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"T1003", "T1003.001", "T1059"}, tree.Order)

	sub := tree.Techniques["T1003.001"]
	require.NotNil(t, sub)
	assert.Equal(t, "Jose Rodriguez", sub.Meta.Author)
	assert.Equal(t, FlexStrings{"T1003.001"}, sub.Meta.Techniques)
	require.Len(t, sub.Files, 2, "zip files are skipped")
	assert.Equal(t, "security_events.log", sub.Files[0].Name)
	assert.Equal(t, "sysmon_events.log", sub.Files[1].Name)

	parent := tree.Techniques["T1059"]
	require.NotNil(t, parent)
	require.Len(t, parent.Scenarios, 1)
	scenario := parent.Scenarios[0]
	assert.Equal(t, "scenario_one", scenario.Name)
	assert.Equal(t, "Ana", scenario.Meta.Author)
	require.Len(t, scenario.Files, 1)
	assert.Equal(t, "cloudtrail.json", scenario.Files[0].Name)
}

func TestScanSynthesizesParents(t *testing.T) {
	root := buildTree(t, map[string]string{
		"T1003.001/a.log": "x",
		"T1003.002/b.log": "x",
	})

	tree, err := Scan(root)
	require.NoError(t, err)

	parent := tree.Techniques["T1003"]
	require.NotNil(t, parent, "parent synthesized from sub-technique folders")
	assert.Empty(t, parent.Files)
	assert.Equal(t, []string{"T1003.001", "T1003.002"}, tree.Grouped["T1003"])
	assert.Equal(t, []string{"T1003", "T1003.001", "T1003.002"}, tree.Order)
}

func TestScanNaturalOrder(t *testing.T) {
	root := buildTree(t, map[string]string{
		"T1110/a.log":     "x",
		"T1059.012/a.log": "x",
		"T1059.003/a.log": "x",
		"T1059/a.log":     "x",
	})

	tree, err := Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1059", "T1059.003", "T1059.012", "T1110"}, tree.Order)
}

func TestScanNestedScenarioFiles(t *testing.T) {
	root := buildTree(t, map[string]string{
		"T1021.002/lateral/host_a/deep/events.log": "EventCode=5140\n",
		"T1021.002/lateral/top.log":                "EventCode=4624\n",
	})

	tree, err := Scan(root)
	require.NoError(t, err)

	tech := tree.Techniques["T1021.002"]
	require.NotNil(t, tech)
	require.Len(t, tech.Scenarios, 1)
	files := tech.Scenarios[0].Files
	require.Len(t, files, 2, "deeply nested files are swept into the scenario")
	assert.Equal(t, "events.log", files[0].Name)
	assert.Equal(t, "top.log", files[1].Name)
}

func TestScanMissingDir(t *testing.T) {
	tree, err := Scan(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, tree.Techniques)
	assert.Empty(t, tree.Order)
}

func TestMetadataSourcetypeFor(t *testing.T) {
	meta := Metadata{Datasets: []DatasetRef{
		{Name: "security_events", Sourcetype: "WinEventLog:Security"},
		{Name: "cloudtrail", Sourcetype: "aws:cloudtrail"},
	}}

	assert.Equal(t, "WinEventLog:Security", meta.SourcetypeFor("host_security_events.log"))
	assert.Equal(t, "aws:cloudtrail", meta.SourcetypeFor("cloudtrail_run2.json"))
	assert.Equal(t, "", meta.SourcetypeFor("unrelated.log"))
}

func TestMetadataToleratesMalformedYAML(t *testing.T) {
	root := buildTree(t, map[string]string{
		"T1003/T1003.yml": "author: [unclosed\n",
		"T1003/a.log":     "x",
	})

	tree, err := Scan(root)
	require.NoError(t, err)
	tech := tree.Techniques["T1003"]
	assert.NotEmpty(t, tech.MetaPath, "path recorded even when parse fails")
	assert.Equal(t, Metadata{}, tech.Meta)
}

func TestMetadataNumericTechniqueIDs(t *testing.T) {
	root := buildTree(t, map[string]string{
		"T1003/T1003.yml": "mitre_technique:\n  - T1003\n  - 1003\n",
		"T1003/a.log":     "x",
	})

	tree, err := Scan(root)
	require.NoError(t, err)
	assert.Equal(t, FlexStrings{"T1003", "1003"}, tree.Techniques["T1003"].Meta.Techniques)
}

func TestNaturalLess(t *testing.T) {
	cases := []struct {
		a, b string
		less bool
	}{
		{"T1059", "T1110", true},
		{"T1059.003", "T1059.012", true},
		{"T1059", "T1059.001", true},
		{"T1110", "T1059.012", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.less, naturalLess(tc.a, tc.b), "%s < %s", tc.a, tc.b)
	}
}
