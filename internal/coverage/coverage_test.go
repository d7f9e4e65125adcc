package coverage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/dataset"
)

func buildCorpus(t *testing.T, files map[string]string) *dataset.Tree {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	tree, err := dataset.Scan(root)
	require.NoError(t, err)
	return tree
}

func knowledgeBase(reqs map[string][]attack.ComponentRef) *attack.KnowledgeBase {
	kb := &attack.KnowledgeBase{
		Techniques:     make(map[string]*attack.Technique),
		Tactics:        make(map[string]*attack.Tactic),
		DataSources:    make(map[string]*attack.DataSource),
		DataComponents: make(map[string]*attack.DataComponent),
	}
	for id, refs := range reqs {
		kb.Techniques[id] = &attack.Technique{
			ID:             id,
			Name:           id,
			Tactics:        []string{"credential-access"},
			DataComponents: refs,
		}
	}
	return kb
}

const sysmonChunk = `<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><EventID>1</EventID></System></Event>
<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><EventID>1</EventID></System></Event>
<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><EventID>3</EventID></System></Event>
`

const securityChunk = `10/21/2020 10:36:12 AM
LogName=Security
EventCode=4688
Message=A new process has been created.
`

const cloudtrailChunk = `{"Records": [
  {"eventName": "CreateUser", "eventSource": "iam.amazonaws.com"}
]}`

var seed7 = int64(7)

func TestSampleDetectsLogSignatures(t *testing.T) {
	tree := buildCorpus(t, map[string]string{
		"T1003/sysmon.log":   sysmonChunk,
		"T1059/security.log": securityChunk,
	})

	sampler := &Sampler{Seed: &seed7}
	detected, err := sampler.Sample(context.Background(), tree)
	require.NoError(t, err)

	proc := detected["Process Creation"]
	require.NotNil(t, proc)
	assert.Equal(t, 3, proc.Count, "two Sysmon EID 1 plus one EventCode 4688")
	assert.Equal(t, []string{"Sysmon EID 1", "WinSecurity EID 4688"}, proc.Sources)

	net := detected["Network Connection Creation"]
	require.NotNil(t, net)
	assert.Equal(t, 1, net.Count)
	assert.Equal(t, []string{"Sysmon EID 3"}, net.Sources)
}

func TestSampleDetectsJSONEventNames(t *testing.T) {
	tree := buildCorpus(t, map[string]string{
		"T1136/cloudtrail.json": cloudtrailChunk,
		"T1136/unknown.json":    `{"eventName": "ListWidgets"}`,
	})

	sampler := &Sampler{Seed: &seed7}
	detected, err := sampler.Sample(context.Background(), tree)
	require.NoError(t, err)

	user := detected["User Account Creation"]
	require.NotNil(t, user)
	assert.Equal(t, []string{"CloudTrail CreateUser"}, user.Sources)

	// Unmapped cloud event names still evidence generic cloud activity.
	fallback := detected["Cloud Service Enumeration"]
	require.NotNil(t, fallback)
	assert.Equal(t, []string{"CloudTrail ListWidgets"}, fallback.Sources)
}

func TestSampleJSONDisguisedAsLog(t *testing.T) {
	tree := buildCorpus(t, map[string]string{
		"T1136/cloudtrail.log": cloudtrailChunk,
	})

	sampler := &Sampler{Seed: &seed7}
	detected, err := sampler.Sample(context.Background(), tree)
	require.NoError(t, err)

	require.NotNil(t, detected["User Account Creation"], "brace-prefixed .log files classify as JSON")
}

func TestSampleSkipsUnreadableAndUnrecognized(t *testing.T) {
	tree := buildCorpus(t, map[string]string{
		"T1003/noise.log": "nothing recognizable here\njust text\n",
	})

	sampler := &Sampler{Seed: &seed7}
	detected, err := sampler.Sample(context.Background(), tree)
	require.NoError(t, err)
	assert.Empty(t, detected)
}

func TestAnalyzePartialCoverage(t *testing.T) {
	tree := buildCorpus(t, map[string]string{
		"T1003/sysmon.log": sysmonChunk,
	})
	kb := knowledgeBase(map[string][]attack.ComponentRef{
		"T1003": {
			{Source: "Process", Component: "Process Creation"},
			{Source: "Process", Component: "Process Access"},
		},
	})

	result, err := Analyze(context.Background(), tree, kb, &Sampler{Seed: &seed7})
	require.NoError(t, err)

	tc := result.Techniques["T1003"]
	require.NotNil(t, tc)
	assert.Equal(t, []string{"Process Creation", "Process Access"}, tc.Required)
	assert.Equal(t, []string{"Process Creation"}, tc.Covered)
	assert.Equal(t, []string{"Process Access"}, tc.Missing)
	assert.Equal(t, 50.0, tc.Pct)

	assert.Equal(t, 1, result.TechniquesWithRequirements)
	assert.Equal(t, 1, result.TechniquesWithData)
	assert.Equal(t, 100.0, result.OverallPct)
	assert.NotEmpty(t, result.RunID)
}

func TestAnalyzeExcludesZeroRequirementTechniques(t *testing.T) {
	tree := buildCorpus(t, map[string]string{
		"T1003/sysmon.log": sysmonChunk,
	})
	kb := knowledgeBase(map[string][]attack.ComponentRef{
		"T1003": {{Source: "Process", Component: "Process Creation"}},
		"T9998": nil,
	})

	result, err := Analyze(context.Background(), tree, kb, &Sampler{Seed: &seed7})
	require.NoError(t, err)

	assert.NotContains(t, result.Techniques, "T9998")
	assert.Equal(t, 1, result.TechniquesWithRequirements)
}

func TestAnalyzeEmptyCorpus(t *testing.T) {
	tree := buildCorpus(t, map[string]string{})
	kb := knowledgeBase(map[string][]attack.ComponentRef{
		"T1003": {{Source: "Process", Component: "Process Creation"}},
	})

	result, err := Analyze(context.Background(), tree, kb, &Sampler{Seed: &seed7})
	require.NoError(t, err)

	assert.Empty(t, result.Detected)
	assert.Equal(t, 0, result.TechniquesWithData)
	assert.Equal(t, 0.0, result.OverallPct)
	tc := result.Techniques["T1003"]
	require.NotNil(t, tc)
	assert.Equal(t, 0.0, tc.Pct)
}

func TestCoverageMonotonicity(t *testing.T) {
	kb := knowledgeBase(map[string][]attack.ComponentRef{
		"T1003": {
			{Source: "Process", Component: "Process Creation"},
			{Source: "Process", Component: "Process Access"},
		},
		"T1059": {
			{Source: "Script", Component: "Script Execution"},
		},
	})

	before := buildResult(map[string]*Detection{
		"Process Creation": {Count: 1},
	}, kb)
	after := buildResult(map[string]*Detection{
		"Process Creation": {Count: 1},
		"Process Access":   {Count: 1},
	}, kb)

	for id := range before.Techniques {
		assert.GreaterOrEqual(t, after.Techniques[id].Pct, before.Techniques[id].Pct,
			"adding a detected component never lowers %s", id)
	}
	assert.GreaterOrEqual(t, after.OverallPct, before.OverallPct)
}

func TestSamplerSeedReproducible(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 30; i++ {
		files[filepath.Join("T1003", "a"+string(rune('a'+i))+".log")] = sysmonChunk
	}
	tree := buildCorpus(t, files)

	sampler := &Sampler{Seed: &seed7, MaxLogFiles: 5}
	a, err := sampler.Sample(context.Background(), tree)
	require.NoError(t, err)
	b, err := sampler.Sample(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, a, b, "seeded sampling is reproducible")
}

func TestReadPrefixBoundsWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	content := strings.Repeat("EventCode=4688\n", 100)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// The window is filled completely, not left to a single short read.
	got, err := readPrefix(path, 64)
	require.NoError(t, err)
	assert.Len(t, got, 64)

	got, err = readPrefix(path, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, content, got, "limits beyond the file size read it whole")
}
