package attack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBundle = `{
  "type": "bundle",
  "objects": [
    {
      "type": "x-mitre-tactic",
      "id": "x-mitre-tactic--1",
      "name": "Credential Access",
      "x_mitre_shortname": "credential-access",
      "external_references": [{"source_name": "mitre-attack", "external_id": "TA0006"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1003",
      "name": "OS Credential Dumping",
      "description": "Adversaries may attempt to dump credentials.\n\nSecond paragraph to be dropped.",
      "x_mitre_platforms": ["Windows", "Linux"],
      "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "credential-access"}],
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1003"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1003-001",
      "name": "LSASS Memory",
      "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "credential-access"}],
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1003.001"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--revoked",
      "name": "Old Technique",
      "revoked": true,
      "external_references": [{"source_name": "mitre-attack", "external_id": "T9999"}]
    },
    {
      "type": "x-mitre-data-source",
      "id": "x-mitre-data-source--process",
      "name": "Process",
      "description": "Process telemetry."
    },
    {
      "type": "x-mitre-data-component",
      "id": "x-mitre-data-component--proc-creation",
      "name": "Process Creation",
      "x_mitre_data_source_ref": "x-mitre-data-source--process"
    },
    {
      "type": "x-mitre-data-component",
      "id": "x-mitre-data-component--proc-access",
      "name": "Process Access"
    },
    {
      "type": "relationship",
      "id": "relationship--detects-1",
      "relationship_type": "detects",
      "source_ref": "x-mitre-data-component--proc-creation",
      "target_ref": "attack-pattern--t1003"
    },
    {
      "type": "relationship",
      "id": "relationship--detects-dup",
      "relationship_type": "detects",
      "source_ref": "x-mitre-data-component--proc-creation",
      "target_ref": "attack-pattern--t1003"
    },
    {
      "type": "relationship",
      "id": "relationship--detects-2",
      "relationship_type": "detects",
      "source_ref": "x-mitre-data-component--proc-access",
      "target_ref": "attack-pattern--t1003"
    },
    {
      "type": "relationship",
      "id": "relationship--detects-revoked",
      "relationship_type": "detects",
      "source_ref": "x-mitre-data-component--proc-creation",
      "target_ref": "attack-pattern--revoked"
    },
    {
      "type": "relationship",
      "id": "relationship--sub",
      "relationship_type": "subtechnique-of",
      "source_ref": "attack-pattern--t1003-001",
      "target_ref": "attack-pattern--t1003"
    }
  ]
}`

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enterprise-attack.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadIndexesTechniques(t *testing.T) {
	kb, err := Load(writeBundle(t, testBundle))
	require.NoError(t, err)

	tech := kb.Techniques["T1003"]
	require.NotNil(t, tech)
	assert.Equal(t, "OS Credential Dumping", tech.Name)
	assert.Equal(t, "Adversaries may attempt to dump credentials.", tech.Description,
		"description keeps only the first paragraph")
	assert.Equal(t, []string{"credential-access"}, tech.Tactics)
	assert.Equal(t, []string{"Windows", "Linux"}, tech.Platforms)
}

func TestLoadExcludesRevoked(t *testing.T) {
	kb, err := Load(writeBundle(t, testBundle))
	require.NoError(t, err)

	assert.NotContains(t, kb.Techniques, "T9999")
	// The detects relationship pointing at the revoked technique must not
	// leak into the component's back-references.
	comp := kb.DataComponents["Process Creation"]
	require.NotNil(t, comp)
	assert.Equal(t, []string{"T1003"}, comp.Techniques)
}

func TestLoadDetectsRelationships(t *testing.T) {
	kb, err := Load(writeBundle(t, testBundle))
	require.NoError(t, err)

	tech := kb.Techniques["T1003"]
	require.NotNil(t, tech)
	require.Len(t, tech.DataComponents, 2, "duplicate detects relationships collapse")
	assert.Equal(t, ComponentRef{Source: "Process", Component: "Process Creation"}, tech.DataComponents[0])
	assert.Equal(t, ComponentRef{Source: "Process", Component: "Process Access"}, tech.DataComponents[1])
}

func TestLoadComponentSourceHeuristic(t *testing.T) {
	kb, err := Load(writeBundle(t, testBundle))
	require.NoError(t, err)

	// "Process Access" has no explicit source ref; the prefix heuristic
	// links it to "Process".
	comp := kb.DataComponents["Process Access"]
	require.NotNil(t, comp)
	assert.Equal(t, "Process", comp.DataSource)

	src := kb.DataSources["Process"]
	require.NotNil(t, src)
	assert.ElementsMatch(t, []string{"Process Creation", "Process Access"}, src.Components)
}

func TestLoadSubtechniqueParent(t *testing.T) {
	kb, err := Load(writeBundle(t, testBundle))
	require.NoError(t, err)

	sub := kb.Techniques["T1003.001"]
	require.NotNil(t, sub)
	assert.True(t, sub.IsSubtechnique())
	assert.Equal(t, "T1003", sub.ParentID)
	assert.False(t, kb.Techniques["T1003"].IsSubtechnique())
}

func TestLoadTactics(t *testing.T) {
	kb, err := Load(writeBundle(t, testBundle))
	require.NoError(t, err)

	tac := kb.Tactics["credential-access"]
	require.NotNil(t, tac)
	assert.Equal(t, "Credential Access", tac.Name)
	assert.Equal(t, "TA0006", tac.ExternalID)
	assert.Equal(t, "Credential Access", kb.TacticName("credential-access"))
	assert.Equal(t, "impact", kb.TacticName("impact"), "unknown tactics fall back to the short-name")

	// Canonical ordering is fixed, independent of the bundle.
	assert.Len(t, TacticOrder, 14)
	assert.Equal(t, "reconnaissance", TacticOrder[0])
	assert.Equal(t, "impact", TacticOrder[13])
}

func TestLoadMissingBundleIsFatal(t *testing.T) {
	_, err := Load("/nonexistent/enterprise-attack.json")
	require.Error(t, err)

	var ke *KnowledgeError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, ErrCodeBundleMissing, ke.Code)
}

func TestLoadMalformedBundleIsFatal(t *testing.T) {
	_, err := Load(writeBundle(t, "{not json"))
	require.Error(t, err)

	var ke *KnowledgeError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, ErrCodeBundleMalformed, ke.Code)
}

func TestTechniquesWithRequirements(t *testing.T) {
	kb, err := Load(writeBundle(t, testBundle))
	require.NoError(t, err)

	ids := kb.TechniquesWithRequirements()
	assert.Equal(t, []string{"T1003"}, ids)
}
