// Package attack loads a STIX 2.1 adversary-technique bundle into an
// indexed, immutable knowledge base of techniques, tactics, data sources,
// and data components. The bundle is loaded once per run and read-only
// thereafter.
package attack

// ComponentRef names one data component and its owning data source as
// required telemetry for a technique.
type ComponentRef struct {
	Source    string `json:"source"`
	Component string `json:"component"`
}

// Technique is a cataloged adversary behavior, optionally a sub-technique
// of a parent (ID form Txxxx.yyy).
type Technique struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Tactics holds kill-chain phase short-names.
	Tactics        []string       `json:"tactics"`
	Platforms      []string       `json:"platforms"`
	DataComponents []ComponentRef `json:"data_components"`
	// ParentID is the parent technique's ID when this is a sub-technique.
	ParentID string `json:"parent_id,omitempty"`
	StixID   string `json:"stix_id"`
}

// IsSubtechnique reports whether the technique has a recorded parent.
func (t *Technique) IsSubtechnique() bool {
	return t.ParentID != ""
}

// Tactic is a broad adversary goal grouping techniques.
type Tactic struct {
	ShortName  string `json:"short_name"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	StixID     string `json:"stix_id"`
}

// DataSource is a telemetry category owning one or more data components.
type DataSource struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	StixID      string   `json:"stix_id"`
	Components  []string `json:"components"`
}

// DataComponent is a specific detectable signal within a data source. It
// tracks back-references to the techniques it helps detect; whether it is
// actually detected in a dataset is derived per run by the coverage
// sampler, never stored here.
type DataComponent struct {
	Name       string   `json:"name"`
	DataSource string   `json:"data_source"`
	StixID     string   `json:"stix_id"`
	Techniques []string `json:"techniques"`
}

// TacticOrder is the canonical kill-chain ordering of enterprise tactics.
// It is authoritative regardless of the order objects appear in the bundle.
var TacticOrder = []string{
	"reconnaissance", "resource-development", "initial-access",
	"execution", "persistence", "privilege-escalation",
	"defense-evasion", "credential-access", "discovery",
	"lateral-movement", "collection", "command-and-control",
	"exfiltration", "impact",
}

// KnowledgeBase is the indexed, read-only model of the standards catalog.
type KnowledgeBase struct {
	// Techniques keyed by external catalog id (T1003, T1003.001, ...).
	Techniques map[string]*Technique
	// Tactics keyed by kill-chain short-name.
	Tactics map[string]*Tactic
	// DataSources and DataComponents keyed by display name.
	DataSources    map[string]*DataSource
	DataComponents map[string]*DataComponent
}

// TacticName returns the display name for a tactic short-name, falling back
// to the short-name itself for phases absent from the bundle.
func (kb *KnowledgeBase) TacticName(shortName string) string {
	if t, ok := kb.Tactics[shortName]; ok && t.Name != "" {
		return t.Name
	}
	return shortName
}

// TechniquesWithRequirements returns the ids of techniques that declare at
// least one required data component, in no particular order.
func (kb *KnowledgeBase) TechniquesWithRequirements() []string {
	var ids []string
	for id, t := range kb.Techniques {
		if len(t.DataComponents) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
