package attack

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
)

// externalIDRe matches ATT&CK external ids for techniques (T1003,
// T1003.001) and tactics (TA0001).
var externalIDRe = regexp.MustCompile(`^(?:T|TA)\d{4}`)

// descriptionLimit caps descriptions without a paragraph break.
const descriptionLimit = 500

// stixObject is the union of the bundle object fields the loader consumes.
// STIX objects are heterogeneous; unknown fields are ignored.
type stixObject struct {
	Type            string   `json:"type"`
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Revoked         bool     `json:"revoked"`
	Deprecated      bool     `json:"x_mitre_deprecated"`
	ShortName       string   `json:"x_mitre_shortname"`
	Platforms       []string `json:"x_mitre_platforms"`
	DataSourceRef   string   `json:"x_mitre_data_source_ref"`
	KillChainPhases []struct {
		KillChainName string `json:"kill_chain_name"`
		PhaseName     string `json:"phase_name"`
	} `json:"kill_chain_phases"`
	ExternalReferences []struct {
		SourceName string `json:"source_name"`
		ExternalID string `json:"external_id"`
	} `json:"external_references"`
	RelationshipType string `json:"relationship_type"`
	SourceRef        string `json:"source_ref"`
	TargetRef        string `json:"target_ref"`
}

type stixBundle struct {
	Objects []stixObject `json:"objects"`
}

// Load parses a STIX bundle file into an indexed knowledge base.
//
// Revoked and deprecated objects are excluded entirely, along with every
// relationship touching them. Techniques are keyed by their first matching
// external catalog id; data components link to their source via the
// explicit reference when present, else a name-prefix heuristic. "detects"
// relationships populate both the technique's required-component list and
// the component's technique list; "subtechnique-of" records the parent.
//
// A missing or unparseable bundle returns a *KnowledgeError; this is the
// caller's one fatal startup condition.
func Load(path string) (*KnowledgeBase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, newKnowledgeError(ErrCodeBundleMissing, "failed to read knowledge bundle", path, err)
	}

	var bundle stixBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, newKnowledgeError(ErrCodeBundleMalformed, "failed to parse knowledge bundle", path, err)
	}

	// Bucket live objects by kind; revoked/deprecated objects never enter
	// the indexes, so relationships touching them resolve to nothing.
	var (
		techniquesRaw    []stixObject
		tacticsRaw       []stixObject
		dataSourcesRaw   []stixObject
		componentsRaw    []stixObject
		relationshipsRaw []stixObject
	)
	for _, obj := range bundle.Objects {
		if obj.Revoked || obj.Deprecated {
			continue
		}
		switch obj.Type {
		case "attack-pattern":
			techniquesRaw = append(techniquesRaw, obj)
		case "x-mitre-tactic":
			tacticsRaw = append(tacticsRaw, obj)
		case "x-mitre-data-source":
			dataSourcesRaw = append(dataSourcesRaw, obj)
		case "x-mitre-data-component":
			componentsRaw = append(componentsRaw, obj)
		case "relationship":
			relationshipsRaw = append(relationshipsRaw, obj)
		}
	}

	kb := &KnowledgeBase{
		Techniques:     make(map[string]*Technique),
		Tactics:        make(map[string]*Tactic),
		DataSources:    make(map[string]*DataSource),
		DataComponents: make(map[string]*DataComponent),
	}

	for _, t := range tacticsRaw {
		if t.ShortName == "" {
			continue
		}
		kb.Tactics[t.ShortName] = &Tactic{
			ShortName:  t.ShortName,
			Name:       t.Name,
			ExternalID: externalID(t),
			StixID:     t.ID,
		}
	}

	sourceNameByID := make(map[string]string, len(dataSourcesRaw))
	for _, ds := range dataSourcesRaw {
		kb.DataSources[ds.Name] = &DataSource{
			Name:        ds.Name,
			Description: firstParagraph(ds.Description),
			StixID:      ds.ID,
		}
		sourceNameByID[ds.ID] = ds.Name
	}

	componentNameByID := make(map[string]string, len(componentsRaw))
	for _, dc := range componentsRaw {
		comp := &DataComponent{
			Name:       dc.Name,
			DataSource: sourceNameByID[dc.DataSourceRef],
			StixID:     dc.ID,
		}
		kb.DataComponents[dc.Name] = comp
		componentNameByID[dc.ID] = dc.Name
	}

	// Backfill owning sources for components lacking the explicit
	// reference: the longest source name the component name starts with.
	for _, comp := range kb.DataComponents {
		if comp.DataSource == "" {
			comp.DataSource = sourceByPrefix(kb.DataSources, comp.Name)
		}
		if src, ok := kb.DataSources[comp.DataSource]; ok && !contains(src.Components, comp.Name) {
			src.Components = append(src.Components, comp.Name)
		}
	}

	techniqueIDByStix := make(map[string]string, len(techniquesRaw))
	for _, t := range techniquesRaw {
		catalogID := externalID(t)
		if catalogID == "" {
			continue
		}
		techniqueIDByStix[t.ID] = catalogID

		phases := make([]string, 0, len(t.KillChainPhases))
		for _, p := range t.KillChainPhases {
			if p.PhaseName != "" {
				phases = append(phases, p.PhaseName)
			}
		}

		kb.Techniques[catalogID] = &Technique{
			ID:          catalogID,
			Name:        t.Name,
			Description: firstParagraph(t.Description),
			Tactics:     phases,
			Platforms:   t.Platforms,
			StixID:      t.ID,
		}
	}

	for _, rel := range relationshipsRaw {
		switch rel.RelationshipType {
		case "detects":
			compName := componentNameByID[rel.SourceRef]
			techID := techniqueIDByStix[rel.TargetRef]
			if compName == "" || techID == "" {
				continue
			}
			comp := kb.DataComponents[compName]
			tech := kb.Techniques[techID]
			if !hasComponentRef(tech.DataComponents, compName) {
				tech.DataComponents = append(tech.DataComponents, ComponentRef{
					Source:    comp.DataSource,
					Component: compName,
				})
			}
			if !contains(comp.Techniques, techID) {
				comp.Techniques = append(comp.Techniques, techID)
			}

		case "subtechnique-of":
			childID := techniqueIDByStix[rel.SourceRef]
			parentID := techniqueIDByStix[rel.TargetRef]
			if childID != "" && parentID != "" {
				kb.Techniques[childID].ParentID = parentID
			}
		}
	}

	return kb, nil
}

// externalID extracts the catalog id (e.g. T1003.001, TA0006) from an
// object's external references.
func externalID(obj stixObject) string {
	for _, ref := range obj.ExternalReferences {
		if ref.ExternalID != "" && externalIDRe.MatchString(ref.ExternalID) {
			return ref.ExternalID
		}
	}
	return ""
}

// firstParagraph returns the text before the first blank line, or the first
// descriptionLimit characters when no paragraph break exists.
func firstParagraph(text string) string {
	if text == "" {
		return ""
	}
	if idx := strings.Index(text, "\n\n"); idx > 0 {
		return strings.TrimSpace(text[:idx])
	}
	if len(text) > descriptionLimit {
		text = text[:descriptionLimit]
	}
	return strings.TrimSpace(text)
}

// sourceByPrefix finds the longest source name the component name starts
// with (e.g. "Process Creation" belongs to "Process").
func sourceByPrefix(sources map[string]*DataSource, componentName string) string {
	best := ""
	for name := range sources {
		if name != "" && strings.HasPrefix(componentName, name) && len(name) > len(best) {
			best = name
		}
	}
	return best
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func hasComponentRef(refs []ComponentRef, component string) bool {
	for _, ref := range refs {
		if ref.Component == component {
			return true
		}
	}
	return false
}
