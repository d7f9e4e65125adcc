package coverage

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/dataset"
)

// TechniqueCoverage is one technique's coverage against its required data
// components.
type TechniqueCoverage struct {
	ID      string
	Name    string
	Tactics []string
	// Required lists every component the catalog says could detect this
	// technique; Covered and Missing partition it by presence in the
	// corpus sample.
	Required []string
	Covered  []string
	Missing  []string
	// Pct is covered/required as a percentage, rounded to one decimal.
	Pct float64
}

// Result is an immutable coverage snapshot of one sampling run.
type Result struct {
	RunID       string
	GeneratedAt time.Time
	// Detected holds the sampled evidence keyed by component name.
	Detected map[string]*Detection
	// Techniques holds per-technique coverage, keyed by catalog id.
	// Techniques with no required components are excluded.
	Techniques map[string]*TechniqueCoverage
	// OverallPct is the share of requirement-bearing techniques with at
	// least one covered component, rounded to one decimal.
	OverallPct                 float64
	TechniquesWithData         int
	TechniquesWithRequirements int
}

// Analyze samples the corpus and cross-references the detected components
// with each technique's catalog requirements.
func Analyze(ctx context.Context, tree *dataset.Tree, kb *attack.KnowledgeBase, sampler *Sampler) (*Result, error) {
	if sampler == nil {
		sampler = &Sampler{}
	}
	detected, err := sampler.Sample(ctx, tree)
	if err != nil {
		return nil, err
	}
	return buildResult(detected, kb), nil
}

// buildResult computes per-technique and overall coverage from a detection
// set. Split out so scoring can be tested without filesystem sampling.
func buildResult(detected map[string]*Detection, kb *attack.KnowledgeBase) *Result {
	result := &Result{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Detected:    detected,
		Techniques:  make(map[string]*TechniqueCoverage),
	}

	for id, tech := range kb.Techniques {
		if len(tech.DataComponents) == 0 {
			continue
		}
		result.TechniquesWithRequirements++

		tc := &TechniqueCoverage{
			ID:      id,
			Name:    tech.Name,
			Tactics: tech.Tactics,
		}
		for _, ref := range tech.DataComponents {
			tc.Required = append(tc.Required, ref.Component)
			if _, ok := detected[ref.Component]; ok {
				tc.Covered = append(tc.Covered, ref.Component)
			} else {
				tc.Missing = append(tc.Missing, ref.Component)
			}
		}
		tc.Pct = round1(float64(len(tc.Covered)) / float64(len(tc.Required)) * 100)
		if tc.Pct > 0 {
			result.TechniquesWithData++
		}
		result.Techniques[id] = tc
	}

	if result.TechniquesWithRequirements > 0 {
		result.OverallPct = round1(float64(result.TechniquesWithData) /
			float64(result.TechniquesWithRequirements) * 100)
	}
	return result
}

// TechniqueIDs returns the covered technique ids in natural catalog order.
func (r *Result) TechniqueIDs() []string {
	ids := make([]string, 0, len(r.Techniques))
	for id := range r.Techniques {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
