// Package visibility blends corpus coverage with telemetry quality ratings
// into 0-5 per-technique visibility scores, tactic rollups, and an attack
// matrix navigator layer export.
package visibility

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/coverage"
	"github.com/ShehabAgain/threat-grapher/internal/quality"
)

// TechniqueScore is one technique's visibility result.
type TechniqueScore struct {
	ID      string
	Name    string
	Tactics []string
	// Score is the 0-5 visibility rating.
	Score int
	// CoveragePct is the share of required components detected, one
	// decimal. Zero-requirement techniques report 0.
	CoveragePct float64
	// QualityAvg is the mean quality of covered components that carry a
	// data_quality block on file, two decimals. Components without a
	// block are excluded from the mean; a present all-zero rating counts.
	QualityAvg    float64
	RequiredCount int
	CoveredCount  int
	Covered       []string
	Missing       []string
}

// TacticSummary aggregates technique scores within one tactic.
type TacticSummary struct {
	AvgScore float64
	Count    int
	// Covered counts techniques scoring above zero; Gaps the rest.
	Covered int
	Gaps    int
}

// Report is the full visibility assessment of one coverage run.
type Report struct {
	RunID string
	// TechniqueScores keyed by catalog id; every catalog technique
	// appears, including zero-requirement ones at score 0.
	TechniqueScores map[string]*TechniqueScore
	// TacticSummaries keyed by tactic short-name.
	TacticSummaries map[string]*TacticSummary
	// OverallScore is the mean technique score, two decimals.
	OverallScore float64
}

// Score assesses every catalog technique against the coverage run and the
// quality ratings on file.
func Score(kb *attack.KnowledgeBase, cov *coverage.Result, ratings map[string]*quality.DataSourceEntry) *Report {
	report := &Report{
		RunID:           uuid.NewString(),
		TechniqueScores: make(map[string]*TechniqueScore, len(kb.Techniques)),
		TacticSummaries: make(map[string]*TacticSummary),
	}

	for id, tech := range kb.Techniques {
		ts := &TechniqueScore{
			ID:      id,
			Name:    tech.Name,
			Tactics: tech.Tactics,
		}
		report.TechniqueScores[id] = ts

		if len(tech.DataComponents) == 0 {
			continue
		}
		ts.RequiredCount = len(tech.DataComponents)

		for _, ref := range tech.DataComponents {
			if _, ok := cov.Detected[ref.Component]; ok {
				ts.Covered = append(ts.Covered, ref.Component)
			} else {
				ts.Missing = append(ts.Missing, ref.Component)
			}
		}
		ts.CoveredCount = len(ts.Covered)
		covPct := float64(ts.CoveredCount) / float64(ts.RequiredCount) * 100
		qualityAvg := qualityAverage(ts.Covered, ratings)

		// Scoring works on the raw values; rounding is display-only.
		ts.Score = computeScore(covPct, qualityAvg)
		ts.CoveragePct = round1(covPct)
		ts.QualityAvg = round2(qualityAvg)
	}

	var total float64
	for _, ts := range report.TechniqueScores {
		total += float64(ts.Score)
		for _, tactic := range ts.Tactics {
			summary, ok := report.TacticSummaries[tactic]
			if !ok {
				summary = &TacticSummary{}
				report.TacticSummaries[tactic] = summary
			}
			summary.Count++
			summary.AvgScore += float64(ts.Score)
			if ts.Score > 0 {
				summary.Covered++
			} else {
				summary.Gaps++
			}
		}
	}
	for _, summary := range report.TacticSummaries {
		summary.AvgScore = round2(summary.AvgScore / float64(summary.Count))
	}
	if len(report.TechniqueScores) > 0 {
		report.OverallScore = round2(total / float64(len(report.TechniqueScores)))
	}
	return report
}

// TechniqueIDs returns every scored technique id sorted for stable output.
func (r *Report) TechniqueIDs() []string {
	ids := make([]string, 0, len(r.TechniqueScores))
	for id := range r.TechniqueScores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// qualityAverage is the mean rating of the covered components that carry a
// data_quality block on file. An explicit all-zero rating counts toward the
// mean; only components with no block at all are excluded.
func qualityAverage(covered []string, ratings map[string]*quality.DataSourceEntry) float64 {
	var sum float64
	var rated int
	for _, name := range covered {
		entry, ok := ratings[name]
		if !ok || entry.Quality == nil {
			continue
		}
		sum += entry.Quality.Average()
		rated++
	}
	if rated == 0 {
		return 0
	}
	return sum / float64(rated)
}

// computeScore maps coverage breadth and quality depth to 0-5.
//
// Coverage alone reaches 4; the fifth point requires near-complete
// coverage backed by strong quality ratings. Quality never demotes a
// coverage-earned base score.
func computeScore(coveragePct, qualityAvg float64) int {
	if coveragePct <= 0 {
		return 0
	}

	var base int
	switch {
	case coveragePct < 25:
		base = 1
	case coveragePct < 50:
		base = 2
	case coveragePct < 75:
		base = 3
	default:
		base = 4
	}

	if coveragePct >= 75 && qualityAvg >= 3.5 {
		return 5
	}
	return base
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
