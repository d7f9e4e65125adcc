package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ShehabAgain/threat-grapher/cmd/threat-grapher/internal"
	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/quality"
	"github.com/ShehabAgain/threat-grapher/internal/visibility"
)

var visibilityCmd = &cobra.Command{
	Use:   "visibility",
	Short: "Score per-technique visibility from coverage and quality ratings",
	Long: `Visibility combines corpus coverage with the telemetry quality ratings
on file into 0-5 per-technique scores and tactic rollups. A missing
rating store is auto-populated from the coverage run for later manual
review.`,
	RunE: runVisibility,
}

// VisibilityTechnique is one technique row in the visibility report.
type VisibilityTechnique struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Score       int     `json:"score"`
	CoveragePct float64 `json:"coverage_pct"`
	QualityAvg  float64 `json:"quality_avg"`
	Covered     int     `json:"covered_count"`
	Required    int     `json:"required_count"`
}

// VisibilityTactic is one tactic rollup in the visibility report.
type VisibilityTactic struct {
	Tactic   string  `json:"tactic"`
	Name     string  `json:"name"`
	AvgScore float64 `json:"avg_score"`
	Count    int     `json:"count"`
	Covered  int     `json:"covered"`
	Gaps     int     `json:"gaps"`
}

// VisibilityReport is the visibility command's structured output.
type VisibilityReport struct {
	RunID        string                `json:"run_id"`
	Techniques   []VisibilityTechnique `json:"techniques"`
	Tactics      []VisibilityTactic    `json:"tactics"`
	OverallScore float64               `json:"overall_score"`
}

func runVisibility(cmd *cobra.Command, args []string) error {
	report, kb, err := assessVisibility(cmd)
	if err != nil {
		return err
	}
	out := buildVisibilityReport(report, kb)

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return internal.NewFormatter(internal.FormatJSON, cmd.OutOrStdout()).PrintJSON(out)
	}
	return renderVisibilityReport(cmd.OutOrStdout(), out)
}

// assessVisibility runs the coverage pipeline, loads (or auto-populates)
// the rating store, and scores every technique.
func assessVisibility(cmd *cobra.Command) (*visibility.Report, *attack.KnowledgeBase, error) {
	result, kb, err := analyzeCoverage(cmd)
	if err != nil {
		return nil, nil, err
	}

	ratingPath := appConfig.Quality.DataSourcePath
	ratings, err := quality.LoadDataSourceRatings(ratingPath)
	if err != nil {
		return nil, nil, err
	}
	if len(ratings) == 0 && len(result.Detected) > 0 {
		ratings = quality.GenerateDataSourceRatings(result)
		if err := quality.SaveDataSourceRatings(ratingPath, ratings); err != nil {
			return nil, nil, fmt.Errorf("failed to auto-populate rating store: %w", err)
		}
		cmd.PrintErrf("Rating store initialized at %s; edit quality scores and re-run\n", ratingPath)
	}

	_, span := otel.Tracer("visibility").Start(cmd.Context(), "visibility.score")
	defer span.End()
	report := visibility.Score(kb, result, ratings)
	span.SetAttributes(attribute.Int("visibility.techniques_scored", len(report.TechniqueScores)))

	return report, kb, nil
}

func buildVisibilityReport(report *visibility.Report, kb *attack.KnowledgeBase) *VisibilityReport {
	out := &VisibilityReport{
		RunID:        report.RunID,
		OverallScore: report.OverallScore,
	}

	for _, id := range report.TechniqueIDs() {
		ts := report.TechniqueScores[id]
		out.Techniques = append(out.Techniques, VisibilityTechnique{
			ID:          id,
			Name:        ts.Name,
			Score:       ts.Score,
			CoveragePct: ts.CoveragePct,
			QualityAvg:  ts.QualityAvg,
			Covered:     ts.CoveredCount,
			Required:    ts.RequiredCount,
		})
	}

	// Tactic rollups in canonical kill-chain order.
	for _, tactic := range attack.TacticOrder {
		summary, ok := report.TacticSummaries[tactic]
		if !ok {
			continue
		}
		name := tactic
		if kb != nil {
			name = kb.TacticName(tactic)
		}
		out.Tactics = append(out.Tactics, VisibilityTactic{
			Tactic:   tactic,
			Name:     name,
			AvgScore: summary.AvgScore,
			Count:    summary.Count,
			Covered:  summary.Covered,
			Gaps:     summary.Gaps,
		})
	}
	return out
}
