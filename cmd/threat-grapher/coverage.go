package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ShehabAgain/threat-grapher/cmd/threat-grapher/internal"
	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/coverage"
	"github.com/ShehabAgain/threat-grapher/internal/dataset"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Sample the corpus and report detection coverage per technique",
	Long: `Coverage samples a bounded subset of corpus files, maps observed event
signatures to catalog data components, and reports per-technique
coverage of required telemetry.`,
	RunE: runCoverage,
}

// CoverageTechnique is one technique row in the coverage report.
type CoverageTechnique struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Pct      float64  `json:"coverage_pct"`
	Covered  []string `json:"covered"`
	Missing  []string `json:"missing"`
	Required int      `json:"required_count"`
}

// CoverageDetection is one detected component in the coverage report.
type CoverageDetection struct {
	Component string   `json:"component"`
	Count     int      `json:"count"`
	Sources   []string `json:"sources"`
}

// CoverageReport is the coverage command's structured output.
type CoverageReport struct {
	RunID            string              `json:"run_id"`
	Detected         []CoverageDetection `json:"detected_components"`
	Techniques       []CoverageTechnique `json:"techniques"`
	OverallPct       float64             `json:"overall_coverage_pct"`
	WithData         int                 `json:"techniques_with_data"`
	WithRequirements int                 `json:"techniques_with_requirements"`
}

func runCoverage(cmd *cobra.Command, args []string) error {
	result, _, err := analyzeCoverage(cmd)
	if err != nil {
		return err
	}
	report := buildCoverageReport(result)

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return internal.NewFormatter(internal.FormatJSON, cmd.OutOrStdout()).PrintJSON(report)
	}
	return renderCoverageReport(cmd.OutOrStdout(), report)
}

// analyzeCoverage runs the shared scan/load/sample pipeline used by the
// coverage, visibility, and layer commands.
func analyzeCoverage(cmd *cobra.Command) (*coverage.Result, *attack.KnowledgeBase, error) {
	tree, err := dataset.Scan(appConfig.Core.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", appConfig.Core.DataDir, err)
	}

	kb, err := attack.Load(appConfig.Core.KnowledgeBasePath)
	if err != nil {
		return nil, nil, err
	}

	sampler := &coverage.Sampler{
		MaxLogFiles:  appConfig.Sampler.MaxLogFiles,
		MaxJSONFiles: appConfig.Sampler.MaxJSONFiles,
		Workers:      appConfig.Core.ParallelLimit,
	}
	if appConfig.Sampler.Seed >= 0 {
		seed := appConfig.Sampler.Seed
		sampler.Seed = &seed
	}

	result, err := coverage.Analyze(cmd.Context(), tree, kb, sampler)
	if err != nil {
		return nil, nil, err
	}
	return result, kb, nil
}

func buildCoverageReport(result *coverage.Result) *CoverageReport {
	report := &CoverageReport{
		RunID:            result.RunID,
		OverallPct:       result.OverallPct,
		WithData:         result.TechniquesWithData,
		WithRequirements: result.TechniquesWithRequirements,
	}

	components := make([]string, 0, len(result.Detected))
	for name := range result.Detected {
		components = append(components, name)
	}
	sort.Strings(components)
	for _, name := range components {
		det := result.Detected[name]
		report.Detected = append(report.Detected, CoverageDetection{
			Component: name,
			Count:     det.Count,
			Sources:   det.Sources,
		})
	}

	for _, id := range result.TechniqueIDs() {
		tc := result.Techniques[id]
		report.Techniques = append(report.Techniques, CoverageTechnique{
			ID:       id,
			Name:     tc.Name,
			Pct:      tc.Pct,
			Covered:  tc.Covered,
			Missing:  tc.Missing,
			Required: len(tc.Required),
		})
	}
	return report
}
