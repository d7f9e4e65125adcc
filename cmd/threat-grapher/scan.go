package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShehabAgain/threat-grapher/cmd/threat-grapher/internal"
	"github.com/ShehabAgain/threat-grapher/internal/dataset"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the exercise corpus and report dataset statistics",
	Long: `Scan walks the exercise tree, inventories technique folders and their
log files, and samples a subset of logs to report event-id and
log-source distributions without parsing the full corpus.`,
	RunE: runScan,
}

// ScanReport is the scan command's structured output.
type ScanReport struct {
	DataDir        string              `json:"data_dir"`
	TechniqueCount int                 `json:"technique_count"`
	ParentCount    int                 `json:"parent_technique_count"`
	TotalFiles     int                 `json:"total_files"`
	TotalSizeBytes int64               `json:"total_size_bytes"`
	FileTypes      []dataset.CountItem `json:"file_types"`
	TopEventIDs    []dataset.CountItem `json:"top_event_ids"`
	TopLogSources  []dataset.CountItem `json:"top_log_sources"`
	SampledFiles   int                 `json:"sampled_files"`
	SampleEvents   int                 `json:"sample_event_count"`
	MitreIDs       int                 `json:"mitre_technique_count"`
	TopAuthors     []dataset.CountItem `json:"top_authors"`
}

func runScan(cmd *cobra.Command, args []string) error {
	dataDir := appConfig.Core.DataDir

	tree, err := dataset.Scan(dataDir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dataDir, err)
	}
	stats := dataset.ComputeStats(tree, appConfig.Sampler.Seed)

	report := &ScanReport{
		DataDir:        dataDir,
		TechniqueCount: stats.TechniqueCount,
		ParentCount:    stats.ParentCount,
		TotalFiles:     stats.TotalFiles,
		TotalSizeBytes: stats.TotalSizeBytes,
		FileTypes:      stats.FileTypes,
		TopEventIDs:    stats.TopEventIDs,
		TopLogSources:  stats.TopLogSources,
		SampledFiles:   stats.SampledFiles,
		SampleEvents:   stats.SampleEventCount,
		MitreIDs:       stats.MitreTechniqueCount,
		TopAuthors:     stats.TopAuthors,
	}

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return internal.NewFormatter(internal.FormatJSON, cmd.OutOrStdout()).PrintJSON(report)
	}
	return renderScanReport(cmd.OutOrStdout(), report)
}
