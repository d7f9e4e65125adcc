package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Shared styles for text-mode report rendering.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	scoreStyles = map[int]lipgloss.Style{
		0: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		1: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		2: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		3: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		4: lipgloss.NewStyle().Foreground(lipgloss.Color("112")),
		5: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
	}
)

func styledScore(score int) string {
	style, ok := scoreStyles[score]
	if !ok {
		style = scoreStyles[0]
	}
	return style.Render(fmt.Sprintf("%d", score))
}

func renderScanReport(w io.Writer, report *ScanReport) error {
	fmt.Fprintln(w, titleStyle.Render("Dataset Scan"))
	fmt.Fprintf(w, "%s %s\n\n", dimStyle.Render("corpus:"), report.DataDir)

	fmt.Fprintf(w, "Techniques:      %d (%d parents)\n", report.TechniqueCount, report.ParentCount)
	fmt.Fprintf(w, "Files:           %d (%s)\n", report.TotalFiles, humanSize(report.TotalSizeBytes))
	fmt.Fprintf(w, "Catalog ids:     %d referenced in metadata\n", report.MitreIDs)
	fmt.Fprintf(w, "Sampled:         %d log files, %d events\n", report.SampledFiles, report.SampleEvents)

	if len(report.TopEventIDs) > 0 {
		fmt.Fprintf(w, "\n%s\n", sectionStyle.Render("Top event ids"))
		for _, item := range report.TopEventIDs {
			fmt.Fprintf(w, "  %-8s %d\n", item.Key, item.Count)
		}
	}
	if len(report.TopLogSources) > 0 {
		fmt.Fprintf(w, "\n%s\n", sectionStyle.Render("Top log sources"))
		for _, item := range report.TopLogSources {
			fmt.Fprintf(w, "  %-40s %d\n", item.Key, item.Count)
		}
	}
	if len(report.TopAuthors) > 0 {
		fmt.Fprintf(w, "\n%s\n", sectionStyle.Render("Top contributors"))
		for _, item := range report.TopAuthors {
			fmt.Fprintf(w, "  %-30s %d\n", item.Key, item.Count)
		}
	}
	return nil
}

func renderGraphReport(w io.Writer, report *GraphReport) error {
	fmt.Fprintln(w, titleStyle.Render("Entity Graph"))
	fmt.Fprintf(w, "%s %s (%s)\n", dimStyle.Render("source:"), report.SourcePath, report.Format)
	fmt.Fprintf(w, "%s %d events", dimStyle.Render("parsed:"), report.EventsLoaded)
	if report.Truncated {
		fmt.Fprintf(w, " %s", warnStyle.Render(
			fmt.Sprintf("(truncated, ~%d total)", report.TotalEstimated)))
	}
	fmt.Fprintln(w)
	if report.Warning != "" {
		fmt.Fprintln(w, warnStyle.Render("warning: "+report.Warning))
	}

	fmt.Fprintf(w, "\n%s\n", sectionStyle.Render(fmt.Sprintf("Nodes (%d)", len(report.Nodes))))
	for _, n := range report.Nodes {
		fmt.Fprintf(w, "  %-12s %-40s ×%d\n", n.Type, n.Label, n.Count)
	}

	fmt.Fprintf(w, "\n%s\n", sectionStyle.Render(fmt.Sprintf("Edges (%d)", len(report.Edges))))
	for _, e := range report.Edges {
		fmt.Fprintf(w, "  %s %s %s  %s\n",
			e.Src, dimStyle.Render("-["+e.Label+"]->"), e.Dst,
			dimStyle.Render(fmt.Sprintf("w=%d", e.Weight)))
	}
	return nil
}

func renderCoverageReport(w io.Writer, report *CoverageReport) error {
	fmt.Fprintln(w, titleStyle.Render("Detection Coverage"))
	fmt.Fprintf(w, "%s %s\n\n", dimStyle.Render("run:"), report.RunID)

	fmt.Fprintf(w, "Overall: %.1f%% (%d of %d techniques with data)\n",
		report.OverallPct, report.WithData, report.WithRequirements)

	fmt.Fprintf(w, "\n%s\n", sectionStyle.Render(
		fmt.Sprintf("Detected components (%d)", len(report.Detected))))
	for _, det := range report.Detected {
		fmt.Fprintf(w, "  %-40s %6d  %s\n", det.Component, det.Count,
			dimStyle.Render(strings.Join(det.Sources, ", ")))
	}

	fmt.Fprintf(w, "\n%s\n", sectionStyle.Render("Techniques"))
	for _, tc := range report.Techniques {
		fmt.Fprintf(w, "  %-10s %5.1f%%  %-40s %s\n", tc.ID, tc.Pct, tc.Name,
			dimStyle.Render(fmt.Sprintf("%d/%d components", len(tc.Covered), tc.Required)))
	}
	return nil
}

func renderVisibilityReport(w io.Writer, report *VisibilityReport) error {
	fmt.Fprintln(w, titleStyle.Render("Visibility Assessment"))
	fmt.Fprintf(w, "%s %s\n\n", dimStyle.Render("run:"), report.RunID)

	fmt.Fprintf(w, "Overall score: %.2f / 5\n", report.OverallScore)

	fmt.Fprintf(w, "\n%s\n", sectionStyle.Render("Tactics"))
	for _, tac := range report.Tactics {
		fmt.Fprintf(w, "  %-28s avg %.2f  %s\n", tac.Name, tac.AvgScore,
			dimStyle.Render(fmt.Sprintf("%d covered, %d gaps", tac.Covered, tac.Gaps)))
	}

	fmt.Fprintf(w, "\n%s\n", sectionStyle.Render("Techniques"))
	for _, ts := range report.Techniques {
		fmt.Fprintf(w, "  %-10s %s  %5.1f%% cov  q=%.2f  %s\n",
			ts.ID, styledScore(ts.Score), ts.CoveragePct, ts.QualityAvg, ts.Name)
	}
	return nil
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
