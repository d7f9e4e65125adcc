package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShehabAgain/threat-grapher/internal/visibility"
)

var (
	layerName   string
	layerOutput string
)

var layerCmd = &cobra.Command{
	Use:   "layer",
	Short: "Export visibility scores as an ATT&CK Navigator layer",
	Long: `Layer runs the visibility assessment and writes an importable Navigator
layer document: one cell per technique with its 0-5 score, ramp color,
and a coverage/quality comment.`,
	RunE: runLayer,
}

func init() {
	layerCmd.Flags().StringVar(&layerName, "name", "threat-grapher visibility", "Layer display name")
	layerCmd.Flags().StringVar(&layerOutput, "out", "", "Output file (default: stdout)")
}

func runLayer(cmd *cobra.Command, args []string) error {
	report, _, err := assessVisibility(cmd)
	if err != nil {
		return err
	}

	layer := visibility.NavigatorLayer(report, layerName)
	raw, err := json.MarshalIndent(layer, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode layer: %w", err)
	}
	raw = append(raw, '\n')

	if layerOutput == "" {
		_, err := cmd.OutOrStdout().Write(raw)
		return err
	}
	if err := os.WriteFile(layerOutput, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write layer to %s: %w", layerOutput, err)
	}
	cmd.PrintErrf("Layer written to %s (%d techniques)\n", layerOutput, len(layer.Techniques))
	return nil
}
