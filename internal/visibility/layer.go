package visibility

import (
	"fmt"
	"sort"
)

// Layer metadata pinned to the matrix-visualization tool's current schema.
const (
	layerAttackVersion    = "16"
	layerNavigatorVersion = "5.1"
	layerFormatVersion    = "4.5"
	layerDomain           = "enterprise-attack"
)

// scoreColors is the fixed red-to-green ramp, one color per score.
var scoreColors = [6]string{
	"#d13b31", // 0
	"#e57339", // 1
	"#e5a839", // 2
	"#e5d439", // 3
	"#7bc043", // 4
	"#2d8a4e", // 5
}

// LayerVersions pins the layer schema.
type LayerVersions struct {
	Attack    string `json:"attack"`
	Navigator string `json:"navigator"`
	Layer     string `json:"layer"`
}

// LayerLayout configures how the matrix tool renders the layer.
type LayerLayout struct {
	Layout              string `json:"layout"`
	AggregateFunction   string `json:"aggregateFunction"`
	ShowID              bool   `json:"showID"`
	ShowName            bool   `json:"showName"`
	ShowAggregateScores bool   `json:"showAggregateScores"`
	CountUnscored       bool   `json:"countUnscored"`
}

// LayerGradient colors aggregate scores across the 0-5 range.
type LayerGradient struct {
	Colors   []string `json:"colors"`
	MinValue int      `json:"minValue"`
	MaxValue int      `json:"maxValue"`
}

// LayerTechnique is one technique cell in the exported layer.
type LayerTechnique struct {
	TechniqueID string `json:"techniqueID"`
	Score       int    `json:"score"`
	Color       string `json:"color"`
	Comment     string `json:"comment"`
	Enabled     bool   `json:"enabled"`
}

// Layer is an importable technique-matrix layer document.
type Layer struct {
	Name        string           `json:"name"`
	Versions    LayerVersions    `json:"versions"`
	Domain      string           `json:"domain"`
	Description string           `json:"description"`
	Sorting     int              `json:"sorting"`
	Layout      LayerLayout      `json:"layout"`
	Gradient    LayerGradient    `json:"gradient"`
	Techniques  []LayerTechnique `json:"techniques"`
}

// NavigatorLayer exports a report as a matrix layer, techniques sorted by
// id for stable output.
func NavigatorLayer(report *Report, name string) *Layer {
	layer := &Layer{
		Name: name,
		Versions: LayerVersions{
			Attack:    layerAttackVersion,
			Navigator: layerNavigatorVersion,
			Layer:     layerFormatVersion,
		},
		Domain:      layerDomain,
		Description: "Visibility coverage layer generated by threat-grapher",
		Sorting:     3,
		Layout: LayerLayout{
			Layout:              "side",
			AggregateFunction:   "average",
			ShowID:              true,
			ShowName:            true,
			ShowAggregateScores: true,
		},
		Gradient: LayerGradient{
			Colors:   []string{scoreColors[0], scoreColors[2], scoreColors[5]},
			MinValue: 0,
			MaxValue: 5,
		},
	}

	ids := make([]string, 0, len(report.TechniqueScores))
	for id := range report.TechniqueScores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ts := report.TechniqueScores[id]
		layer.Techniques = append(layer.Techniques, LayerTechnique{
			TechniqueID: id,
			Score:       ts.Score,
			Color:       colorForScore(ts.Score),
			Comment: fmt.Sprintf("Coverage: %v%% | Quality: %v | Covered: %d/%d",
				ts.CoveragePct, ts.QualityAvg, ts.CoveredCount, ts.RequiredCount),
			Enabled: true,
		})
	}
	return layer
}

func colorForScore(score int) string {
	if score < 0 || score >= len(scoreColors) {
		return scoreColors[0]
	}
	return scoreColors[score]
}
