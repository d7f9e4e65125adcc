// Package quality reads and writes DeTT&CT-compatible YAML administration
// files: per-component telemetry quality ratings and per-technique score
// registrations. The schema matches the standalone DeTT&CT tool so files
// round-trip between both.
package quality

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/coverage"
)

const (
	fileVersion     = 1
	dataSourceAdmin = "data-source-administration"
	techniqueAdmin  = "technique-administration"
	dateLayout      = "2006-01-02"
)

// Rating holds the five DeTT&CT quality dimensions, each scored 0-5.
type Rating struct {
	DeviceCompleteness    float64 `yaml:"device_completeness"`
	DataFieldCompleteness float64 `yaml:"data_field_completeness"`
	Timeliness            float64 `yaml:"timeliness"`
	Consistency           float64 `yaml:"consistency"`
	Retention             float64 `yaml:"retention"`
}

// Average is the mean of the five dimensions.
func (r Rating) Average() float64 {
	return (r.DeviceCompleteness + r.DataFieldCompleteness + r.Timeliness +
		r.Consistency + r.Retention) / 5
}

// HasScores reports whether any dimension has been rated. Unrated
// components are excluded from quality averages rather than counted as
// zero.
func (r Rating) HasScores() bool {
	return r.DeviceCompleteness > 0 || r.DataFieldCompleteness > 0 ||
		r.Timeliness > 0 || r.Consistency > 0 || r.Retention > 0
}

// DataSourceEntry is one component's registration in the data-source
// administration file.
type DataSourceEntry struct {
	Name                  string   `yaml:"data_source_name"`
	DateRegistered        string   `yaml:"date_registered"`
	DateConnected         string   `yaml:"date_connected"`
	AvailableForAnalytics bool     `yaml:"available_for_data_analytics"`
	Products              []string `yaml:"products"`
	Comment               string   `yaml:"comment"`
	// Quality is nil when the file carries no data_quality block for the
	// entry. An explicit block, even all-zero, still counts as a rating.
	Quality *Rating `yaml:"data_quality"`
}

type dataSourceFile struct {
	Version     int                `yaml:"version"`
	FileType    string             `yaml:"file_type"`
	DataSources []*DataSourceEntry `yaml:"data_sources"`
}

// LoadDataSourceRatings reads a data-source administration file, keyed by
// component name. A missing file yields an empty store, not an error.
func LoadDataSourceRatings(path string) (map[string]*DataSourceEntry, error) {
	ratings := make(map[string]*DataSourceEntry)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ratings, nil
		}
		return nil, fmt.Errorf("failed to read rating store %s: %w", path, err)
	}

	var file dataSourceFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rating store %s: %w", path, err)
	}

	for _, entry := range file.DataSources {
		if entry != nil && entry.Name != "" {
			ratings[entry.Name] = entry
		}
	}
	return ratings, nil
}

// SaveDataSourceRatings writes the store sorted by component name, creating
// parent directories as needed.
func SaveDataSourceRatings(path string, ratings map[string]*DataSourceEntry) error {
	file := dataSourceFile{Version: fileVersion, FileType: dataSourceAdmin}

	names := make([]string, 0, len(ratings))
	for name := range ratings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := ratings[name]
		entry.Name = name
		file.DataSources = append(file.DataSources, entry)
	}

	return writeYAML(path, &file)
}

// GenerateDataSourceRatings builds an unrated store from a coverage run:
// every detected component is registered with its evidence labels as
// products and zeroed quality dimensions awaiting manual review.
func GenerateDataSourceRatings(result *coverage.Result) map[string]*DataSourceEntry {
	today := time.Now().Format(dateLayout)
	ratings := make(map[string]*DataSourceEntry, len(result.Detected))
	for name, det := range result.Detected {
		ratings[name] = &DataSourceEntry{
			Name:                  name,
			DateRegistered:        today,
			DateConnected:         today,
			AvailableForAnalytics: true,
			Products:              append([]string(nil), det.Sources...),
			Comment:               fmt.Sprintf("Auto-detected from dataset (%d events)", det.Count),
			Quality:               &Rating{},
		}
	}
	return ratings
}

// ScoreComment pairs a manual 0-5 score with free-form commentary.
type ScoreComment struct {
	Score   int    `yaml:"score"`
	Comment string `yaml:"comment"`
}

// TechniqueEntry is one technique's registration in the technique
// administration file.
type TechniqueEntry struct {
	ID         string       `yaml:"technique_id"`
	Name       string       `yaml:"technique_name"`
	Visibility ScoreComment `yaml:"visibility"`
	Detection  ScoreComment `yaml:"detection"`
}

type techniqueFile struct {
	Version    int               `yaml:"version"`
	FileType   string            `yaml:"file_type"`
	Techniques []*TechniqueEntry `yaml:"techniques"`
}

// LoadTechniqueAdmin reads a technique administration file, keyed by
// technique id. A missing file yields an empty store, not an error.
func LoadTechniqueAdmin(path string) (map[string]*TechniqueEntry, error) {
	entries := make(map[string]*TechniqueEntry)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read technique store %s: %w", path, err)
	}

	var file techniqueFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse technique store %s: %w", path, err)
	}

	for _, entry := range file.Techniques {
		if entry != nil && entry.ID != "" {
			entries[entry.ID] = entry
		}
	}
	return entries, nil
}

// SaveTechniqueAdmin writes the store sorted by technique id, creating
// parent directories as needed.
func SaveTechniqueAdmin(path string, entries map[string]*TechniqueEntry) error {
	file := techniqueFile{Version: fileVersion, FileType: techniqueAdmin}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		entry := entries[id]
		entry.ID = id
		file.Techniques = append(file.Techniques, entry)
	}

	return writeYAML(path, &file)
}

// GenerateTechniqueAdmin builds a zero-scored technique store for every
// catalog technique, annotating those the coverage run found data for.
func GenerateTechniqueAdmin(kb *attack.KnowledgeBase, result *coverage.Result) map[string]*TechniqueEntry {
	entries := make(map[string]*TechniqueEntry, len(kb.Techniques))
	for id, tech := range kb.Techniques {
		entry := &TechniqueEntry{ID: id, Name: tech.Name}
		if tc, ok := result.Techniques[id]; ok && tc.Pct > 0 {
			entry.Visibility.Comment = fmt.Sprintf("Auto: %v%% data component coverage", tc.Pct)
		}
		entries[id] = entry
	}
	return entries
}

func writeYAML(path string, doc any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write store %s: %w", path, err)
	}
	return nil
}
