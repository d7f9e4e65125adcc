// Package dataset scans the attack-technique exercise tree: per-technique
// folders named after catalog ids, each optionally holding YAML metadata,
// log/JSON files, and one level of named scenario subfolders.
package dataset

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DatasetRef names one captured dataset and the sourcetype it was indexed
// under; the sourcetype doubles as a format hint for the parsers.
type DatasetRef struct {
	Name       string `yaml:"name"`
	Sourcetype string `yaml:"sourcetype"`
}

// FlexStrings decodes YAML sequences whose scalars may be strings or
// numbers (technique id lists are hand-written and inconsistently quoted).
type FlexStrings []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FlexStrings) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*f = FlexStrings{single}
		return nil
	}
	out := make(FlexStrings, 0, len(value.Content))
	for _, item := range value.Content {
		var s string
		if err := item.Decode(&s); err != nil {
			var v any
			if err := item.Decode(&v); err != nil {
				continue
			}
			s = fmt.Sprint(v)
		}
		out = append(out, s)
	}
	*f = out
	return nil
}

// Metadata is the optional per-technique (or per-scenario) exercise
// description.
type Metadata struct {
	Author      string       `yaml:"author"`
	Description string       `yaml:"description"`
	Date        string       `yaml:"date"`
	Environment string       `yaml:"environment"`
	Datasets    []DatasetRef `yaml:"datasets"`
	Techniques  FlexStrings  `yaml:"mitre_technique"`
}

// SourcetypeFor returns the sourcetype hint for a file, matched by dataset
// name containment, or the empty string when no dataset matches.
func (m *Metadata) SourcetypeFor(filename string) string {
	for _, ds := range m.Datasets {
		if ds.Name != "" && strings.Contains(filename, ds.Name) {
			return ds.Sourcetype
		}
	}
	return ""
}

// loadMetadata reads a metadata YAML file, degrading to empty metadata on
// any read or parse failure: corrupted metadata is advisory, never fatal.
func loadMetadata(path string) Metadata {
	var meta Metadata
	raw, err := os.ReadFile(path)
	if err != nil {
		return meta
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return Metadata{}
	}
	return meta
}
