package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TechniqueDirRe matches technique folder names: T1003 or T1003.001.
var TechniqueDirRe = regexp.MustCompile(`^T\d{4}(?:\.\d{3})?$`)

// supportedExtensions are the log file types the parsers understand; other
// files in technique folders (archives, raw captures) are ignored.
var supportedExtensions = map[string]bool{
	".log":  true,
	".json": true,
}

// FileInfo describes one log or JSON file in the tree.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Scenario is a named subfolder of a technique holding its own metadata and
// files.
type Scenario struct {
	Name     string
	MetaPath string
	Meta     Metadata
	Files    []FileInfo
}

// Technique is one technique folder: metadata, top-level files, and
// scenarios.
type Technique struct {
	ID       string
	MetaPath string
	Meta     Metadata
	Files    []FileInfo
	// Scenarios in folder-name order.
	Scenarios []*Scenario
}

// Tree is the scanned exercise corpus. Techniques are natural-sorted so
// T1003.002 follows T1003 and T1110 follows T1059.
type Tree struct {
	// Techniques keyed by id; Order holds ids in natural sort order.
	Techniques map[string]*Technique
	Order      []string
	// Grouped maps each parent technique id to its sub-technique ids.
	// Parents referenced only through sub-techniques are synthesized into
	// Techniques with no files.
	Grouped map[string][]string
}

// Scan walks the exercise tree and builds the technique inventory. A
// missing directory yields an empty tree, not an error; individual
// unreadable entries are skipped.
func Scan(dir string) (*Tree, error) {
	tree := &Tree{
		Techniques: make(map[string]*Technique),
		Grouped:    make(map[string][]string),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return tree, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() || !TechniqueDirRe.MatchString(entry.Name()) {
			continue
		}
		tree.Techniques[entry.Name()] = scanTechniqueDir(filepath.Join(dir, entry.Name()), entry.Name())
	}

	for id := range tree.Techniques {
		tree.Order = append(tree.Order, id)
	}
	sort.Slice(tree.Order, func(i, j int) bool {
		return naturalLess(tree.Order[i], tree.Order[j])
	})

	for _, id := range tree.Order {
		parent, _, isSub := strings.Cut(id, ".")
		if _, ok := tree.Grouped[parent]; !ok {
			tree.Grouped[parent] = []string{}
		}
		if isSub {
			tree.Grouped[parent] = append(tree.Grouped[parent], id)
		}
	}

	// Parents seen only via sub-technique folders still appear in the
	// inventory so grouping has something to hang from.
	var synthesized []string
	for parent := range tree.Grouped {
		if _, ok := tree.Techniques[parent]; !ok {
			tree.Techniques[parent] = &Technique{ID: parent}
			synthesized = append(synthesized, parent)
		}
	}
	if len(synthesized) > 0 {
		tree.Order = append(tree.Order, synthesized...)
		sort.Slice(tree.Order, func(i, j int) bool {
			return naturalLess(tree.Order[i], tree.Order[j])
		})
	}

	return tree, nil
}

func scanTechniqueDir(dir, id string) *Technique {
	tech := &Technique{ID: id}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return tech
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			tech.Scenarios = append(tech.Scenarios, scanScenarioDir(path, entry.Name()))
			continue
		}
		classifyFile(path, entry, &tech.MetaPath, &tech.Meta, &tech.Files)
	}

	sortFiles(tech.Files)
	sort.Slice(tech.Scenarios, func(i, j int) bool {
		return tech.Scenarios[i].Name < tech.Scenarios[j].Name
	})
	return tech
}

func scanScenarioDir(dir, name string) *Scenario {
	scenario := &Scenario{Name: name}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return scenario
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			// Deeper nesting occurs in a handful of exercises; sweep it
			// into the scenario rather than modeling another level.
			filepath.WalkDir(path, func(nested string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil
				}
				classifyFile(nested, d, &scenario.MetaPath, &scenario.Meta, &scenario.Files)
				return nil
			})
			continue
		}
		classifyFile(path, entry, &scenario.MetaPath, &scenario.Meta, &scenario.Files)
	}

	sortFiles(scenario.Files)
	return scenario
}

// classifyFile routes one directory entry into metadata or the file list.
func classifyFile(path string, entry fs.DirEntry, metaPath *string, meta *Metadata, files *[]FileInfo) {
	ext := strings.ToLower(filepath.Ext(entry.Name()))
	switch {
	case ext == ".yml" || ext == ".yaml":
		if *metaPath == "" {
			*metaPath = path
			*meta = loadMetadata(path)
		}
	case supportedExtensions[ext]:
		info, err := entry.Info()
		if err != nil {
			return
		}
		*files = append(*files, FileInfo{Name: entry.Name(), Path: path, Size: info.Size()})
	}
}

func sortFiles(files []FileInfo) {
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
}

// naturalLess compares strings with embedded numbers numerically, so
// T1059.003 sorts before T1059.012 and T1110 after T1059.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		aDigit := a[0] >= '0' && a[0] <= '9'
		bDigit := b[0] >= '0' && b[0] <= '9'
		if aDigit && bDigit {
			aNum, aRest := leadingInt(a)
			bNum, bRest := leadingInt(b)
			if aNum != bNum {
				return aNum < bNum
			}
			a, b = aRest, bRest
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingInt(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(s[:i])
	return n, s[i:]
}
