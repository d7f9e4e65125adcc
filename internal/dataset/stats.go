package dataset

import (
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// statsSampleCap bounds how many .log files the stats pass opens.
const statsSampleCap = 80

// statsReadLimit bounds how much of each sampled file is read.
const statsReadLimit = 512 * 1024

var (
	xmlEventIDStatRe  = regexp.MustCompile(`<EventID[^>]*>(\d+)</EventID>`)
	kvEventCodeStatRe = regexp.MustCompile(`(?m)^EventCode=(\d+)`)
	kvLogNameStatRe   = regexp.MustCompile(`(?m)^LogName=(.+)`)
	xmlProviderStatRe = regexp.MustCompile(`Provider Name="([^"]+)"`)
)

// CountItem is one entry of a ranked counter.
type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Stats are aggregate corpus statistics: cheap file-metadata totals plus
// event distributions extracted from a bounded sample of log files.
type Stats struct {
	TechniqueCount      int
	ParentCount         int
	TotalFiles          int
	TotalSizeBytes      int64
	FileTypes           []CountItem
	TopEventIDs         []CountItem
	TopLogSources       []CountItem
	SampleEventCount    int
	SampledFiles        int
	MitreTechniqueCount int
	TopAuthors          []CountItem
}

// ComputeStats aggregates statistics over a scanned tree. seed fixes the
// log-file sample for reproducible runs; pass a negative seed for a
// time-based sample.
func ComputeStats(tree *Tree, seed int64) *Stats {
	stats := &Stats{
		TechniqueCount: len(tree.Techniques),
		ParentCount:    len(tree.Grouped),
	}

	fileTypes := make(map[string]int)
	var logPaths []string

	tally := func(files []FileInfo) {
		for _, f := range files {
			stats.TotalFiles++
			stats.TotalSizeBytes += f.Size
			ext := strings.ToLower(filepath.Ext(f.Name))
			fileTypes[ext]++
			if ext == ".log" {
				logPaths = append(logPaths, f.Path)
			}
		}
	}

	for _, id := range tree.Order {
		tech := tree.Techniques[id]
		tally(tech.Files)
		for _, sc := range tech.Scenarios {
			tally(sc.Files)
		}
	}

	sampled := sampleStrings(logPaths, statsSampleCap, seed)
	stats.SampledFiles = len(sampled)

	eventIDs := make(map[string]int)
	logSources := make(map[string]int)
	for _, path := range sampled {
		chunk, err := readPrefix(path, statsReadLimit)
		if err != nil {
			continue
		}

		if matches := xmlEventIDStatRe.FindAllStringSubmatch(chunk, -1); len(matches) > 0 {
			for _, m := range matches {
				eventIDs[m[1]]++
			}
			stats.SampleEventCount += len(matches)
			for _, m := range xmlProviderStatRe.FindAllStringSubmatch(chunk, -1) {
				logSources[m[1]]++
			}
			continue
		}

		if matches := kvEventCodeStatRe.FindAllStringSubmatch(chunk, -1); len(matches) > 0 {
			for _, m := range matches {
				eventIDs[m[1]]++
			}
			stats.SampleEventCount += len(matches)
			for _, m := range kvLogNameStatRe.FindAllStringSubmatch(chunk, -1) {
				logSources[strings.TrimSpace(m[1])]++
			}
		}
	}

	mitreIDs := make(map[string]bool)
	authors := make(map[string]int)
	tallyMeta := func(meta Metadata) {
		for _, id := range meta.Techniques {
			mitreIDs[id] = true
		}
		if meta.Author != "" {
			authors[meta.Author]++
		}
	}
	for _, id := range tree.Order {
		tech := tree.Techniques[id]
		if tech.MetaPath != "" {
			tallyMeta(tech.Meta)
		}
		for _, sc := range tech.Scenarios {
			if sc.MetaPath != "" {
				tallyMeta(sc.Meta)
			}
		}
	}
	stats.MitreTechniqueCount = len(mitreIDs)

	stats.FileTypes = topN(fileTypes, 10)
	stats.TopEventIDs = topN(eventIDs, 10)
	stats.TopLogSources = topN(logSources, 8)
	stats.TopAuthors = topN(authors, 5)
	return stats
}

// sampleStrings picks up to n items without replacement. A non-negative
// seed makes the pick deterministic.
func sampleStrings(items []string, n int, seed int64) []string {
	if len(items) <= n {
		out := make([]string, len(items))
		copy(out, items)
		return out
	}
	shuffled := make([]string, len(items))
	copy(shuffled, items)
	var rng *rand.Rand
	if seed >= 0 {
		rng = rand.New(rand.NewSource(seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// readPrefix reads at most limit bytes from the start of a file.
func readPrefix(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	if size > limit {
		size = limit
	}
	buf := make([]byte, size)
	// ReadFull keeps reading across short reads; a file shrinking between
	// stat and read just yields a shorter prefix.
	n, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// topN ranks a counter by count descending, key ascending on ties.
func topN(counter map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counter))
	for k, v := range counter {
		items = append(items, CountItem{Key: k, Count: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}
