package coverage

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ShehabAgain/threat-grapher/internal/dataset"
	"github.com/ShehabAgain/threat-grapher/internal/logparse"
)

const (
	// DefaultMaxLogFiles bounds how many .log files a sampling pass opens.
	DefaultMaxLogFiles = 200
	// DefaultMaxJSONFiles bounds how many .json files a sampling pass opens.
	DefaultMaxJSONFiles = 50
	// logReadLimit bounds the prefix read from each sampled .log file.
	logReadLimit = 512 * 1024
	// jsonReadLimit bounds the prefix read from each sampled .json file.
	jsonReadLimit = 256 * 1024
	// jsonScanLines bounds the line scan for eventName in JSON files.
	jsonScanLines = 50
)

var (
	xmlEventIDRe    = regexp.MustCompile(`<EventID[^>]*>(\d+)</EventID>`)
	kvEventCodeRe   = regexp.MustCompile(`(?m)^EventCode=(\d+)`)
	jsonEventNameRe = regexp.MustCompile(`"eventName"\s*:\s*"([^"]+)"`)
)

// fileRecord is one candidate file: where it lives, which technique folder
// owns it, and the metadata sourcetype hint if any.
type fileRecord struct {
	path        string
	techniqueID string
	sourcetype  string
}

// Detection is the accumulated evidence for one data component.
type Detection struct {
	// Count is how many matching events (or JSON files) were seen.
	Count int
	// Sources are sorted human-readable evidence labels, e.g.
	// "Sysmon EID 1" or "CloudTrail CreateUser".
	Sources []string
}

// Sampler scans a bounded random sample of corpus files and classifies
// their event signatures into data components.
type Sampler struct {
	// MaxLogFiles and MaxJSONFiles cap the per-pass sample sizes; zero
	// means the defaults.
	MaxLogFiles  int
	MaxJSONFiles int
	// Seed fixes the sample for reproducible runs; nil samples randomly.
	Seed *int64
	// Workers bounds the file-reading pool; zero means GOMAXPROCS.
	Workers int
}

// Sample reads a bounded sample of the tree's log and JSON files and
// returns the detected data components keyed by component name. Unreadable
// files are skipped; the pass itself only fails on context cancellation.
func (s *Sampler) Sample(ctx context.Context, tree *dataset.Tree) (map[string]*Detection, error) {
	ctx, span := otel.Tracer("coverage").Start(ctx, "coverage.sample",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	records := collectFileRecords(tree)

	var logFiles, jsonFiles []fileRecord
	for _, rec := range records {
		switch {
		case strings.HasSuffix(rec.path, ".log"):
			logFiles = append(logFiles, rec)
		case strings.HasSuffix(rec.path, ".json"):
			jsonFiles = append(jsonFiles, rec)
		}
	}

	rng := s.rng()
	logSample := sampleRecords(logFiles, s.maxLogFiles(), rng)
	jsonSample := sampleRecords(jsonFiles, s.maxJSONFiles(), rng)
	span.SetAttributes(
		attribute.Int("coverage.log_files_sampled", len(logSample)),
		attribute.Int("coverage.json_files_sampled", len(jsonSample)),
	)

	acc := newAccumulator()

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, rec := range logSample {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := readPrefix(rec.path, logReadLimit)
			if err != nil {
				return nil
			}
			classifyLogChunk(chunk, acc)
			return nil
		})
	}
	for _, rec := range jsonSample {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := readPrefix(rec.path, jsonReadLimit)
			if err != nil {
				return nil
			}
			classifyJSONChunk(chunk, acc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	detected := acc.snapshot()
	span.SetAttributes(attribute.Int("coverage.components_detected", len(detected)))
	return detected, nil
}

func (s *Sampler) maxLogFiles() int {
	if s.MaxLogFiles > 0 {
		return s.MaxLogFiles
	}
	return DefaultMaxLogFiles
}

func (s *Sampler) maxJSONFiles() int {
	if s.MaxJSONFiles > 0 {
		return s.MaxJSONFiles
	}
	return DefaultMaxJSONFiles
}

func (s *Sampler) rng() *rand.Rand {
	if s.Seed != nil {
		return rand.New(rand.NewSource(*s.Seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

// collectFileRecords flattens the tree into file records, carrying each
// file's sourcetype hint from the owning metadata.
func collectFileRecords(tree *dataset.Tree) []fileRecord {
	var records []fileRecord
	add := func(techniqueID string, meta dataset.Metadata, files []dataset.FileInfo) {
		for _, f := range files {
			records = append(records, fileRecord{
				path:        f.Path,
				techniqueID: techniqueID,
				sourcetype:  meta.SourcetypeFor(f.Name),
			})
		}
	}
	for _, id := range tree.Order {
		tech := tree.Techniques[id]
		add(id, tech.Meta, tech.Files)
		for _, sc := range tech.Scenarios {
			add(id, sc.Meta, sc.Files)
		}
	}
	return records
}

func sampleRecords(records []fileRecord, n int, rng *rand.Rand) []fileRecord {
	if len(records) <= n {
		out := make([]fileRecord, len(records))
		copy(out, records)
		return out
	}
	shuffled := make([]fileRecord, len(records))
	copy(shuffled, records)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// classifyLogChunk extracts event-id signatures from a .log prefix and
// records the mapped components. XML event ids win; key-value event codes
// are tried next; a leading brace means the file is JSON despite the
// extension.
func classifyLogChunk(chunk string, acc *accumulator) {
	if matches := xmlEventIDRe.FindAllStringSubmatch(chunk, -1); len(matches) > 0 {
		recordEventIDs(logparse.FormatXMLEvent, matches, acc)
		return
	}
	if matches := kvEventCodeRe.FindAllStringSubmatch(chunk, -1); len(matches) > 0 {
		recordEventIDs(logparse.FormatKeyValue, matches, acc)
		return
	}
	if strings.HasPrefix(strings.TrimLeft(chunk, " \t\r\n"), "{") {
		classifyJSONChunk(chunk, acc)
	}
}

func recordEventIDs(format logparse.Format, matches [][]string, acc *accumulator) {
	counts := make(map[string]int)
	for _, m := range matches {
		counts[m[1]]++
	}
	for eid, count := range counts {
		ref, ok := EventComponents[MappingKey{Format: format, Discriminant: eid}]
		if !ok {
			continue
		}
		label := fmt.Sprintf("%s EID %s", formatLabel(format), eid)
		acc.add(ref.Component, count, label)
	}
}

// classifyJSONChunk scans the first jsonScanLines lines of a JSON prefix
// for an eventName and records the mapped component, falling back to
// generic cloud-service evidence for unmapped names.
func classifyJSONChunk(chunk string, acc *accumulator) {
	var eventName string
	lines := strings.SplitN(chunk, "\n", jsonScanLines+1)
	if len(lines) > jsonScanLines {
		lines = lines[:jsonScanLines]
	}
	for _, line := range lines {
		if m := jsonEventNameRe.FindStringSubmatch(line); m != nil {
			eventName = m[1]
			break
		}
	}
	if eventName == "" {
		return
	}

	label := "CloudTrail " + eventName
	if ref, ok := EventComponents[MappingKey{Format: logparse.FormatJSON, Discriminant: eventName}]; ok {
		acc.add(ref.Component, 1, label)
		return
	}
	acc.add(cloudFallbackComponent, 1, label)
}

// accumulator merges per-file detections under one mutex.
type accumulator struct {
	mu       sync.Mutex
	detected map[string]*detectionState
}

type detectionState struct {
	count   int
	sources map[string]bool
}

func newAccumulator() *accumulator {
	return &accumulator{detected: make(map[string]*detectionState)}
}

func (a *accumulator) add(component string, count int, source string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, ok := a.detected[component]
	if !ok {
		state = &detectionState{sources: make(map[string]bool)}
		a.detected[component] = state
	}
	state.count += count
	state.sources[source] = true
}

func (a *accumulator) snapshot() map[string]*Detection {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]*Detection, len(a.detected))
	for component, state := range a.detected {
		sources := make([]string, 0, len(state.sources))
		for s := range state.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		out[component] = &Detection{Count: state.count, Sources: sources}
	}
	return out
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
