package classify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gekkolab/vivarium/internal/db"
	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/security"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

// Bounds for the processed-file memory: once it grows past highWaterMark the
// oldest entries are evicted down to lowWaterMark, in insertion order.
const (
	highWaterMark = 1000
	lowWaterMark  = 500
)

// DetectionSink is the slice of the detection store the pipeline writes
// through.
type DetectionSink interface {
	Insert(d db.Detection) error
}

// Pipeline watches the capture directory for unseen files and classifies
// each one exactly once. Two mechanisms jointly prevent reprocessing: a
// modification-time watermark that only advances, and a bounded set of
// already-processed paths.
type Pipeline struct {
	dir          string
	classifier   Classifier
	sink         DetectionSink
	interval     time.Duration
	initialDelay time.Duration
	clock        timeutil.Clock

	watermark time.Time
	processed map[string]struct{}
	order     []string // insertion order, for eviction
}

// NewPipeline creates the classification pipeline. initialDelay gives the
// motion pipeline time to establish the capture directory before the first
// listing.
func NewPipeline(dir string, classifier Classifier, sink DetectionSink, interval, initialDelay time.Duration, clock timeutil.Clock) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{
		dir:          dir,
		classifier:   classifier,
		sink:         sink,
		interval:     interval,
		initialDelay: initialDelay,
		clock:        clock,
		processed:    make(map[string]struct{}),
	}
}

// Run executes the classification loop until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.initialDelay > 0 {
		timer := p.clock.NewTimer(p.initialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C():
		}
	}

	monitoring.Logf("classify: started, interval=%v dir=%s", p.interval, p.dir)
	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("classify: stopped")
			return nil
		}

		p.cycle(ctx)

		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			monitoring.Logf("classify: stopped")
			return nil
		case <-timer.C():
		}
	}
}

// cycle lists capture files newer than the watermark and classifies each in
// ascending modification-time order. One bad file never aborts the rest of
// the batch.
func (p *Pipeline) cycle(ctx context.Context) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		// The capture directory may not exist yet; that is the initial-delay
		// race, not an error worth shouting about.
		if !os.IsNotExist(err) {
			monitoring.Logf("classify: listing %s: %v", p.dir, err)
		}
		return
	}

	type pending struct {
		path    string
		modTime time.Time
	}
	var batch []pending
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().After(p.watermark) {
			continue
		}
		batch = append(batch, pending{path: filepath.Join(p.dir, e.Name()), modTime: info.ModTime()})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].modTime.Before(batch[j].modTime) })

	for _, f := range batch {
		if ctx.Err() != nil {
			return
		}
		if _, seen := p.processed[f.path]; !seen {
			p.classifyFile(ctx, f.path)
			p.markProcessed(f.path)
		}
		p.watermark = f.modTime
	}

	p.evict()
}

// classifyFile runs one file through the classifier and persists the
// verdict. Failures are logged and the file is still counted as processed:
// classification is at-most-once, and retrying a frame the model choked on
// would just fail again every cycle.
func (p *Pipeline) classifyFile(ctx context.Context, path string) {
	if err := security.ValidatePathWithinDirectory(path, p.dir); err != nil {
		monitoring.Logf("classify: rejecting %s: %v", path, err)
		return
	}
	img, err := os.ReadFile(path)
	if err != nil {
		monitoring.Logf("classify: reading %s: %v", path, err)
		return
	}

	result, err := p.classifier.Detect(ctx, img, path)
	if err != nil {
		monitoring.Logf("classify: %s: %v", path, err)
		return
	}

	var bboxJSON string
	if result.BBox != nil {
		if raw, err := json.Marshal(result.BBox); err == nil {
			bboxJSON = string(raw)
		}
	}
	record := db.Detection{
		ID:         uuid.NewString(),
		FilePath:   path,
		Label:      result.Label,
		Confidence: result.Confidence,
		Detected:   result.Detected,
		BBoxJSON:   bboxJSON,
		RecordedAt: p.clock.Now(),
	}
	if err := p.sink.Insert(record); err != nil {
		monitoring.Logf("classify: persisting detection for %s: %v", path, err)
		return
	}
	monitoring.Logf("classify: %s -> %s (%.2f, detected=%v)", path, result.Label, result.Confidence, result.Detected)
}

func (p *Pipeline) markProcessed(path string) {
	p.processed[path] = struct{}{}
	p.order = append(p.order, path)
}

// evict bounds the processed-file memory. Eviction is insertion order, not
// access order: the oldest captures are also the ones the retention sweep
// deletes first, so forgetting them is safe.
func (p *Pipeline) evict() {
	if len(p.order) <= highWaterMark {
		return
	}
	drop := len(p.order) - lowWaterMark
	for _, path := range p.order[:drop] {
		delete(p.processed, path)
	}
	p.order = append([]string(nil), p.order[drop:]...)
	monitoring.Logf("classify: evicted %d processed-file entries", drop)
}
