package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekkolab/vivarium/internal/db"
	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

type countingClassifier struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newCountingClassifier() *countingClassifier {
	return &countingClassifier{calls: make(map[string]int), fail: make(map[string]bool)}
}

func (c *countingClassifier) Detect(ctx context.Context, img []byte, path string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[path]++
	if c.fail[filepath.Base(path)] {
		return nil, errors.New("inference backend exploded")
	}
	return &Result{Label: "gecko", Confidence: 0.9, Detected: true}, nil
}

type memorySink struct {
	mu      sync.Mutex
	records []db.Detection
}

func (s *memorySink) Insert(d db.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, d)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func writeCapture(t *testing.T, dir, name string, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("jpegbytes"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func TestCycleClassifiesNewFilesOnce(t *testing.T) {
	dir := t.TempDir()
	cls := newCountingClassifier()
	sink := &memorySink{}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	p := NewPipeline(dir, cls, sink, time.Second, 0, clock)

	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	a := writeCapture(t, dir, "motion_a.jpg", base)
	b := writeCapture(t, dir, "motion_b.jpg", base.Add(time.Minute))

	p.cycle(context.Background())
	assert.Equal(t, 1, cls.calls[a])
	assert.Equal(t, 1, cls.calls[b])
	assert.Equal(t, 2, sink.count())

	// Second cycle with nothing new: no file is ever classified twice.
	p.cycle(context.Background())
	assert.Equal(t, 1, cls.calls[a])
	assert.Equal(t, 1, cls.calls[b])
	assert.Equal(t, 2, sink.count())
}

func TestCycleWatermarkAdmitsOnlyNewerFiles(t *testing.T) {
	dir := t.TempDir()
	cls := newCountingClassifier()
	sink := &memorySink{}
	p := NewPipeline(dir, cls, sink, time.Second, 0, timeutil.RealClock{})

	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	writeCapture(t, dir, "motion_old.jpg", base)
	p.cycle(context.Background())
	require.Equal(t, 1, sink.count())

	// A file stamped at-or-before the watermark is invisible even though it
	// is not in the processed set.
	stale := writeCapture(t, dir, "motion_stale.jpg", base.Add(-time.Minute))
	fresh := writeCapture(t, dir, "motion_fresh.jpg", base.Add(time.Minute))
	p.cycle(context.Background())

	assert.Zero(t, cls.calls[stale])
	assert.Equal(t, 1, cls.calls[fresh])
	assert.Equal(t, 2, sink.count())
}

func TestCycleOneFailureDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	cls := newCountingClassifier()
	cls.fail["motion_b.jpg"] = true
	sink := &memorySink{}
	p := NewPipeline(dir, cls, sink, time.Second, 0, timeutil.RealClock{})

	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	writeCapture(t, dir, "motion_a.jpg", base)
	writeCapture(t, dir, "motion_b.jpg", base.Add(time.Second))
	writeCapture(t, dir, "motion_c.jpg", base.Add(2*time.Second))

	p.cycle(context.Background())

	// a and c persisted; b failed but the batch carried on.
	assert.Equal(t, 2, sink.count())

	// The failed file is not retried next cycle (at-most-once).
	p.cycle(context.Background())
	assert.Equal(t, 1, cls.calls[filepath.Join(dir, "motion_b.jpg")])
}

func TestCycleSkipsNonCaptureFiles(t *testing.T) {
	dir := t.TempDir()
	cls := newCountingClassifier()
	sink := &memorySink{}
	p := NewPipeline(dir, cls, sink, time.Second, 0, timeutil.RealClock{})

	writeCapture(t, dir, "notes.txt", time.Now())
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	p.cycle(context.Background())
	assert.Zero(t, sink.count())
}

func TestCycleMissingDirIsQuiet(t *testing.T) {
	p := NewPipeline(filepath.Join(t.TempDir(), "not-yet"), newCountingClassifier(), &memorySink{}, time.Second, 0, timeutil.RealClock{})
	p.cycle(context.Background()) // must not panic or log an error
}

func TestEvictionBoundsProcessedMemory(t *testing.T) {
	p := NewPipeline(t.TempDir(), newCountingClassifier(), &memorySink{}, time.Second, 0, timeutil.RealClock{})

	for i := 0; i < highWaterMark+1; i++ {
		p.markProcessed(fmt.Sprintf("f%04d.jpg", i))
	}
	p.evict()

	assert.Len(t, p.processed, lowWaterMark)
	assert.Len(t, p.order, lowWaterMark)

	// Oldest entries went first, newest survive.
	_, oldestPresent := p.processed["f0000.jpg"]
	assert.False(t, oldestPresent)
	_, newestKept := p.processed[fmt.Sprintf("f%04d.jpg", highWaterMark)]
	assert.True(t, newestKept)
}

func TestRunHonorsInitialDelay(t *testing.T) {
	dir := t.TempDir()
	cls := newCountingClassifier()
	sink := &memorySink{}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	p := NewPipeline(dir, cls, sink, time.Minute, 30*time.Second, clock)

	writeCapture(t, dir, "motion_early.jpg", time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	// Until the grace delay elapses nothing is classified.
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.count())

	require.Eventually(t, func() bool {
		clock.Advance(30 * time.Second)
		return sink.count() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
