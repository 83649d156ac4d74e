package motion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// scriptedCamera returns canned frames in order, repeating the last one.
type scriptedCamera struct {
	frames    [][]byte
	calls     int
	available bool
}

func (c *scriptedCamera) Available() bool { return c.available }

func (c *scriptedCamera) Capture(ctx context.Context) ([]byte, error) {
	i := c.calls
	if i >= len(c.frames) {
		i = len(c.frames) - 1
	}
	c.calls++
	return c.frames[i], nil
}

func countCaptures(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

func newTestPipeline(t *testing.T, cam *scriptedCamera, clock timeutil.Clock, minGap time.Duration) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	p := NewPipeline(cam, NewDetector(0.05), dir, time.Second, minGap,
		Retention{MaxAge: time.Hour, MaxCount: 100}, clock)
	return p, dir
}

func TestFirstCycleEstablishesBaseline(t *testing.T) {
	black := solidFrame(t, 0)
	white := solidFrame(t, 255)
	cam := &scriptedCamera{frames: [][]byte{black, white}, available: true}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	p, dir := newTestPipeline(t, cam, clock, 0)

	p.cycle(context.Background())
	assert.Zero(t, countCaptures(t, dir), "baseline cycle must not capture")

	clock.Advance(time.Minute)
	p.cycle(context.Background())
	assert.Equal(t, 1, countCaptures(t, dir))
}

func TestRateLimitSuppressesSecondCapture(t *testing.T) {
	// Alternating frames: motion on every comparison cycle.
	black := solidFrame(t, 0)
	white := solidFrame(t, 255)
	cam := &scriptedCamera{frames: [][]byte{black, white, black, white}, available: true}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	p, dir := newTestPipeline(t, cam, clock, 30*time.Second)

	p.cycle(context.Background()) // baseline
	clock.Advance(time.Minute)
	p.cycle(context.Background()) // motion, captured
	clock.Advance(2 * time.Second)
	p.cycle(context.Background()) // motion, inside min gap: suppressed

	assert.Equal(t, 1, countCaptures(t, dir), "exactly one capture within the min gap")

	clock.Advance(time.Minute)
	p.cycle(context.Background())
	assert.Equal(t, 2, countCaptures(t, dir), "capture resumes after the gap")
}

func TestNoMotionNoCapture(t *testing.T) {
	frame := solidFrame(t, 128)
	cam := &scriptedCamera{frames: [][]byte{frame, frame, frame}, available: true}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	p, dir := newTestPipeline(t, cam, clock, 0)

	for i := 0; i < 3; i++ {
		p.cycle(context.Background())
		clock.Advance(time.Minute)
	}
	assert.Zero(t, countCaptures(t, dir))
}

func TestRunRefusesUnavailableCamera(t *testing.T) {
	cam := &scriptedCamera{available: false}
	p, _ := newTestPipeline(t, cam, timeutil.RealClock{}, 0)

	err := p.Run(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, cam.calls, "unavailable camera must never be polled")
}

func TestWriteCaptureNameEmbedsTimestamp(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	path, err := WriteCapture(dir, CapturePrefix, at, []byte("frame"))
	require.NoError(t, err)
	assert.Equal(t, "motion_20250601_123045.000.jpg", filepath.Base(path))
}

func TestSweepDirAgeThenCount(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	// Three expired files, four fresh ones; count cap of two.
	for i, age := range []time.Duration{72 * time.Hour, 50 * time.Hour, 49 * time.Hour, 3 * time.Hour, 2 * time.Hour, time.Hour, time.Minute} {
		path := filepath.Join(dir, CapturePrefix+time.Now().Add(-age).UTC().Format(captureStampLayout)+".jpg")
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
		stamp := now.Add(-age)
		require.NoError(t, os.Chtimes(path, stamp, stamp))
	}

	err := SweepDir(dir, Retention{MaxAge: 48 * time.Hour, MaxCount: 2}, now)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "survivors = newest min(count cap, non-expired)")

	// The two newest files survive.
	for _, e := range entries {
		info, err := e.Info()
		require.NoError(t, err)
		assert.True(t, info.ModTime().After(now.Add(-2*time.Hour-time.Minute)))
	}
}

func TestSweepDirIgnoresNonCaptures(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	old := time.Now().Add(-100 * time.Hour)
	require.NoError(t, os.Chtimes(keep, old, old))

	require.NoError(t, SweepDir(dir, Retention{MaxAge: time.Hour, MaxCount: 1}, time.Now()))
	_, err := os.Stat(keep)
	assert.NoError(t, err, "non-jpg files are not swept")
}
