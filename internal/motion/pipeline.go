package motion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

// CapturePrefix is the filename prefix for motion-triggered captures;
// SnapshotPrefix marks on-demand snapshots. Both share the capture directory
// and the retention sweep.
const (
	CapturePrefix  = "motion_"
	SnapshotPrefix = "snapshot_"

	captureStampLayout = "20060102_150405.000"
)

// Retention bounds the capture directory: files older than MaxAge go first,
// then the oldest files beyond MaxCount.
type Retention struct {
	MaxAge   time.Duration
	MaxCount int
}

// Pipeline polls the camera, compares consecutive frames and writes a
// capture file on confirmed motion, rate-limited by a minimum gap between
// captures.
type Pipeline struct {
	camera     sensors.Camera
	detector   *Detector
	captureDir string
	interval   time.Duration
	minGap     time.Duration
	retention  Retention
	clock      timeutil.Clock

	prev        []byte // single slot, overwritten each cycle
	lastCapture time.Time
}

// NewPipeline creates the motion pipeline.
func NewPipeline(camera sensors.Camera, detector *Detector, captureDir string, interval, minGap time.Duration, retention Retention, clock timeutil.Clock) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{
		camera:     camera,
		detector:   detector,
		captureDir: captureDir,
		interval:   interval,
		minGap:     minGap,
		retention:  retention,
		clock:      clock,
	}
}

// Run executes the capture loop until ctx is cancelled. If the camera is
// unavailable the loop never starts: there is nothing a frame pipeline can
// do without frames, and the condition is visible in the logs.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.camera.Available() {
		monitoring.Logf("motion: camera unavailable, pipeline not starting")
		return nil
	}
	if err := os.MkdirAll(p.captureDir, 0o755); err != nil {
		return fmt.Errorf("creating capture directory %s: %w", p.captureDir, err)
	}

	monitoring.Logf("motion: started, interval=%v min-gap=%v", p.interval, p.minGap)
	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("motion: stopped")
			return nil
		}

		p.cycle(ctx)

		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			monitoring.Logf("motion: stopped")
			return nil
		case <-timer.C():
		}
	}
}

// cycle grabs one frame and runs change detection against the previous one.
func (p *Pipeline) cycle(ctx context.Context) {
	frame, err := p.camera.Capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			monitoring.Logf("motion: capture failed: %v", err)
		}
		return
	}

	if p.prev == nil {
		// No baseline yet; comparison starts next cycle.
		p.prev = frame
		return
	}

	if p.detector.FramesDiffer(p.prev, frame) {
		if p.clock.Since(p.lastCapture) >= p.minGap {
			if err := p.saveCapture(frame); err != nil {
				monitoring.Logf("motion: saving capture failed: %v", err)
			} else {
				p.lastCapture = p.clock.Now()
				p.sweep()
			}
		} else {
			monitoring.Logf("motion: detected but suppressed (min gap %v)", p.minGap)
		}
	}

	p.prev = frame
}

func (p *Pipeline) saveCapture(frame []byte) error {
	path, err := WriteCapture(p.captureDir, CapturePrefix, p.clock.Now(), frame)
	if err != nil {
		return err
	}
	monitoring.Logf("motion: captured %s (%d bytes)", path, len(frame))
	return nil
}

// WriteCapture persists one frame into dir with a timestamped name like
// motion_20250601_120000.000.jpg. Also used by the snapshot-on-demand
// endpoint with SnapshotPrefix.
func WriteCapture(dir, prefix string, at time.Time, frame []byte) (string, error) {
	name := prefix + at.UTC().Format(captureStampLayout) + ".jpg"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// sweep applies the retention policy after a successful capture: first
// delete files older than MaxAge, then delete the oldest survivors beyond
// MaxCount.
func (p *Pipeline) sweep() {
	if err := SweepDir(p.captureDir, p.retention, p.clock.Now()); err != nil {
		monitoring.Logf("motion: retention sweep failed: %v", err)
	}
}

// SweepDir enforces retention over the capture files in dir. The surviving
// set is exactly the newest min(MaxCount, non-expired) files.
func SweepDir(dir string, retention Retention, now time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}

	type captureFile struct {
		path    string
		modTime time.Time
	}
	var files []captureFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, captureFile{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}

	// Age sweep first.
	if retention.MaxAge > 0 {
		cutoff := now.Add(-retention.MaxAge)
		kept := files[:0]
		for _, f := range files {
			if f.modTime.Before(cutoff) {
				if err := os.Remove(f.path); err != nil {
					monitoring.Logf("motion: removing expired %s: %v", f.path, err)
				}
				continue
			}
			kept = append(kept, f)
		}
		files = kept
	}

	// Count cap on the post-age-sweep set, oldest first.
	if retention.MaxCount > 0 && len(files) > retention.MaxCount {
		sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
		for _, f := range files[:len(files)-retention.MaxCount] {
			if err := os.Remove(f.path); err != nil {
				monitoring.Logf("motion: removing excess %s: %v", f.path, err)
			}
		}
	}
	return nil
}
