package sensors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/gekkolab/vivarium/internal/timeutil"
)

// ResourceSampler collects one host resource snapshot per call.
type ResourceSampler struct {
	diskPath string
	clock    timeutil.Clock
}

// NewResourceSampler samples memory, CPU and the filesystem mounted at
// diskPath (normally "/").
func NewResourceSampler(diskPath string, clock timeutil.Clock) *ResourceSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &ResourceSampler{diskPath: diskPath, clock: clock}
}

// Collect gathers a snapshot. CPU percentage is measured since the previous
// call, so the first sample after startup reports the instantaneous value.
func (s *ResourceSampler) Collect(ctx context.Context) (*ResourceSample, error) {
	cpuPcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("sampling cpu: %w", err)
	}
	var cpuPct float64
	if len(cpuPcts) > 0 {
		cpuPct = cpuPcts[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("sampling memory: %w", err)
	}
	du, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return nil, fmt.Errorf("sampling disk %s: %w", s.diskPath, err)
	}

	return &ResourceSample{
		CPUPct:         cpuPct,
		MemPct:         vm.UsedPercent,
		DiskPct:        du.UsedPercent,
		MemUsedBytes:   vm.Used,
		MemTotalBytes:  vm.Total,
		DiskUsedBytes:  du.Used,
		DiskTotalBytes: du.Total,
		Timestamp:      s.clock.Now(),
	}, nil
}
