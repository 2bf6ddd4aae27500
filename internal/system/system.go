// Package system probes the host to size batch concurrency
package system

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// WorkerMemory is the memory budget assumed per concurrent image job.
const WorkerMemory = 256 * humanize.MiByte

// Resources is a snapshot of host capacity
type Resources struct {
	CPUs            int
	TotalMemory     uint64
	AvailableMemory uint64
	UsedPercent     float64
}

// Probe reads CPU and memory figures, falling back to runtime.NumCPU when
// gopsutil cannot count CPUs.
func Probe() (Resources, error) {
	res := Resources{CPUs: runtime.NumCPU()}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		res.CPUs = n
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return res, fmt.Errorf("read memory stats: %w", err)
	}
	res.TotalMemory = vm.Total
	res.AvailableMemory = vm.Available
	res.UsedPercent = vm.UsedPercent
	return res, nil
}

func (r Resources) String() string {
	return fmt.Sprintf("%d CPUs, %s of %s memory available (%.1f%% used)",
		r.CPUs, humanize.IBytes(r.AvailableMemory), humanize.IBytes(r.TotalMemory), r.UsedPercent)
}

// Workers returns configured when positive, otherwise one worker per CPU
// limited by available memory, never less than one.
func Workers(configured int) int {
	if configured > 0 {
		return configured
	}
	res, err := Probe()
	if err != nil {
		return max(res.CPUs, 1)
	}
	return workersFor(res)
}

func workersFor(res Resources) int {
	n := max(res.CPUs, 1)
	if res.AvailableMemory > 0 {
		byMemory := int(res.AvailableMemory / WorkerMemory)
		n = min(n, byMemory)
	}
	return max(n, 1)
}
