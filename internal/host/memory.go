package host

import (
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// Sample is a single memory reading: managed (Go heap) and working-set
// (process RSS) memory, both in megabytes.
type Sample struct {
	ManagedMB    float64
	WorkingSetMB float64
}

// Sampler reads the current memory sample. It is a field on Host so tests
// can inject deterministic values instead of reading real process memory.
type Sampler func() Sample

// DefaultSampler reads Go runtime heap stats for the managed figure and
// /proc/self/status' VmRSS for the working set on platforms where it is
// available, falling back to the Go heap figure elsewhere.
func DefaultSampler() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	managedMB := float64(ms.Alloc) / (1024 * 1024)
	workingSetMB := managedMB
	if rss, ok := readRSSMB(); ok {
		workingSetMB = rss
	}
	return Sample{ManagedMB: managedMB, WorkingSetMB: workingSetMB}
}

func readRSSMB() (float64, bool) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return kb / 1024, true
	}
	return 0, false
}

// ForceCollect asks the Go runtime to release memory back to the OS, the
// "attempt a forced collection" step of the memory guard.
func ForceCollect() {
	runtime.GC()
	debug.FreeOSMemory()
}
