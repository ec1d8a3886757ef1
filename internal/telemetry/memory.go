package telemetry

import (
	"math"
	"runtime"
)

// MemoryReading is one heap footprint observation in whole megabytes.
type MemoryReading struct {
	UsedMB  int
	TotalMB int
}

// MemoryReader is the host's heap introspection capability. Read reports
// ok=false when the host exposes none; the monitor then keeps its previous
// values and the memory rule contributes no signal.
type MemoryReader interface {
	Read() (MemoryReading, bool)
}

// RuntimeMemoryReader samples the Go runtime heap.
type RuntimeMemoryReader struct{}

func (RuntimeMemoryReader) Read() (MemoryReading, bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemoryReading{
		UsedMB:  bytesToMB(ms.HeapAlloc),
		TotalMB: bytesToMB(ms.HeapSys),
	}, true
}

func bytesToMB(b uint64) int {
	return int(math.Round(float64(b) / (1024 * 1024)))
}
