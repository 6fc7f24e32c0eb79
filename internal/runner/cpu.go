package runner

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
)

// PhysicalCores returns the number of physical CPU cores, deliberately
// distinct from the logical (hyperthreaded) count, so the pool never
// oversubscribes the host. Falls back to the logical count when the
// topology cannot be read.
func PhysicalCores() int {
	n, err := cpu.Counts(false)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}

// DefaultWorkers clamps the physical core count to [1, jobs].
func DefaultWorkers(jobs int) int {
	n := PhysicalCores()
	if jobs > 0 && n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}
