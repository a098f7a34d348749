//go:build linux

package featdetect

import (
	"fmt"
	"golang.org/x/sys/unix"
	"runtime"
)

// maxCPUs is the number of cores a unix.CPUSet can describe
const maxCPUs = 1024

// SetCPUAffinity pins the calling process to the given CPU cores, eg:
// []int{4,5,6,7} for the fast cores of a big.LITTLE SoC
func SetCPUAffinity(cores []int) error {

	if len(cores) == 0 {
		return fmt.Errorf("no CPU cores given")
	}

	var set unix.CPUSet
	set.Zero()

	for _, core := range cores {

		if core < 0 || core >= runtime.NumCPU() {
			return fmt.Errorf("invalid CPU core: %d", core)
		}

		set.Set(core)
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// GetCPUAffinity returns the CPU cores the process is allowed to run on
func GetCPUAffinity() ([]int, error) {

	var set unix.CPUSet

	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("failed to get CPU affinity: %w", err)
	}

	var cores []int

	for i := 0; i < maxCPUs; i++ {
		if set.IsSet(i) {
			cores = append(cores, i)
		}
	}

	return cores, nil
}
