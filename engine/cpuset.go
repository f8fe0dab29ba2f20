package engine

import (
	"math"
	"math/bits"

	"fortio.org/safecast"

	"github.com/corofab/corofab/task"
)

// phi is the golden ratio's fractional part, used to build a
// low-discrepancy sequence for the tie-break fallback in Scheduler.Schedule:
// ties spread evenly across the permitted CPUs instead of clustering on
// whichever one happens to sort first.
const phi = 0.6180339887498949

// normalizeMask expands the "any CPU" sentinel to every valid bit for a
// scheduler with numCPU queues, and otherwise clears any bit beyond numCPU.
func normalizeMask(mask task.CPUSet, numCPU int) task.CPUSet {
	var valid task.CPUSet
	for i := 0; i < numCPU; i++ {
		valid |= 1 << uint(i)
	}
	if mask == task.AllCPUs {
		return valid
	}
	return mask & valid
}

// cpuBits returns the CPU ids set in mask, in increasing order.
func cpuBits(mask task.CPUSet) []int {
	bitsSet := make([]int, 0, bits.OnesCount64(uint64(mask)))
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(i)) != 0 {
			bitsSet = append(bitsSet, i)
		}
	}
	return bitsSet
}

// pickTieBreak maps an ever-increasing counter to one of the CPUs in mask
// using floor(frac(counter*phi) * popcount(mask)): truncating rather than
// rounding, so every counter value maps to a valid index, never popcount
// itself.
func pickTieBreak(counter uint64, mask task.CPUSet) int {
	candidates := cpuBits(mask)
	if len(candidates) == 0 {
		return -1
	}

	frac, _ := bits64Frac(counter)
	idx := int(frac * float64(len(candidates)))
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	return candidates[idx]
}

// bits64Frac returns the fractional part of counter*phi, plus the error
// fortio's safecast reports when counter does not fit in an int64 (the
// checked narrowing the corpus leans on has its home here). A raw
// uint64->float64 counter loses precision past 2^53, so very large counters
// yield a less evenly distributed fraction.
func bits64Frac(counter uint64) (float64, error) {
	signed, err := safecast.Convert[int64](counter)
	if err != nil {
		// Counters this large are past float64's exact range; fall back to
		// the raw value. math.Floor keeps the result in [0, 1) even where
		// whole exceeds the int64 range.
		whole := float64(counter) * phi
		return whole - math.Floor(whole), err
	}
	whole := float64(signed) * phi
	return whole - float64(int64(whole)), nil
}
