//Package batch sizes the lane batch against the device memory budget and
//implements the interleaved storage layout shared by the cipher kernels and
//the sequential reference.
package batch

import "github.com/pkg/errors"

//ErrInsufficientMemory means the device cannot hold the shared dataset, the
//operational headroom and at least one lane-group of scratchpads. The run
//must abort before any allocation.
var ErrInsufficientMemory = errors.New("insufficient device memory")

//PlanBatch computes the largest lane count that fits the device: free memory
//minus the fixed dataset reservation and headroom, divided over per-lane
//scratchpads, rounded down to a multiple of groupWidth. The cipher kernels
//assign a full cooperating group per lane and cannot run a partial group, so
//the rounding is mandatory. Pure; the caller performs the allocations.
func PlanBatch(freeBytes, totalBytes, datasetBytes, scratchpadBytes, headroomBytes uint64, groupWidth int) (int, error) {
	if groupWidth <= 0 {
		return 0, errors.Wrapf(ErrInsufficientMemory, "invalid group width %d", groupWidth)
	}
	if scratchpadBytes == 0 {
		return 0, errors.Wrap(ErrInsufficientMemory, "zero scratchpad size")
	}
	if freeBytes > totalBytes {
		freeBytes = totalBytes
	}
	reserved := datasetBytes + headroomBytes
	if freeBytes <= reserved {
		return 0, errors.Wrapf(ErrInsufficientMemory,
			"%d bytes free, %d reserved for dataset and headroom", freeBytes, reserved)
	}
	lanes := int((freeBytes - reserved) / scratchpadBytes)
	lanes = lanes / groupWidth * groupWidth
	if lanes == 0 {
		return 0, errors.Wrapf(ErrInsufficientMemory,
			"room for %d lanes, need at least one group of %d",
			int((freeBytes-reserved)/scratchpadBytes), groupWidth)
	}
	return lanes, nil
}
