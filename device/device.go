//Package device models the single massively parallel processor the miner runs
//on: enumeration, a memory budget, buffer allocation with guaranteed release
//and data-parallel kernel launches with a synchronous completion barrier.
//
//The in-tree implementation schedules lanes across host worker goroutines.
//Cooperating groups of GroupWidth execution units are dispatched as one
//indivisible unit of work, so the cipher kernels can rely on the four units
//of a group advancing in lockstep over adjacent interleave slots.
package device

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

//GroupWidth is the number of execution units in one cooperating group. The
//cipher kernels assign exactly one group per logical lane and cannot operate
//on a partial group.
const GroupWidth = 4

//DefaultMemBytes is the simulated device memory budget used when Open is not
//given an explicit one.
const DefaultMemBytes = 4 << 30

//Info describes an available device.
type Info struct {
	Ordinal      int
	Name         string
	ComputeUnits int
	TotalMem     uint64
}

//Options configures Open.
type Options struct {
	//TotalMem overrides DefaultMemBytes when nonzero.
	TotalMem uint64
	//Workers overrides the number of dispatch goroutines when nonzero.
	Workers int
}

//Device is an open parallel processor. All methods are safe for use from a
//single control goroutine; kernel launches block until every lane completed.
type Device struct {
	info    Info
	workers int

	mu      sync.Mutex
	freeMem uint64
	buffers map[*Buffer]struct{}
	closed  bool
}

//List enumerates the devices available to this process.
func List() []Info {
	return []Info{{
		Ordinal:      0,
		Name:         fmt.Sprintf("host-simt (%s)", runtime.GOARCH),
		ComputeUnits: runtime.NumCPU(),
		TotalMem:     DefaultMemBytes,
	}}
}

//Open selects a device by ordinal. A bad ordinal fails with ErrDeviceInit
//before anything is allocated.
func Open(ordinal int, opts Options) (*Device, error) {
	available := List()
	if ordinal < 0 || ordinal >= len(available) {
		return nil, errors.Wrapf(ErrDeviceInit, "no device with ordinal %d (%d available)", ordinal, len(available))
	}
	info := available[ordinal]
	if opts.TotalMem != 0 {
		info.TotalMem = opts.TotalMem
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = info.ComputeUnits
	}
	return &Device{
		info:    info,
		workers: workers,
		freeMem: info.TotalMem,
		buffers: make(map[*Buffer]struct{}),
	}, nil
}

//Info returns the device description.
func (d *Device) Info() Info {
	return d.info
}

//MemInfo returns the free and total memory of the device in bytes.
func (d *Device) MemInfo() (free, total uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freeMem, d.info.TotalMem
}

//Close releases every buffer still held on the device. Launches after Close
//fail with ErrLaunchFailure.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	held := make([]*Buffer, 0, len(d.buffers))
	for b := range d.buffers {
		held = append(held, b)
	}
	d.mu.Unlock()
	for _, b := range held {
		b.Release()
	}
}
