package device

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

//Group identifies one cooperating group inside a launch. The group's
//GroupWidth execution units advance in lockstep; kernels drive them with a
//width-GroupWidth inner loop over Unit indices 0..Width()-1.
type Group struct {
	index int
}

//Index returns the group's position in the launch, equal to the logical lane
//it serves.
func (g Group) Index() int {
	return g.index
}

//Width returns the number of cooperating execution units in the group.
func (g Group) Width() int {
	return GroupWidth
}

//Launch runs kernel once per lane, data-parallel with no ordering guarantee
//between lanes, and blocks until every lane completed. This completion is the
//stage barrier the orchestrator relies on: when Launch returns nil, all
//writes issued by the kernel are visible to the host and to later launches.
func (d *Device) Launch(name string, lanes int, kernel func(lane int)) error {
	return d.dispatch(name, lanes, kernel)
}

//LaunchGroups runs kernel once per cooperating group. Groups are indivisible:
//all GroupWidth units of a group run on the same dispatch unit, never split
//across workers.
func (d *Device) LaunchGroups(name string, groups int, kernel func(g Group)) error {
	return d.dispatch(name, groups, func(i int) {
		kernel(Group{index: i})
	})
}

func (d *Device) dispatch(name string, items int, run func(i int)) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.Wrapf(ErrLaunchFailure, "%s: device closed", name)
	}
	workers := d.workers
	d.mu.Unlock()
	if items < 0 {
		return errors.Wrapf(ErrLaunchFailure, "%s: negative launch size %d", name, items)
	}
	if items == 0 {
		return nil
	}
	if workers > items {
		workers = items
	}

	var (
		next   int64 = -1
		failed atomic.Value
		wg     sync.WaitGroup
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failed.Store(errors.Wrapf(ErrExecutionFailure, "%s: %v", name, r))
				}
			}()
			for {
				i := int(atomic.AddInt64(&next, 1))
				if i >= items {
					return
				}
				run(i)
			}
		}()
	}
	wg.Wait()
	if err, ok := failed.Load().(error); ok {
		return err
	}
	return nil
}
