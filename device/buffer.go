package device

import "github.com/pkg/errors"

//Buffer is a named region of device memory. It stays charged against the
//device budget until Release is called; Device.Close releases stragglers.
type Buffer struct {
	dev      *Device
	name     string
	data     []byte
	released bool
}

//NewBuffer allocates size bytes of zeroed device memory. The name only shows
//up in errors and logs. Fails with ErrAllocationFailed when the request does
//not fit the remaining budget or the device is closed.
func (d *Device) NewBuffer(name string, size uint64) (*Buffer, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.Wrapf(ErrAllocationFailed, "%s: device closed", name)
	}
	if size > d.freeMem {
		d.mu.Unlock()
		return nil, errors.Wrapf(ErrAllocationFailed, "%s: %d bytes requested, %d free", name, size, d.freeMem)
	}
	d.freeMem -= size
	b := &Buffer{dev: d, name: name, data: make([]byte, size)}
	d.buffers[b] = struct{}{}
	d.mu.Unlock()
	return b, nil
}

//Bytes exposes the buffer contents. Kernels index into this directly; the
//orchestrator guarantees no kernel referencing it is in flight while the host
//writes to it.
func (b *Buffer) Bytes() []byte {
	return b.data
}

//Name returns the name given at allocation.
func (b *Buffer) Name() string {
	return b.name
}

//Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

//Release returns the buffer's memory to the device budget. Releasing twice is
//a no-op.
func (b *Buffer) Release() {
	d := b.dev
	d.mu.Lock()
	if !b.released {
		b.released = true
		d.freeMem += uint64(len(b.data))
		delete(d.buffers, b)
		b.data = nil
	}
	d.mu.Unlock()
}
