package randomx

import (
	"github.com/pkg/errors"
	"github.com/zdhzdh102417/rxminer/device"
)

//batchBuffers owns every device buffer a batch needs. Allocation is all or
//nothing: if any request fails, everything acquired before it is released and
//the error reports which buffer did not fit.
type batchBuffers struct {
	lanes int

	scratchpad  *device.Buffer
	program     *device.Buffer
	registers   *device.Buffer
	hashState   *device.Buffer
	finalDigest *device.Buffer
}

func allocBatchBuffers(dev *device.Device, lanes int) (*batchBuffers, error) {
	b := &batchBuffers{lanes: lanes}
	var err error
	for _, req := range []struct {
		dst  **device.Buffer
		name string
		size uint64
	}{
		{&b.scratchpad, "scratchpad", uint64(lanes) * ScratchpadSize},
		{&b.program, "program", uint64(lanes) * ProgramSize},
		{&b.registers, "registers", uint64(lanes) * RegisterFileSize},
		{&b.hashState, "hashState", uint64(lanes) * HashStateSize},
		{&b.finalDigest, "finalDigest", uint64(lanes) * FinalDigestSize},
	} {
		*req.dst, err = dev.NewBuffer(req.name, req.size)
		if err != nil {
			b.release()
			return nil, errors.WithMessagef(err, "allocating batch of %d lanes", lanes)
		}
	}
	return b, nil
}

func (b *batchBuffers) release() {
	for _, buf := range []*device.Buffer{b.scratchpad, b.program, b.registers, b.hashState, b.finalDigest} {
		if buf != nil {
			buf.Release()
		}
	}
}
