package randomx

import (
	"github.com/zdhzdh102417/rxminer/batch"
	"github.com/zdhzdh102417/rxminer/device"
)

//fill.go holds the cipher kernels. One cooperating group serves one logical
//lane; unit u of the group drives cipher stream u, and because chunk c of a
//lane belongs to stream c&3, the group's four units always touch four
//adjacent interleave slots in the same step.

//launchFill expands each lane's 64 byte hash state into laneBytes of its
//interleaved region. The same kernel serves the scratchpad and the program
//buffer; scratchpadFill only picks the launch name for error reporting.
func launchFill(dev *device.Device, lanes int, seeds, region []byte, laneBytes int, scratchpadFill bool) error {
	name := "fillProgram"
	if scratchpadFill {
		name = "fillScratchpad"
	}
	chunks := laneBytes / batch.ChunkSize
	return dev.LaunchGroups(name, lanes, func(g device.Group) {
		lane := g.Index()
		seed := seeds[lane*HashStateSize : (lane+1)*HashStateSize]
		var state [device.GroupWidth][16]byte
		for u := 0; u < g.Width(); u++ {
			copy(state[u][:], seed[u*16:(u+1)*16])
		}
		for step := 0; step*g.Width() < chunks; step++ {
			for u := 0; u < g.Width(); u++ {
				c := step*g.Width() + u
				if c >= chunks {
					break
				}
				state[u] = aesRound(&state[u], &fillKeys[u])
				off := batch.ChunkOffset(c, lane, lanes)
				copy(region[off:off+batch.ChunkSize], state[u][:])
			}
		}
	})
}

//launchCompress folds each lane's interleaved region into outputSize bytes of
//its register file at outputOffset, leaving the rest of the registers alone.
func launchCompress(dev *device.Device, lanes int, region []byte, laneBytes int, registers []byte, outputOffset, outputSize int) error {
	chunks := laneBytes / batch.ChunkSize
	return dev.LaunchGroups("compressScratchpad", lanes, func(g device.Group) {
		lane := g.Index()
		acc := compressInit
		for step := 0; step*g.Width() < chunks; step++ {
			for u := 0; u < g.Width(); u++ {
				c := step*g.Width() + u
				if c >= chunks {
					break
				}
				off := batch.ChunkOffset(c, lane, lanes)
				var chunk [16]byte
				copy(chunk[:], region[off:off+batch.ChunkSize])
				acc[u] = aesRound(&acc[u], &chunk)
			}
		}
		var out [64]byte
		for u := range acc {
			acc[u] = aesRound(&acc[u], &extractKeys[0])
			acc[u] = aesRound(&acc[u], &extractKeys[1])
			copy(out[u*16:(u+1)*16], acc[u][:])
		}
		regs := registers[lane*RegisterFileSize : (lane+1)*RegisterFileSize]
		copy(regs[outputOffset:outputOffset+outputSize], out[:outputSize])
	})
}
