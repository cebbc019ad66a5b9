package randomx

import (
	"encoding/binary"

	"github.com/dchest/blake2b"
	"github.com/zdhzdh102417/rxminer/device"
)

//blake.go holds the keyed-hash kernels. Both are strictly per lane: no state
//crosses lanes, so the output is identical to the sequential reference
//whatever the batch size or lane position.

//launchInitialHash seeds a batch: each lane hashes the shared template with
//the nonce field overwritten by nonceBase+lane and writes its 64 byte digest
//into its hash state slot. The template itself is never written by the lanes.
func launchInitialHash(dev *device.Device, lanes int, template []byte, nonceBase uint32, hashStates []byte) error {
	return dev.Launch("initialHash", lanes, func(lane int) {
		var t [TemplateSize]byte
		copy(t[:], template)
		binary.LittleEndian.PutUint32(t[NonceOffset:NonceOffset+4], nonceBase+uint32(lane))
		d := blake2b.Sum512(t[:])
		copy(hashStates[lane*HashStateSize:(lane+1)*HashStateSize], d[:])
	})
}

//launchFoldRegisters hashes each lane's register file into out with stride
//digestSize. Width 64 chains into the next round's fill seed, width 32 is the
//final proof of work digest.
func launchFoldRegisters(dev *device.Device, lanes int, registers, out []byte, digestSize int) error {
	switch digestSize {
	case 64:
		return dev.Launch("foldRegisters64", lanes, func(lane int) {
			d := blake2b.Sum512(registers[lane*RegisterFileSize : (lane+1)*RegisterFileSize])
			copy(out[lane*64:(lane+1)*64], d[:])
		})
	case 32:
		return dev.Launch("foldRegisters32", lanes, func(lane int) {
			d := blake2b.Sum256(registers[lane*RegisterFileSize : (lane+1)*RegisterFileSize])
			copy(out[lane*32:(lane+1)*32], d[:])
		})
	}
	panic("randomx: unsupported digest size")
}
