package randomx

import (
	"encoding/binary"

	"github.com/dchest/blake2b"
)

//reference.go is the sequential, single-lane, contiguous-memory rendition of
//every kernel. The parallel kernels must be bit-identical to these over the
//de-interleaved byte streams; the verification harness and the tests hold
//them to that.

//referenceInitialHash hashes the template with its nonce field set to nonce.
func referenceInitialHash(template []byte, nonce uint32) [64]byte {
	t := append([]byte(nil), template...)
	binary.LittleEndian.PutUint32(t[NonceOffset:], nonce)
	return blake2b.Sum512(t)
}

//referenceFoldRegisters hashes a register file to digestSize (32 or 64) bytes.
func referenceFoldRegisters(registers []byte, digestSize int) []byte {
	switch digestSize {
	case 64:
		d := blake2b.Sum512(registers)
		return d[:]
	case 32:
		d := blake2b.Sum256(registers)
		return d[:]
	}
	panic("randomx: unsupported digest size")
}

//referenceFill expands a 64 byte seed into out: four cipher streams whose
//states are the four quarters of the seed, advanced one round per 16 byte
//block in round-robin, each stream under its own fixed key.
func referenceFill(seed []byte, out []byte) {
	var state [4][16]byte
	for s := range state {
		copy(state[s][:], seed[s*16:(s+1)*16])
	}
	for c := 0; c < len(out)/16; c++ {
		s := c & 3
		state[s] = aesRound(&state[s], &fillKeys[s])
		copy(out[c*16:(c+1)*16], state[s][:])
	}
}

//referenceCompress folds a contiguous region into a 64 byte digest: each 16
//byte chunk is mixed into its round-robin accumulator as the round key, then
//every accumulator takes the two extract rounds.
func referenceCompress(region []byte) (out [64]byte) {
	acc := compressInit
	for c := 0; c < len(region)/16; c++ {
		s := c & 3
		var chunk [16]byte
		copy(chunk[:], region[c*16:(c+1)*16])
		acc[s] = aesRound(&acc[s], &chunk)
	}
	for s := range acc {
		acc[s] = aesRound(&acc[s], &extractKeys[0])
		acc[s] = aesRound(&acc[s], &extractKeys[1])
		copy(out[s*16:(s+1)*16], acc[s][:])
	}
	return
}
