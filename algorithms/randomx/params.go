package randomx

import "github.com/zdhzdh102417/rxminer/batch"

//Protocol parameters. Sizes are per lane unless stated otherwise; every
//region handled by the cipher kernels is a multiple of batch.ChunkSize.
const (
	//ScratchpadSize is the large private region filled once and compressed
	//once per full hash. This is the memory-hard part.
	ScratchpadSize = 2 << 20

	//ProgramSize is the per-round program buffer the VM is seeded from.
	ProgramSize = 2176

	//RegisterFileSize is the per-lane register state mutated every round.
	RegisterFileSize = 256

	//HashStateSize is the width of the chained BLAKE2b-512 digest.
	HashStateSize = 64

	//ProgramRounds is the fixed number of program rounds per full hash.
	ProgramRounds = 8

	//FinalDigestSize is the proof of work output width of the last round.
	FinalDigestSize = 32

	//TemplateSize is the length of the shared header template.
	TemplateSize = 76
	//NonceOffset is the byte offset of the 32 bit little-endian nonce field.
	NonceOffset = 39
	//LaneFieldOffset is a second 32 bit little-endian field, used by the
	//verification harness to differentiate lanes without touching the nonce.
	LaneFieldOffset = 43

	//CompressOutputSize bytes of the scratchpad compression land in the
	//register file at CompressOutputOffset on the final round.
	CompressOutputSize   = 64
	CompressOutputOffset = RegisterFileSize - CompressOutputSize

	//DatasetReservation and MemoryHeadroom are taken off the free device
	//memory before the batch is sized. The dataset itself belongs to the VM
	//stage and is not allocated here.
	DatasetReservation = 2080 << 20
	MemoryHeadroom     = 256 << 20
)

//HashRateSampleBatches is how many batches are folded into one throughput
//sample, to keep per-batch timing noise out of the reports.
const HashRateSampleBatches = 16

func init() {
	//The cipher kernels walk regions in whole chunks.
	if ScratchpadSize%batch.ChunkSize != 0 || ProgramSize%batch.ChunkSize != 0 {
		panic("randomx: region sizes must be multiples of the interleave chunk")
	}
}
