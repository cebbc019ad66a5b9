package batch

//ChunkSize is the interleave granularity: the cipher's natural 16 byte block.
const ChunkSize = 16

//Per-lane regions are stored interleaved so that the cooperating group's
//accesses coalesce: chunk c of lane l in an L-lane region lives at physical
//offset (c*L + l) * ChunkSize. The transform is storage only; the contiguous
//per-lane byte stream it encodes is exactly what the sequential reference
//produces.

//ChunkOffset returns the physical byte offset of chunk number chunk of the
//given lane inside an interleaved region holding lanes lanes.
func ChunkOffset(chunk, lane, lanes int) int {
	return (chunk*lanes + lane) * ChunkSize
}

//Deinterleave extracts one lane's contiguous byte stream from an interleaved
//region. laneBytes is the per-lane region size and must be a multiple of
//ChunkSize; phys must hold lanes*laneBytes bytes.
func Deinterleave(phys []byte, lane, lanes, laneBytes int) []byte {
	if laneBytes%ChunkSize != 0 {
		panic("batch: lane region size not a multiple of the chunk size")
	}
	out := make([]byte, laneBytes)
	for c := 0; c < laneBytes/ChunkSize; c++ {
		src := ChunkOffset(c, lane, lanes)
		copy(out[c*ChunkSize:(c+1)*ChunkSize], phys[src:src+ChunkSize])
	}
	return out
}

//Interleave writes one lane's contiguous byte stream into its slots of an
//interleaved region, leaving every other lane's chunks untouched.
func Interleave(phys []byte, lane, lanes int, contiguous []byte) {
	if len(contiguous)%ChunkSize != 0 {
		panic("batch: lane region size not a multiple of the chunk size")
	}
	for c := 0; c < len(contiguous)/ChunkSize; c++ {
		dst := ChunkOffset(c, lane, lanes)
		copy(phys[dst:dst+ChunkSize], contiguous[c*ChunkSize:(c+1)*ChunkSize])
	}
}
