package batch

//LaneView is a read-only window onto one lane's slice of an interleaved
//region. It lets a consumer address the lane's logical, contiguous byte
//stream without materializing a de-interleaved copy.
type LaneView struct {
	region    []byte
	lane      int
	lanes     int
	laneBytes int
}

//NewLaneView wraps lane lane of an interleaved region of lanes lanes with
//laneBytes bytes per lane.
func NewLaneView(region []byte, lane, lanes, laneBytes int) LaneView {
	return LaneView{region: region, lane: lane, lanes: lanes, laneBytes: laneBytes}
}

//Len returns the logical length of the lane's stream.
func (v LaneView) Len() int {
	return v.laneBytes
}

//ReadAt copies len(dst) bytes starting at logical offset off into dst,
//crossing chunk boundaries as needed.
func (v LaneView) ReadAt(off int, dst []byte) {
	for len(dst) > 0 {
		c := off / ChunkSize
		within := off % ChunkSize
		src := ChunkOffset(c, v.lane, v.lanes) + within
		n := copy(dst, v.region[src:src+ChunkSize-within])
		dst = dst[n:]
		off += n
	}
}
