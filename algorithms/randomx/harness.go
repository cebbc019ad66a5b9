package randomx

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/zdhzdh102417/rxminer/batch"
	"github.com/zdhzdh102417/rxminer/device"
)

//ErrVerificationMismatch means a parallel kernel diverged from the sequential
//reference. It fails the test case that found it; independent cases still run.
var ErrVerificationMismatch = errors.New("verification mismatch")

//Harness proves bit-exact equivalence of every parallel kernel against the
//sequential reference, on a small sub-batch, and benchmarks the kernels at
//full batch size.
type Harness struct {
	Device *device.Device
	//Lanes is the verification sub-batch size; defaults to 48. Any positive
	//count works here: the kernels assign one whole cooperating group per
	//lane, only the planner rounds to the group width.
	Lanes int
	Log   zerolog.Logger
}

//CaseResult is the outcome of one verification case.
type CaseResult struct {
	Name string
	Err  error
}

//Run executes every verification case and reports pass/fail per case. A
//mismatch does not stop the remaining cases.
func (h *Harness) Run() []CaseResult {
	lanes := h.Lanes
	if lanes == 0 {
		lanes = 48
	}
	cases := []struct {
		name string
		fn   func(lanes int) error
	}{
		{"initialHash", h.verifyInitialHash},
		{"fillProgram", func(l int) error { return h.verifyFill(l, ProgramSize, false) }},
		{"fillScratchpad", func(l int) error { return h.verifyFill(l, ScratchpadSize, true) }},
		{"fillBatchSizeIndependence", h.verifyFillBatchIndependence},
		{"compressScratchpad", h.verifyCompress},
		{"foldRegisterWidths", h.verifyFoldWidths},
		{"planBatch", h.verifyPlanner},
		{"protocolDeterminism", h.verifyProtocolDeterminism},
	}
	results := make([]CaseResult, 0, len(cases))
	for _, c := range cases {
		err := c.fn(lanes)
		if err != nil {
			h.Log.Error().Err(err).Str("case", c.name).Msg("FAIL")
		} else {
			h.Log.Info().Str("case", c.name).Msg("pass")
		}
		results = append(results, CaseResult{Name: c.name, Err: err})
	}
	return results
}

//harnessTemplate builds the shared all-zero template with the lane
//differentiator field set, so per-lane inputs differ without touching the
//nonce window.
func harnessTemplate(laneField uint32) []byte {
	t := make([]byte, TemplateSize)
	t[LaneFieldOffset] = byte(laneField)
	t[LaneFieldOffset+1] = byte(laneField >> 8)
	t[LaneFieldOffset+2] = byte(laneField >> 16)
	t[LaneFieldOffset+3] = byte(laneField >> 24)
	return t
}

//harnessSeeds derives one 64 byte fill seed per lane, the same way the
//protocol does: the initial hash of the template at that lane's nonce.
func harnessSeeds(lanes int) []byte {
	template := harnessTemplate(0)
	seeds := make([]byte, lanes*HashStateSize)
	for lane := 0; lane < lanes; lane++ {
		d := referenceInitialHash(template, uint32(lane))
		copy(seeds[lane*HashStateSize:(lane+1)*HashStateSize], d[:])
	}
	return seeds
}

func (h *Harness) verifyInitialHash(lanes int) error {
	const nonceBase = 7077
	template := harnessTemplate(0)
	hashStates := make([]byte, lanes*HashStateSize)
	if err := launchInitialHash(h.Device, lanes, template, nonceBase, hashStates); err != nil {
		return err
	}
	for lane := 0; lane < lanes; lane++ {
		want := referenceInitialHash(template, nonceBase+uint32(lane))
		got := hashStates[lane*HashStateSize : (lane+1)*HashStateSize]
		if !bytes.Equal(got, want[:]) {
			return errors.Wrapf(ErrVerificationMismatch, "initialHash lane %d", lane)
		}
	}
	return nil
}

func (h *Harness) verifyFill(lanes, laneBytes int, scratchpadFill bool) error {
	seeds := harnessSeeds(lanes)
	region := make([]byte, lanes*laneBytes)
	if err := launchFill(h.Device, lanes, seeds, region, laneBytes, scratchpadFill); err != nil {
		return err
	}
	want := make([]byte, laneBytes)
	for lane := 0; lane < lanes; lane++ {
		referenceFill(seeds[lane*HashStateSize:(lane+1)*HashStateSize], want)
		got := batch.Deinterleave(region, lane, lanes, laneBytes)
		if !bytes.Equal(got, want) {
			return errors.Wrapf(ErrVerificationMismatch, "fill lane %d after de-interleave (%d bytes)", lane, laneBytes)
		}
	}
	return nil
}

//verifyFillBatchIndependence re-runs the fill of one lane on a 1-lane batch
//and expects the identical byte stream: fill output may not depend on the
//batch size or the lane position.
func (h *Harness) verifyFillBatchIndependence(lanes int) error {
	seeds := harnessSeeds(lanes)
	region := make([]byte, lanes*ScratchpadSize)
	if err := launchFill(h.Device, lanes, seeds, region, ScratchpadSize, true); err != nil {
		return err
	}
	lane0 := batch.Deinterleave(region, 0, lanes, ScratchpadSize)

	single := make([]byte, ScratchpadSize)
	if err := launchFill(h.Device, 1, seeds[:HashStateSize], single, ScratchpadSize, true); err != nil {
		return err
	}
	//interleaving over a 1-lane batch is the identity
	if !bytes.Equal(lane0, single) {
		return errors.Wrap(ErrVerificationMismatch, "fill of lane 0 differs between 1-lane and full batch")
	}
	return nil
}

func (h *Harness) verifyCompress(lanes int) error {
	seeds := harnessSeeds(lanes)
	region := make([]byte, lanes*ScratchpadSize)
	contiguous := make([][]byte, lanes)
	for lane := 0; lane < lanes; lane++ {
		contiguous[lane] = make([]byte, ScratchpadSize)
		referenceFill(seeds[lane*HashStateSize:(lane+1)*HashStateSize], contiguous[lane])
		batch.Interleave(region, lane, lanes, contiguous[lane])
	}

	//prefill the register files so writes outside the output window show up
	registers := make([]byte, lanes*RegisterFileSize)
	for i := range registers {
		registers[i] = 0xa5
	}
	if err := launchCompress(h.Device, lanes, region, ScratchpadSize, registers,
		CompressOutputOffset, CompressOutputSize); err != nil {
		return err
	}
	for lane := 0; lane < lanes; lane++ {
		regs := registers[lane*RegisterFileSize : (lane+1)*RegisterFileSize]
		want := referenceCompress(contiguous[lane])
		if !bytes.Equal(regs[CompressOutputOffset:CompressOutputOffset+CompressOutputSize], want[:CompressOutputSize]) {
			return errors.Wrapf(ErrVerificationMismatch, "compress output lane %d", lane)
		}
		for i := 0; i < CompressOutputOffset; i++ {
			if regs[i] != 0xa5 {
				return errors.Wrapf(ErrVerificationMismatch, "compress lane %d wrote outside its output window (offset %d)", lane, i)
			}
		}
	}
	return nil
}

func (h *Harness) verifyFoldWidths(lanes int) error {
	rng := rand.New(rand.NewSource(42))
	registers := make([]byte, lanes*RegisterFileSize)
	rng.Read(registers)

	wide := make([]byte, lanes*64)
	narrow := make([]byte, lanes*32)
	if err := launchFoldRegisters(h.Device, lanes, registers, wide, 64); err != nil {
		return err
	}
	if err := launchFoldRegisters(h.Device, lanes, registers, narrow, 32); err != nil {
		return err
	}
	for lane := 0; lane < lanes; lane++ {
		regs := registers[lane*RegisterFileSize : (lane+1)*RegisterFileSize]
		if !bytes.Equal(wide[lane*64:(lane+1)*64], referenceFoldRegisters(regs, 64)) {
			return errors.Wrapf(ErrVerificationMismatch, "foldRegisters width 64 lane %d", lane)
		}
		if !bytes.Equal(narrow[lane*32:(lane+1)*32], referenceFoldRegisters(regs, 32)) {
			return errors.Wrapf(ErrVerificationMismatch, "foldRegisters width 32 lane %d", lane)
		}
	}
	return nil
}

func (h *Harness) verifyPlanner(lanes int) error {
	const (
		free    = 8 << 30
		total   = 8 << 30
		scratch = ScratchpadSize
	)
	first, err := batch.PlanBatch(free, total, DatasetReservation, scratch, MemoryHeadroom, device.GroupWidth)
	if err != nil {
		return err
	}
	second, err := batch.PlanBatch(free, total, DatasetReservation, scratch, MemoryHeadroom, device.GroupWidth)
	if err != nil {
		return err
	}
	if first != second {
		return errors.Wrapf(ErrVerificationMismatch, "planBatch not pure: %d then %d", first, second)
	}
	if first <= 0 || first%device.GroupWidth != 0 {
		return errors.Wrapf(ErrVerificationMismatch, "planBatch result %d not a positive multiple of %d", first, device.GroupWidth)
	}
	if _, err := batch.PlanBatch(DatasetReservation, DatasetReservation, DatasetReservation, scratch, MemoryHeadroom, device.GroupWidth); !errors.Is(err, batch.ErrInsufficientMemory) {
		return errors.Wrap(ErrVerificationMismatch, "planBatch accepted a budget below the reservation")
	}
	return nil
}

//verifyProtocolDeterminism runs the full fixed-round protocol twice on the
//same nonce window and expects identical final digests.
func (h *Harness) verifyProtocolDeterminism(lanes int) error {
	const nonceBase = 90125
	template := harnessTemplate(1)

	run := func() ([]byte, error) {
		bufs, err := allocBatchBuffers(h.Device, lanes)
		if err != nil {
			return nil, err
		}
		defer bufs.release()
		m := &Miner{Device: h.Device, VM: NoopVM{}, Log: h.Log}
		if err := m.runProtocol(bufs, template, nonceBase); err != nil {
			return nil, err
		}
		return append([]byte(nil), bufs.finalDigest.Bytes()...), nil
	}

	first, err := run()
	if err != nil {
		return err
	}
	second, err := run()
	if err != nil {
		return err
	}
	if !bytes.Equal(first, second) {
		return errors.Wrap(ErrVerificationMismatch, "final digests differ between two identical runs")
	}
	return nil
}

//BenchResult is one steady-state throughput measurement.
type BenchResult struct {
	Name        string
	Lanes       int
	LanesPerSec float64
	MBPerSec    float64
}

//Benchmark runs the kernels at full batch size for the given number of
//iterations each, with no correctness checking, and reports throughput.
func (h *Harness) Benchmark(iterations int) ([]BenchResult, error) {
	free, total := h.Device.MemInfo()
	lanes, err := batch.PlanBatch(free, total, DatasetReservation, ScratchpadSize, MemoryHeadroom, device.GroupWidth)
	if err != nil {
		return nil, err
	}
	bufs, err := allocBatchBuffers(h.Device, lanes)
	if err != nil {
		return nil, err
	}
	defer bufs.release()

	template := harnessTemplate(2)
	m := &Miner{Device: h.Device, VM: NoopVM{}, Log: h.Log}

	benches := []struct {
		name  string
		bytes uint64
		fn    func() error
	}{
		{"initialHash", 0, func() error {
			return launchInitialHash(h.Device, lanes, template, 0, bufs.hashState.Bytes())
		}},
		{"fillScratchpad", uint64(lanes) * ScratchpadSize, func() error {
			return launchFill(h.Device, lanes, bufs.hashState.Bytes(), bufs.scratchpad.Bytes(), ScratchpadSize, true)
		}},
		{"compressScratchpad", uint64(lanes) * ScratchpadSize, func() error {
			return launchCompress(h.Device, lanes, bufs.scratchpad.Bytes(), ScratchpadSize,
				bufs.registers.Bytes(), CompressOutputOffset, CompressOutputSize)
		}},
		{"fullProtocol", 0, func() error {
			return m.runProtocol(bufs, template, 0)
		}},
	}

	results := make([]BenchResult, 0, len(benches))
	for _, b := range benches {
		//one warmup launch before timing
		if err := b.fn(); err != nil {
			return nil, err
		}
		start := time.Now()
		for i := 0; i < iterations; i++ {
			if err := b.fn(); err != nil {
				return nil, err
			}
		}
		elapsed := time.Since(start).Seconds()
		r := BenchResult{
			Name:        b.name,
			Lanes:       lanes,
			LanesPerSec: float64(lanes*iterations) / elapsed,
		}
		if b.bytes > 0 {
			r.MBPerSec = float64(b.bytes*uint64(iterations)) / elapsed / (1 << 20)
		}
		results = append(results, r)
		h.Log.Info().Str("bench", b.name).
			Str("throughput", fmt.Sprintf("%.1f lanes/s", r.LanesPerSec)).
			Str("bandwidth", fmt.Sprintf("%.1f MB/s", r.MBPerSec)).
			Int("lanes", lanes).
			Msg("benchmark")
	}
	return results, nil
}
