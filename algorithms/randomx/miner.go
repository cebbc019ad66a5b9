package randomx

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/zdhzdh102417/rxminer/batch"
	"github.com/zdhzdh102417/rxminer/device"
	"github.com/zdhzdh102417/rxminer/metrics"
	"github.com/zdhzdh102417/rxminer/mining"
	"github.com/zdhzdh102417/rxminer/work"
)

// Miner actually mines :-)
//
//It owns the batch pipeline for one device: size the batch once, allocate the
//buffers once, then per batch run the fixed protocol
//
//	initial hash -> scratchpad fill -> 8 x (program fill, register init,
//	VM, [last round: scratchpad compress], register fold) -> target scan
//
//Every kernel launch is a full-batch barrier and any failure aborts the run;
//a memory-hard pipeline cannot resume from partial state.
type Miner struct {
	Device          *device.Device
	MinerID         int
	HashRateReports chan *mining.HashRateReport
	Source          work.Source
	VM              VM
	Log             zerolog.Logger
	//BatchLimit stops the search after that many batches; 0 means mine until
	//the process is stopped.
	BatchLimit int
	//Metrics is optional; when set, throughput and match counters are kept.
	Metrics *metrics.Metrics

	//nonceBase is the advancing window into the 32 bit nonce space. It moves
	//by the batch size per batch and wraps with the field.
	nonceBase uint32
}

//Mine starts the mining loop in a separate routine and returns. When the loop
//finishes, the report channel is closed so the consuming side unblocks.
func (m *Miner) Mine() {
	go func() {
		if err := m.Run(); err != nil {
			m.Log.Fatal().Err(err).Int("minerID", m.MinerID).Msg("mining run aborted")
		}
		if m.HashRateReports != nil {
			close(m.HashRateReports)
		}
	}()
}

//Run executes the search loop until BatchLimit batches are done or a stage
//fails. All device buffers are released on every exit path.
func (m *Miner) Run() error {
	if m.VM == nil {
		m.VM = NoopVM{}
	}
	m.Source.Start()

	free, total := m.Device.MemInfo()
	lanes, err := batch.PlanBatch(free, total, DatasetReservation, ScratchpadSize, MemoryHeadroom, device.GroupWidth)
	if err != nil {
		return err
	}
	m.Log.Info().
		Int("minerID", m.MinerID).
		Int("lanes", lanes).
		Uint64("freeMem", free).
		Str("device", m.Device.Info().Name).
		Msg("planned batch")

	bufs, err := allocBatchBuffers(m.Device, lanes)
	if err != nil {
		return err
	}
	defer bufs.release()

	sampleStart := time.Now()
	sampleLanes := 0
	for batchNo := 0; m.BatchLimit == 0 || batchNo < m.BatchLimit; batchNo++ {
		template, target, err := m.Source.TemplateForWork()
		if err != nil {
			return errors.WithMessage(err, "fetching work")
		}
		nonceBase := m.nonceBase
		m.nonceBase += uint32(lanes)

		matches, err := m.searchBatch(bufs, template, nonceBase, target)
		if err != nil {
			return err
		}
		for _, match := range matches {
			if m.Metrics != nil {
				m.Metrics.MatchesFound.Inc()
			}
			if err := m.Source.SubmitMatch(match); err != nil {
				m.Log.Error().Err(err).Uint32("nonce", match.Nonce).Msg("submitting match")
			}
		}

		sampleLanes += lanes
		if (batchNo+1)%HashRateSampleBatches == 0 {
			rate := float64(sampleLanes) / time.Since(sampleStart).Seconds()
			if m.HashRateReports != nil {
				m.HashRateReports <- &mining.HashRateReport{MinerID: m.MinerID, HashRate: rate}
			}
			if m.Metrics != nil {
				m.Metrics.HashRate.Set(rate)
				m.Metrics.LanesFinalized.Add(float64(sampleLanes))
				m.Metrics.Batches.Add(HashRateSampleBatches)
			}
			sampleStart = time.Now()
			sampleLanes = 0
		}
	}
	return nil
}

//searchBatch runs the full protocol for one nonce window and returns the
//lanes whose final digest got below the target.
func (m *Miner) searchBatch(bufs *batchBuffers, template []byte, nonceBase uint32, target uint64) ([]work.Match, error) {
	if err := m.runProtocol(bufs, template, nonceBase); err != nil {
		return nil, err
	}
	return scanMatches(bufs.finalDigest.Bytes(), bufs.lanes, nonceBase, target), nil
}

//runProtocol drives the state machine of one batch. Each launch returns only
//after every lane completed, so the next stage always sees the previous
//stage's writes.
func (m *Miner) runProtocol(bufs *batchBuffers, template []byte, nonceBase uint32) error {
	dev := m.Device
	lanes := bufs.lanes

	if err := launchInitialHash(dev, lanes, template, nonceBase, bufs.hashState.Bytes()); err != nil {
		return err
	}
	if err := launchFill(dev, lanes, bufs.hashState.Bytes(), bufs.scratchpad.Bytes(), ScratchpadSize, true); err != nil {
		return err
	}
	registers := bufs.registers.Bytes()
	if err := dev.Launch("zeroRegisters", lanes, func(lane int) {
		regs := registers[lane*RegisterFileSize : (lane+1)*RegisterFileSize]
		for i := range regs {
			regs[i] = 0
		}
	}); err != nil {
		return err
	}

	for round := 0; round < ProgramRounds; round++ {
		lastRound := round == ProgramRounds-1

		if err := launchFill(dev, lanes, bufs.hashState.Bytes(), bufs.program.Bytes(), ProgramSize, false); err != nil {
			return err
		}
		program := bufs.program.Bytes()
		if err := dev.Launch("initRegisters", lanes, func(lane int) {
			initRegisters(
				batch.NewLaneView(program, lane, lanes, ProgramSize),
				registers[lane*RegisterFileSize:(lane+1)*RegisterFileSize])
		}); err != nil {
			return err
		}
		if err := m.launchVM(bufs); err != nil {
			return err
		}
		if lastRound {
			if err := launchCompress(dev, lanes, bufs.scratchpad.Bytes(), ScratchpadSize,
				registers, CompressOutputOffset, CompressOutputSize); err != nil {
				return err
			}
			if err := launchFoldRegisters(dev, lanes, registers, bufs.finalDigest.Bytes(), FinalDigestSize); err != nil {
				return err
			}
		} else {
			if err := launchFoldRegisters(dev, lanes, registers, bufs.hashState.Bytes(), HashStateSize); err != nil {
				return err
			}
		}
	}
	return nil
}

//launchVM runs the interpreter stage across the batch. A VM error counts as
//an execution failure of the launch: the batch is discarded.
func (m *Miner) launchVM(bufs *batchBuffers) error {
	var (
		once  sync.Once
		vmErr error
	)
	registers := bufs.registers.Bytes()
	scratchpad := bufs.scratchpad.Bytes()
	lanes := bufs.lanes
	err := m.Device.Launch("vmExecute", lanes, func(lane int) {
		regs := registers[lane*RegisterFileSize : (lane+1)*RegisterFileSize]
		view := batch.NewLaneView(scratchpad, lane, lanes, ScratchpadSize)
		if execErr := m.VM.Execute(regs, view); execErr != nil {
			once.Do(func() { vmErr = execErr })
		}
	})
	if err != nil {
		return err
	}
	if vmErr != nil {
		return errors.Wrapf(device.ErrExecutionFailure, "vmExecute: %v", vmErr)
	}
	return nil
}

//scanMatches compares the top 64 bits of every final digest to the target.
func scanMatches(digests []byte, lanes int, nonceBase uint32, target uint64) []work.Match {
	var matches []work.Match
	for lane := 0; lane < lanes; lane++ {
		d := digests[lane*FinalDigestSize : (lane+1)*FinalDigestSize]
		top64 := binary.LittleEndian.Uint64(d[FinalDigestSize-8:])
		if top64 <= target {
			matches = append(matches, work.Match{
				Nonce:       nonceBase + uint32(lane),
				DigestTop64: top64,
			})
		}
	}
	return matches
}
