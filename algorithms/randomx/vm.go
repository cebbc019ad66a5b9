package randomx

import (
	"encoding/binary"

	"github.com/zdhzdh102417/rxminer/batch"
)

//VM is the program interpreter stage of a round. It is a separate subsystem;
//the orchestrator only relies on its contract: Execute reads the lane's
//registers and scratchpad, writes only the registers, is deterministic, and
//has no side effects outside the register file.
type VM interface {
	Execute(registers []byte, scratchpad batch.LaneView) error
}

//NoopVM leaves the registers untouched. It stands in for the interpreter so
//the rest of the pipeline can run and be verified end to end.
type NoopVM struct{}

//Execute implements VM.
func (NoopVM) Execute(registers []byte, scratchpad batch.LaneView) error {
	return nil
}

//Exponent handling for the floating point register groups: the mantissa is
//kept, the exponent is pinned so every value lands in [1,2).
const (
	mantissaMask = 0x000fffffffffffff
	exponentOne  = 0x3ff0000000000000
)

//initRegisters deterministically remaps the head of a freshly filled program
//buffer into the register file: the integer registers are loaded verbatim,
//the a-group entropy registers get pinned exponents, and the f and e working
//groups start the round cleared.
func initRegisters(program batch.LaneView, registers []byte) {
	var head [128]byte
	program.ReadAt(0, head[:])
	//r0..r7
	copy(registers[0:64], head[0:64])
	//f and e groups
	for i := 64; i < 192; i++ {
		registers[i] = 0
	}
	//a0..a7 with pinned exponents
	for i := 0; i < 8; i++ {
		v := binary.LittleEndian.Uint64(head[64+i*8 : 72+i*8])
		v = v&mantissaMask | exponentOne
		binary.LittleEndian.PutUint64(registers[192+i*8:200+i*8], v)
	}
}
