// Package emu provides functional RV64IM emulation.
package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/rv64im/rv64im/insts"
)

// StepResult reports the outcome of executing a single instruction.
type StepResult struct {
	// Exited is true once the program has halted, whether by exit
	// syscall, the JALR-to-zero heuristic, or a sentinel load address.
	Exited bool

	// ExitCode is meaningful only when Exited is true.
	ExitCode int64

	// Err is set on a fatal host-level condition: a decode failure, an
	// out-of-range memory access, or the instruction budget running out.
	Err error
}

// defaultMemorySize is used when no WithMemorySize option is given. A
// full flat 2^32 address space is architecturally permitted but
// wasteful for the small freestanding programs this emulator targets;
// 64 MiB matches the configuration package's built-in default.
const defaultMemorySize = 64 << 20 // 64 MiB

// Sentinel load addresses, per the reserved debug affordance: loading
// from address 0 halts with a fault exit code, loading from address 1
// halts cleanly. Neither corresponds to real memory-mapped behavior.
const (
	sentinelFaultAddr = 0
	sentinelCleanAddr = 1
	faultExitCode     = 69
)

// CacheObserver is notified of every load/store effective address the
// executor computes. It never influences architectural behavior — the
// emulator calls it purely for its side effects and ignores whatever
// bookkeeping it does internally, consistent with the "read-only
// observer borrowing between driver steps" contract.
type CacheObserver interface {
	ObserveLoad(addr uint64, size int)
	ObserveStore(addr uint64, size int)
}

// Emulator fetches, decodes and executes RV64IM instructions against a
// flat guest memory image, driving the {Running, Halted} state machine
// described by the trap and control-transfer rules.
type Emulator struct {
	regs    *RegFile
	mem     *Memory
	decoder *insts.Decoder

	alu    *ALU
	lsu    *LoadStoreUnit
	branch *BranchUnit

	syscallHandler SyscallHandler
	cacheObserver  CacheObserver

	stdout io.Writer
	stderr io.Writer

	pc               uint64
	halted           bool
	exitCode         int64
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	memorySize     uint64
	haltOnJALRZero bool
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stdout = w }
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stderr = w }
}

// WithSyscallHandler sets a custom syscall handler in place of the
// built-in DefaultSyscallHandler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) { e.syscallHandler = handler }
}

// WithMemorySize overrides the default 64 MiB flat guest memory size.
func WithMemorySize(size uint64) EmulatorOption {
	return func(e *Emulator) { e.memorySize = size }
}

// WithMaxInstructions caps the number of instructions Run/Step will
// execute before reporting an error. A value of 0 (the default) means
// no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) { e.maxInstructions = max }
}

// WithEntryPoint sets the initial program counter. LoadProgram also
// sets this; the option is useful when memory is populated some other
// way (e.g. an ELF loader placing several segments).
func WithEntryPoint(pc uint64) EmulatorOption {
	return func(e *Emulator) { e.pc = pc }
}

// WithCacheObserver attaches a read-only cache-latency observer. When
// set, every load/store effective address is reported to it after the
// access completes; it has no way to influence execution.
func WithCacheObserver(observer CacheObserver) EmulatorOption {
	return func(e *Emulator) { e.cacheObserver = observer }
}

// WithHaltOnReturn gates the "JALR target of 0 with A7 unchanged halts
// the program" heuristic. It is a fragile convenience for freestanding
// main-only guests rather than architectural behavior, so it defaults
// to enabled (matching the source this behavior is modeled on) but can
// be disabled for guests that legitimately branch through address 0.
func WithHaltOnReturn(enabled bool) EmulatorOption {
	return func(e *Emulator) { e.haltOnJALRZero = enabled }
}

// NewEmulator creates a new RV64IM emulator with zeroed registers and
// freshly allocated memory.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		decoder:        insts.NewDecoder(),
		stdout:         os.Stdout,
		stderr:         os.Stderr,
		memorySize:     defaultMemorySize,
		haltOnJALRZero: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.regs = &RegFile{}
	e.mem = NewMemory(e.memorySize)
	e.alu = NewALU(e.regs)
	e.lsu = NewLoadStoreUnit(e.regs, e.mem)
	e.branch = NewBranchUnit(e.regs)

	if e.syscallHandler == nil {
		e.syscallHandler = NewDefaultSyscallHandler(e.regs, e.mem, e.stdout, e.stderr)
	}

	return e
}

// SetCacheObserver attaches or replaces the cache observer after
// construction, which LoadProgram-based callers need since the
// observer's backing store is usually the emulator's own memory and so
// can only be built once the Emulator (and its Memory) already exists.
func (e *Emulator) SetCacheObserver(observer CacheObserver) { e.cacheObserver = observer }

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile { return e.regs }

// Memory returns the emulator's guest memory.
func (e *Emulator) Memory() *Memory { return e.mem }

// PC returns the current program counter.
func (e *Emulator) PC() uint64 { return e.pc }

// SetPC overrides the program counter directly.
func (e *Emulator) SetPC(pc uint64) { e.pc = pc }

// InstructionCount returns the number of instructions executed so far.
func (e *Emulator) InstructionCount() uint64 { return e.instructionCount }

// Halted reports whether the driver has reached the Halted state.
func (e *Emulator) Halted() bool { return e.halted }

// ExitCode is meaningful once Halted reports true.
func (e *Emulator) ExitCode() int64 { return e.exitCode }

// LoadProgram copies program into guest memory starting at addr and
// sets the program counter to entry.
func (e *Emulator) LoadProgram(addr uint64, program []byte, entry uint64) {
	e.mem.LoadBytes(addr, program)
	e.pc = entry
}

// Reset restores the emulator to its initial state, reallocating
// registers and memory but keeping the configured options. The program
// counter returns to 0; an address given with WithEntryPoint is not
// restored.
func (e *Emulator) Reset() {
	e.regs = &RegFile{}
	e.mem = NewMemory(e.memorySize)
	e.alu = NewALU(e.regs)
	e.lsu = NewLoadStoreUnit(e.regs, e.mem)
	e.branch = NewBranchUnit(e.regs)
	if _, ok := e.syscallHandler.(*DefaultSyscallHandler); ok {
		e.syscallHandler = NewDefaultSyscallHandler(e.regs, e.mem, e.stdout, e.stderr)
	}

	e.pc = 0
	e.halted = false
	e.exitCode = 0
	e.instructionCount = 0
}

// Step fetches, decodes and executes a single instruction.
//
// An out-of-range memory access anywhere during fetch or execution
// panics with a *MemoryFault; Step recovers it here and reports it as
// a fatal StepResult.Err, so the fault never escapes as a bare Go
// panic, matching the "fatal host abort" contract for out-of-range
// accesses.
func (e *Emulator) Step() (result StepResult) {
	if e.halted {
		return StepResult{Exited: true, ExitCode: e.exitCode}
	}
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: fmt.Errorf("instruction budget of %d exhausted", e.maxInstructions)}
	}

	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*MemoryFault)
			if !ok {
				panic(r)
			}
			result = StepResult{Err: fault}
		}
	}()

	word := e.mem.Read32(e.pc)

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return StepResult{Err: err}
	}

	result = e.execute(inst)
	e.instructionCount++
	return result
}

// Run steps until the program halts or a fatal error occurs, printing
// the error to stderr in the latter case. It returns the guest exit
// code, or -1 on a fatal error.
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Exited {
			return result.ExitCode
		}
		if result.Err != nil {
			_, _ = fmt.Fprintf(e.stderr, "rv64im: %v\n", result.Err)
			return -1
		}
	}
}

// execute dispatches a decoded instruction to the appropriate execution
// unit and advances the program counter. Every case except the
// control-transfer ones falls through to the unconditional PC+4 at the
// bottom, per the one PC-advance rule every other instruction shares.
func (e *Emulator) execute(inst insts.Instruction) StepResult {
	pc := e.pc
	nextPC := pc + 4

	switch inst.Op {
	case insts.OpLUI:
		e.alu.LUI(inst.Rd, inst.Imm)
	case insts.OpAUIPC:
		e.alu.AUIPC(inst.Rd, pc, inst.Imm)

	case insts.OpADDI:
		e.alu.ADDI(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpSLTI:
		e.alu.SLTI(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpSLTIU:
		e.alu.SLTIU(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpXORI:
		e.alu.XORI(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpORI:
		e.alu.ORI(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpANDI:
		e.alu.ANDI(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpSLLI:
		e.alu.SLLI(inst.Rd, inst.Rs1, inst.Shamt)
	case insts.OpSRLI:
		e.alu.SRLI(inst.Rd, inst.Rs1, inst.Shamt)
	case insts.OpSRAI:
		e.alu.SRAI(inst.Rd, inst.Rs1, inst.Shamt)

	case insts.OpADD:
		e.alu.ADD(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSUB:
		e.alu.SUB(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSLL:
		e.alu.SLL(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSLT:
		e.alu.SLT(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSLTU:
		e.alu.SLTU(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpXOR:
		e.alu.XOR(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSRL:
		e.alu.SRL(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSRA:
		e.alu.SRA(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpOR:
		e.alu.OR(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpAND:
		e.alu.AND(inst.Rd, inst.Rs1, inst.Rs2)

	case insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLD, insts.OpLBU, insts.OpLHU, insts.OpLWU:
		if res, halted := e.sentinelHalt(inst); halted {
			return res
		}
		addr := e.regs.Read(inst.Rs1) + uint64(inst.Imm)
		e.execLoad(inst)
		if e.cacheObserver != nil {
			e.cacheObserver.ObserveLoad(addr, loadSize(inst.Op))
		}

	case insts.OpSB:
		e.lsu.SB(inst.Rs1, inst.Rs2, inst.Imm)
		e.observeStore(inst, 1)
	case insts.OpSH:
		e.lsu.SH(inst.Rs1, inst.Rs2, inst.Imm)
		e.observeStore(inst, 2)
	case insts.OpSW:
		e.lsu.SW(inst.Rs1, inst.Rs2, inst.Imm)
		e.observeStore(inst, 4)
	case insts.OpSD:
		e.lsu.SD(inst.Rs1, inst.Rs2, inst.Imm)
		e.observeStore(inst, 8)

	case insts.OpJAL:
		e.regs.Write(inst.Rd, nextPC)
		nextPC = pc + uint64(inst.Imm)

	case insts.OpJALR:
		a7Before := e.regs.Read(insts.A7)
		target := (e.regs.Read(inst.Rs1) + uint64(inst.Imm)) &^ uint64(1)
		e.regs.Write(inst.Rd, nextPC)
		nextPC = target
		if e.haltOnJALRZero && target == 0 && e.regs.Read(insts.A7) == a7Before {
			e.pc = nextPC
			return e.haltWith(int64(e.regs.Read(insts.A0)))
		}

	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		if e.branch.Taken(inst.Op, inst.Rs1, inst.Rs2) {
			nextPC = pc + uint64(inst.Imm)
		}

	case insts.OpECALL:
		res := e.syscallHandler.Handle()
		if res.Exited {
			e.pc = nextPC
			return e.haltWith(res.ExitCode)
		}

	case insts.OpADDIW:
		e.alu.ADDIW(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpSLLIW:
		e.alu.SLLIW(inst.Rd, inst.Rs1, inst.Shamt)
	case insts.OpSRLIW:
		e.alu.SRLIW(inst.Rd, inst.Rs1, inst.Shamt)
	case insts.OpSRAIW:
		e.alu.SRAIW(inst.Rd, inst.Rs1, inst.Shamt)
	case insts.OpADDW:
		e.alu.ADDW(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSUBW:
		e.alu.SUBW(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSLLW:
		e.alu.SLLW(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSRLW:
		e.alu.SRLW(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpSRAW:
		e.alu.SRAW(inst.Rd, inst.Rs1, inst.Rs2)

	case insts.OpMUL:
		e.alu.MUL(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpDIV:
		e.alu.DIV(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpREM:
		e.alu.REM(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpMULW:
		e.alu.MULW(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpDIVW:
		e.alu.DIVW(inst.Rd, inst.Rs1, inst.Rs2)
	case insts.OpREMW:
		e.alu.REMW(inst.Rd, inst.Rs1, inst.Rs2)

	default:
		return StepResult{Err: fmt.Errorf("unhandled operation %s at pc=0x%x", inst.Op, pc)}
	}

	e.pc = nextPC
	return StepResult{}
}

// execLoad performs the load family's seven mnemonics once the caller
// has already ruled out a sentinel effective address.
func (e *Emulator) execLoad(inst insts.Instruction) {
	switch inst.Op {
	case insts.OpLB:
		e.lsu.LB(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpLH:
		e.lsu.LH(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpLW:
		e.lsu.LW(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpLD:
		e.lsu.LD(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpLBU:
		e.lsu.LBU(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpLHU:
		e.lsu.LHU(inst.Rd, inst.Rs1, inst.Imm)
	case insts.OpLWU:
		e.lsu.LWU(inst.Rd, inst.Rs1, inst.Imm)
	}
}

// loadSize returns the access width in bytes for a load mnemonic.
func loadSize(op insts.Op) int {
	switch op {
	case insts.OpLB, insts.OpLBU:
		return 1
	case insts.OpLH, insts.OpLHU:
		return 2
	case insts.OpLW, insts.OpLWU:
		return 4
	case insts.OpLD:
		return 8
	default:
		return 8
	}
}

// observeStore reports a store's effective address to the attached
// cache observer, if any.
func (e *Emulator) observeStore(inst insts.Instruction, size int) {
	if e.cacheObserver == nil {
		return
	}
	addr := e.regs.Read(inst.Rs1) + uint64(inst.Imm)
	e.cacheObserver.ObserveStore(addr, size)
}

// sentinelHalt reports whether a load's effective address is one of
// the two reserved debug sentinels, returning the StepResult to use in
// place of performing the load.
func (e *Emulator) sentinelHalt(inst insts.Instruction) (StepResult, bool) {
	addr := e.regs.Read(inst.Rs1) + uint64(inst.Imm)
	switch addr {
	case sentinelFaultAddr:
		return e.haltWith(faultExitCode), true
	case sentinelCleanAddr:
		return e.haltWith(0), true
	default:
		return StepResult{}, false
	}
}

// haltWith transitions the driver to Halted with the given exit code.
func (e *Emulator) haltWith(code int64) StepResult {
	e.halted = true
	e.exitCode = code
	return StepResult{Exited: true, ExitCode: code}
}
