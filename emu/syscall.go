package emu

import (
	"io"
	"os"

	"github.com/rv64im/rv64im/insts"
)

// Linux/RISC-V syscall numbers for the subset this emulator implements.
const (
	SyscallOpenat uint64 = 56
	SyscallClose  uint64 = 57
	SyscallRead   uint64 = 63
	SyscallWrite  uint64 = 64
	SyscallExit   uint64 = 93
)

// Linux errno values, negated and returned in A0 on failure.
const (
	EIO    = 5
	EBADF  = 9
	ENOENT = 2
	ENOSYS = 38
)

// SyscallResult reports whether handling a syscall terminated the guest
// program.
type SyscallResult struct {
	Exited   bool
	ExitCode int64
}

// SyscallHandler services ECALL using the RISC-V Linux convention: the
// syscall number is in a7, arguments in a0-a2, and the return value (or
// negated errno) is written back into a0.
type SyscallHandler interface {
	Handle() SyscallResult
}

// DefaultSyscallHandler is the emulator's built-in syscall handler. It
// implements exit, read, write, openat and close against the guest's
// FDTable and memory.
type DefaultSyscallHandler struct {
	regs   *RegFile
	mem    *Memory
	fds    *FDTable
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewDefaultSyscallHandler creates a syscall handler wired to regs and
// mem, writing fd 1/2 traffic to stdout/stderr.
func NewDefaultSyscallHandler(regs *RegFile, mem *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regs:   regs,
		mem:    mem,
		fds:    NewFDTable(),
		stdout: stdout,
		stderr: stderr,
	}
}

// SetStdin configures the reader backing fd 0.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Handle dispatches on the syscall number in a7.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regs.Read(insts.A7) {
	case SyscallExit:
		return h.handleExit()
	case SyscallRead:
		return h.handleRead()
	case SyscallWrite:
		return h.handleWrite()
	case SyscallOpenat:
		return h.handleOpenat()
	case SyscallClose:
		return h.handleClose()
	default:
		return h.handleUnknown()
	}
}

func (h *DefaultSyscallHandler) handleExit() SyscallResult {
	return SyscallResult{Exited: true, ExitCode: int64(h.regs.Read(insts.A0))}
}

func (h *DefaultSyscallHandler) handleRead() SyscallResult {
	fd := h.regs.Read(insts.A0)
	bufPtr := h.regs.Read(insts.A1)
	count := h.regs.Read(insts.A2)

	if fd == 0 {
		if h.stdin == nil {
			h.regs.Write(insts.A0, 0)
			return SyscallResult{}
		}
		buf := make([]byte, count)
		n, err := h.stdin.Read(buf)
		if err != nil && n == 0 {
			h.regs.Write(insts.A0, 0)
			return SyscallResult{}
		}
		for i := 0; i < n; i++ {
			h.mem.Write8(bufPtr+uint64(i), buf[i])
		}
		h.regs.Write(insts.A0, uint64(n))
		return SyscallResult{}
	}

	if !h.fds.IsOpen(fd) {
		h.setError(EBADF)
		return SyscallResult{}
	}
	buf := make([]byte, count)
	n, err := h.fds.Read(fd, buf)
	if err != nil && n == 0 {
		if err == io.EOF {
			h.regs.Write(insts.A0, 0)
			return SyscallResult{}
		}
		h.setError(EIO)
		return SyscallResult{}
	}
	for i := 0; i < n; i++ {
		h.mem.Write8(bufPtr+uint64(i), buf[i])
	}
	h.regs.Write(insts.A0, uint64(n))
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleWrite() SyscallResult {
	fd := h.regs.Read(insts.A0)
	bufPtr := h.regs.Read(insts.A1)
	count := h.regs.Read(insts.A2)

	buf := make([]byte, count)
	for i := uint64(0); i < count; i++ {
		buf[i] = h.mem.Read8(bufPtr + i)
	}

	var writer io.Writer
	switch fd {
	case 1:
		writer = h.stdout
	case 2:
		writer = h.stderr
	default:
		if !h.fds.IsOpen(fd) {
			h.setError(EBADF)
			return SyscallResult{}
		}
		n, err := h.fds.Write(fd, buf)
		if err != nil {
			h.setError(EIO)
			return SyscallResult{}
		}
		h.regs.Write(insts.A0, uint64(n))
		return SyscallResult{}
	}

	n, err := writer.Write(buf)
	if err != nil {
		h.setError(EIO)
		return SyscallResult{}
	}
	h.regs.Write(insts.A0, uint64(n))
	return SyscallResult{}
}

// handleOpenat services a minimal openat(AT_FDCWD, path, flags, mode).
// The dirfd argument in a0 is ignored: every path is resolved relative
// to the host process's current directory, since this emulator has no
// notion of a guest filesystem root.
func (h *DefaultSyscallHandler) handleOpenat() SyscallResult {
	pathPtr := h.regs.Read(insts.A1)
	flags := int(h.regs.Read(insts.A2))
	mode := os.FileMode(h.regs.Read(insts.A3))

	path := h.readCString(pathPtr)
	fd, err := h.fds.Open(path, flags, mode)
	if err != nil {
		h.setError(ENOENT)
		return SyscallResult{}
	}
	h.regs.Write(insts.A0, fd)
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleClose() SyscallResult {
	fd := h.regs.Read(insts.A0)
	if err := h.fds.Close(fd); err != nil {
		h.setError(EBADF)
		return SyscallResult{}
	}
	h.regs.Write(insts.A0, 0)
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleUnknown() SyscallResult {
	h.setError(ENOSYS)
	return SyscallResult{}
}

// setError writes -errno into a0, matching the Linux syscall convention.
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regs.Write(insts.A0, uint64(-int64(errno)))
}

// readCString reads a NUL-terminated string out of guest memory.
func (h *DefaultSyscallHandler) readCString(addr uint64) string {
	var buf []byte
	for {
		b := h.mem.Read8(addr)
		if b == 0 {
			break
		}
		buf = append(buf, b)
		addr++
	}
	return string(buf)
}
