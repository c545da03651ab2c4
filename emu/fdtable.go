package emu

import (
	"os"
	"sync"
)

// FileDescriptor is one entry in a guest's open-file table. Descriptors
// 0-2 are the standard streams and never carry a HostFile; everything
// openat allocates above them does.
type FileDescriptor struct {
	HostFile *os.File
	Path     string
	Flags    int
	Open     bool
}

// FDTable maps guest file descriptor numbers to host files. It backs the
// read/write/openat/close syscalls: the guest only ever sees small
// integers, never host paths or *os.File values directly.
type FDTable struct {
	mu     sync.Mutex
	fds    map[uint64]*FileDescriptor
	nextFD uint64
}

// NewFDTable creates a table with stdin/stdout/stderr pre-opened at 0/1/2.
func NewFDTable() *FDTable {
	t := &FDTable{
		fds:    make(map[uint64]*FileDescriptor),
		nextFD: 3,
	}
	t.fds[0] = &FileDescriptor{Path: "stdin", Open: true}
	t.fds[1] = &FileDescriptor{Path: "stdout", Open: true}
	t.fds[2] = &FileDescriptor{Path: "stderr", Open: true}
	return t
}

// Open services openat: it opens path on the host and returns a fresh
// guest-visible descriptor starting at 3.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	fd := t.nextFD
	t.nextFD++
	t.fds[fd] = &FileDescriptor{HostFile: f, Path: path, Flags: flags, Open: true}
	return fd, nil
}

// Close services the close syscall. Closing a standard stream just
// marks it closed; the host stream underneath (if any) is left alone.
func (t *FDTable) Close(fd uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.fds[fd]
	if !ok || !entry.Open {
		return os.ErrInvalid
	}
	if fd <= 2 {
		entry.Open = false
		return nil
	}
	if entry.HostFile != nil {
		if err := entry.HostFile.Close(); err != nil {
			return err
		}
	}
	entry.HostFile = nil
	entry.Open = false
	return nil
}

// Get returns the entry for fd if it is currently open.
func (t *FDTable) Get(fd uint64) (*FileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.fds[fd]
	if !ok || !entry.Open {
		return nil, false
	}
	return entry, true
}

// IsOpen reports whether fd is currently open.
func (t *FDTable) IsOpen(fd uint64) bool {
	_, ok := t.Get(fd)
	return ok
}

// Read reads from an opened-via-openat descriptor. Stdin (fd 0) is
// serviced by the syscall handler directly, since it may not be backed
// by a host file at all (e.g. a test's in-memory reader).
func (t *FDTable) Read(fd uint64, buf []byte) (int, error) {
	entry, ok := t.Get(fd)
	if !ok || fd == 0 || entry.HostFile == nil {
		return 0, os.ErrInvalid
	}
	return entry.HostFile.Read(buf)
}

// Write writes to an opened-via-openat descriptor. Stdout/stderr (fds
// 1/2) are serviced by the syscall handler directly.
func (t *FDTable) Write(fd uint64, buf []byte) (int, error) {
	entry, ok := t.Get(fd)
	if !ok || fd <= 2 || entry.HostFile == nil {
		return 0, os.ErrInvalid
	}
	return entry.HostFile.Write(buf)
}
