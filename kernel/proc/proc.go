// Package proc provides the per-thread bookkeeping consumed by the system
// call layer: thread identity, exit status, the open file descriptor table
// and the thread's address space.
package proc

import (
	"github.com/david61song/new-pintos/kernel/mm/vmm"
)

const (
	// MaxFileDescriptors is the size of a thread's descriptor table.
	MaxFileDescriptors = 64

	// FirstUserFD is the first descriptor slot handed out to user
	// programs. Slots 0 to 2 are reserved for the standard streams.
	FirstUserFD = 3
)

// File is an open file handle stored in a thread's descriptor table. The
// concrete type is supplied by the filesystem implementation.
type File interface {
	Close()
}

// fdEntry tracks one descriptor table slot.
type fdEntry struct {
	inUse bool
	file  File
}

// Thread describes a kernel thread running a user program.
type Thread struct {
	// Name identifies the thread in diagnostics.
	Name string

	// ExitCode is the status recorded by Exit. Its value is undefined
	// while the thread is running.
	ExitCode int

	// AddrSpace is the address space the thread's user mappings live in.
	AddrSpace *vmm.AddressSpace

	fdTable [MaxFileDescriptors]fdEntry
	exited  bool
}

// New creates a thread record bound to the given address space.
func New(name string, as *vmm.AddressSpace) *Thread {
	return &Thread{Name: name, AddrSpace: as}
}

// Exit records the thread's exit status and marks it as exited.
func (t *Thread) Exit(status int) {
	t.ExitCode = status
	t.exited = true
}

// Exited returns true once Exit has been called.
func (t *Thread) Exited() bool {
	return t.exited
}

// InstallFile stores the file in the lowest free descriptor slot at or above
// FirstUserFD and returns the descriptor, or -1 if the table is full.
func (t *Thread) InstallFile(file File) int {
	for fd := FirstUserFD; fd < MaxFileDescriptors; fd++ {
		if !t.fdTable[fd].inUse {
			t.fdTable[fd] = fdEntry{inUse: true, file: file}
			return fd
		}
	}
	return -1
}

// LookupFile returns the file stored in the given descriptor slot, or false
// if the descriptor is out of range or not in use.
func (t *Thread) LookupFile(fd int) (File, bool) {
	if fd < 0 || fd >= MaxFileDescriptors || !t.fdTable[fd].inUse {
		return nil, false
	}
	return t.fdTable[fd].file, true
}

// ReleaseFile frees the given descriptor slot and returns the file it held,
// or false if the descriptor is out of range or not in use.
func (t *Thread) ReleaseFile(fd int) (File, bool) {
	file, ok := t.LookupFile(fd)
	if !ok {
		return nil, false
	}
	t.fdTable[fd] = fdEntry{}
	return file, true
}

// current is the thread whose system calls are being served.
var current *Thread

// SetCurrent installs the thread returned by Current.
func SetCurrent(t *Thread) { current = t }

// Current returns the thread whose system calls are being served.
func Current() *Thread { return current }
