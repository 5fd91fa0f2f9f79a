// Package userprog implements the system call surface exposed to user
// programs: a register-frame dispatcher and the handlers that mediate between
// user memory and the kernel's filesystem and console.
package userprog

import (
	"io"
	"unsafe"

	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/mm/vmm"
	"github.com/david61song/new-pintos/kernel/proc"
)

// System call numbers. The numbering is part of the user program ABI and
// must not be reordered.
const (
	SysHalt = iota
	SysExit
	SysFork
	SysExec
	SysWait
	SysCreate
	SysRemove
	SysOpen
	SysFilesize
	SysRead
	SysWrite
	SysSeek
	SysTell
	SysClose
)

// maxPathLength bounds the length of path strings copied in from user
// memory.
const maxPathLength = 1024

// errBadUserPointer is reported when a system call argument points outside
// the caller's mapped user memory.
var errBadUserPointer = &kernel.Error{Module: "userprog", Message: "system call argument points to unmapped user memory"}

// Registers is the register frame captured on system call entry. RAX carries
// the system call number on entry and the return value on exit; the
// arguments arrive in RDI, RSI, RDX, R10, R8 and R9.
type Registers struct {
	RAX uint64
	RDI uint64
	RSI uint64
	RDX uint64
	R10 uint64
	R8  uint64
	R9  uint64
}

// FileSystem is the filesystem boundary consumed by the open system call.
type FileSystem interface {
	// Open looks up the file stored at path. It returns
	// an error if no such file exists.
	Open(path string) (proc.File, *kernel.Error)
}

// Dispatcher routes system calls to their handlers.
type Dispatcher struct {
	fs      FileSystem
	console io.Writer

	// haltFn powers the machine off. Overridable so the boot code can
	// hook the host shutdown path and tests can observe halts.
	haltFn func()
}

// NewDispatcher creates a dispatcher that serves open from fs, write to
// console and halt via haltFn.
func NewDispatcher(fs FileSystem, console io.Writer, haltFn func()) *Dispatcher {
	return &Dispatcher{
		fs:      fs,
		console: console,
		haltFn:  haltFn,
	}
}

// Dispatch serves the system call described by the register frame on behalf
// of the given thread and stores the result back into the frame's RAX.
// Unimplemented system call numbers return to the caller unchanged; unknown
// numbers power the machine off.
func (d *Dispatcher) Dispatch(t *proc.Thread, frame *Registers) {
	switch frame.RAX {
	case SysHalt:
		d.haltFn()
	case SysExit:
		t.Exit(int(int64(frame.RDI)))
	case SysOpen:
		frame.RAX = uint64(d.sysOpen(t, uintptr(frame.RDI)))
	case SysWrite:
		frame.RAX = uint64(d.sysWrite(t, int(int64(frame.RDI)), uintptr(frame.RSI), frame.RDX))
	case SysClose:
		frame.RAX = uint64(d.sysClose(t, int(int64(frame.RDI))))
	case SysFork, SysExec, SysWait, SysCreate, SysRemove,
		SysFilesize, SysRead, SysSeek, SysTell:
		// Not implemented yet.
	default:
		d.haltFn()
	}
}

// sysWrite copies nbyte bytes from the user buffer at bufAddr to the console
// when fd addresses the standard output stream. Writes to any other
// descriptor are accepted and discarded. A buffer that points outside the
// caller's mapped memory terminates the caller.
func (d *Dispatcher) sysWrite(t *proc.Thread, fd int, bufAddr uintptr, nbyte uint64) int64 {
	if fd == 1 {
		for i := uint64(0); i < nbyte; i++ {
			b, err := readUserByte(t.AddrSpace, bufAddr+uintptr(i))
			if err != nil {
				t.Exit(-1)
				return -1
			}
			d.console.Write([]byte{b})
		}
	}
	return int64(nbyte)
}

// sysOpen opens the file named by the NUL-terminated user string at pathAddr
// and installs it in the caller's descriptor table. It returns the new
// descriptor, or -1 if the path is invalid, the file does not exist or the
// descriptor table is full. A path that points outside the caller's mapped
// memory terminates the caller.
func (d *Dispatcher) sysOpen(t *proc.Thread, pathAddr uintptr) int64 {
	if pathAddr == 0 || pathAddr >= vmm.KernelBase {
		return -1
	}

	path, err := readUserString(t.AddrSpace, pathAddr)
	if err != nil {
		t.Exit(-1)
		return -1
	}

	file, err := d.fs.Open(path)
	if err != nil {
		return -1
	}

	fd := t.InstallFile(file)
	if fd == -1 {
		file.Close()
	}
	return int64(fd)
}

// sysClose releases the given descriptor. It returns 0 on success and -1 if
// the descriptor is not open.
func (d *Dispatcher) sysClose(t *proc.Thread, fd int) int64 {
	file, ok := t.ReleaseFile(fd)
	if !ok {
		return -1
	}
	file.Close()
	return 0
}

// readUserByte reads one byte of user memory through the thread's address
// space.
func readUserByte(as *vmm.AddressSpace, uaddr uintptr) (byte, *kernel.Error) {
	if uaddr >= vmm.KernelBase {
		return 0, errBadUserPointer
	}

	kaddr, err := as.GetPage(uaddr)
	if err != nil {
		return 0, errBadUserPointer
	}

	return *(*byte)(unsafe.Pointer(kaddr)), nil
}

// readUserString copies a NUL-terminated string out of user memory, one byte
// at a time so that page boundaries are re-translated.
func readUserString(as *vmm.AddressSpace, uaddr uintptr) (string, *kernel.Error) {
	var buf []byte
	for i := uintptr(0); i < maxPathLength; i++ {
		b, err := readUserByte(as, uaddr+i)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", errBadUserPointer
}
