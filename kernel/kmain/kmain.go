// Package kmain wires the kernel subsystems together: the physical frame
// pool, the virtual memory manager, the descriptor tables and the system call
// layer.
package kmain

import (
	"io"

	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/gdt"
	"github.com/david61song/new-pintos/kernel/kfmt"
	"github.com/david61song/new-pintos/kernel/mm/pmm"
	"github.com/david61song/new-pintos/kernel/mm/vmm"
	"github.com/david61song/new-pintos/kernel/proc"
	"github.com/david61song/new-pintos/kernel/userprog"
)

// Config carries the boot parameters supplied by the host entry point.
type Config struct {
	// ConsoleOut receives kernel log output and the console writes of
	// user programs.
	ConsoleOut io.Writer

	// FramePoolCapacity bounds the number of simultaneously reserved
	// physical frames. Zero lifts the limit.
	FramePoolCapacity int

	// FS is the filesystem served to user programs by the open system
	// call.
	FS userprog.FileSystem

	// HaltFn is invoked by the halt system call. Optional.
	HaltFn func()
}

// systemGDT holds the descriptor table built during boot.
var systemGDT *gdt.GDT

// SystemGDT returns the descriptor table built by Kmain.
func SystemGDT() *gdt.GDT {
	return systemGDT
}

// Kmain boots the kernel and returns the system call dispatcher the host
// entry point feeds user register frames into. The boot order matters: the
// frame pool must exist before the kernel address space template can be
// built, and the template must exist before threads can be created.
func Kmain(cfg Config) (*userprog.Dispatcher, *kernel.Error) {
	kfmt.SetOutputSink(cfg.ConsoleOut)

	kfmt.Printf("kmain: initializing frame pool (capacity: %d)\n", cfg.FramePoolCapacity)
	pmm.Init(cfg.FramePoolCapacity)

	kfmt.Printf("kmain: building kernel address space template\n")
	if err := vmm.Init(); err != nil {
		return nil, err
	}

	kfmt.Printf("kmain: installing segment descriptors\n")
	systemGDT = gdt.New()

	if cfg.HaltFn == nil {
		cfg.HaltFn = func() {}
	}
	dispatcher := userprog.NewDispatcher(cfg.FS, cfg.ConsoleOut, cfg.HaltFn)

	proc.SetCurrent(proc.New("main", vmm.KernelAddressSpace()))

	kfmt.Printf("kmain: boot complete\n")
	return dispatcher, nil
}
