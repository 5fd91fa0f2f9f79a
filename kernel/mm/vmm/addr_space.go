package vmm

import (
	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/cpu"
	"github.com/david61song/new-pintos/kernel/mm"
	"github.com/david61song/new-pintos/kernel/sync"
)

var (
	// activePDTFn is used by tests to override calls to cpu.ActivePDT.
	activePDTFn = cpu.ActivePDT

	// switchPDTFn is used by tests to override calls to cpu.SwitchPDT.
	switchPDTFn = cpu.SwitchPDT

	// flushTLBEntryFn is used by tests to override calls to
	// cpu.FlushTLBEntry.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// kernelAddrSpace is the permanent kernel template created by Init.
	// Every address space created afterwards shares the kernel sub-trie
	// reachable through the template's tagged top-level slot.
	kernelAddrSpace *AddressSpace

	// kernelMu serializes mutations of the shared kernel sub-trie. Private
	// address spaces need no internal locking; their tries are never
	// shared between owners.
	kernelMu sync.Spinlock

	errVMMNotInitialized = &kernel.Error{Module: "vmm", Message: "vmm.Init has not been called"}
	errDestroyKernel     = &kernel.Error{Module: "vmm", Message: "attempt to destroy the kernel template address space"}
	errDestroyActive     = &kernel.Error{Module: "vmm", Message: "attempt to destroy the active address space"}
	errKernelVAExpected  = &kernel.Error{Module: "vmm", Message: "virtual address outside the shared kernel region"}
)

// AddressSpace describes one complete virtual address space: a four-level
// page table trie identified by the physical frame of its top-level table.
//
// Every address space shares the kernel sub-trie of the permanent template
// through its tagged top-level slot and exclusively owns all frames reachable
// through its remaining slots.
type AddressSpace struct {
	root mm.Frame
}

// Init creates the permanent kernel template address space and installs it as
// the active translation root. The template's top-level slot covering
// KernelBase is materialized eagerly and tagged FlagKernelShared so that
// address spaces copied from the template alias the kernel sub-trie instead
// of owning it.
func Init() *kernel.Error {
	rootFrame, err := mm.AllocFrame()
	if err != nil {
		return err
	}

	// Materialize the shared kernel sub-trie root so it exists before the
	// template is ever copied.
	kernelTableFrame, err := mm.AllocFrame()
	if err != nil {
		mm.FreeFrame(rootFrame)
		return err
	}

	table := tableFromFrameFn(rootFrame)
	pte := &table[tableIndex(KernelBase, 0)]
	*pte = 0
	pte.SetFrame(kernelTableFrame)
	pte.SetFlags(FlagPresent | FlagRW | FlagKernelShared)

	kernelAddrSpace = &AddressSpace{root: rootFrame}
	Activate(nil)
	return nil
}

// KernelAddressSpace returns the permanent kernel template address space.
func KernelAddressSpace() *AddressSpace {
	return kernelAddrSpace
}

// NewAddressSpace creates a new address space with mappings for kernel
// virtual addresses but none for user virtual addresses. The new top-level
// table is a byte-for-byte copy of the kernel template so the kernel sub-trie
// is shared by alias; only the owning top-level slot is copied.
func NewAddressSpace() (*AddressSpace, *kernel.Error) {
	if kernelAddrSpace == nil {
		panic(errVMMNotInitialized)
	}

	// The copy overwrites every byte of the new root so a raw frame
	// suffices.
	rootFrame, err := mm.AllocRawFrame()
	if err != nil {
		return nil, err
	}

	*tableFromFrameFn(rootFrame) = *tableFromFrameFn(kernelAddrSpace.root)
	return &AddressSpace{root: rootFrame}, nil
}

// IsActive returns true if this address space is the currently installed
// translation root.
func (as *AddressSpace) IsActive() bool {
	return activePDTFn() == as.root.Address()
}

// Activate installs the given address space as the processor's translation
// root. Passing nil re-installs the kernel template. This is the only place
// where the translation-root register changes.
func Activate(as *AddressSpace) {
	if as == nil {
		as = kernelAddrSpace
	}
	switchPDTFn(as.root.Address())
}

// Destroy releases every physical frame this address space privately owns:
// all interior page table nodes and mapped leaf frames reachable through the
// non-shared top-level slots, followed by the top-level table itself. Slots
// tagged FlagKernelShared are skipped; the kernel sub-trie outlives every
// per-process address space.
//
// Destroying the kernel template or the currently active address space is a
// caller bug and panics.
func (as *AddressSpace) Destroy() {
	if kernelAddrSpace == nil {
		panic(errVMMNotInitialized)
	}
	if as.root == kernelAddrSpace.root {
		panic(errDestroyKernel)
	}
	if as.IsActive() {
		panic(errDestroyActive)
	}

	table := tableFromFrameFn(as.root)
	for i := range table {
		pte := table[i]
		if !pte.HasFlags(FlagPresent) || pte.HasFlags(FlagKernelShared) {
			continue
		}
		destroyTable(pte.Frame(), 1)
	}

	mm.FreeFrame(as.root)
}

// destroyTable recursively frees the page table stored in frame together
// with every present frame it references. At the leaf level the referenced
// frames are the mapped pages themselves.
func destroyTable(frame mm.Frame, level int) {
	table := tableFromFrameFn(frame)
	for i := range table {
		pte := table[i]
		if !pte.HasFlags(FlagPresent) {
			continue
		}

		if level < pageLevels-1 {
			destroyTable(pte.Frame(), level+1)
		} else {
			mm.FreeFrame(pte.Frame())
		}
	}

	mm.FreeFrame(frame)
}

// MapKernelPage establishes a mapping from the kernel virtual page kpage to
// frame inside the shared kernel sub-trie. The mapping becomes visible to
// every address space, present and future, since they all alias the same
// sub-trie. Mutations of the shared region are serialized internally.
//
// kpage must be page-aligned and must lie inside the top-level slot reserved
// for the kernel at boot; both violations are caller bugs and panic.
func MapKernelPage(kpage uintptr, frame mm.Frame, writable bool) *kernel.Error {
	if kernelAddrSpace == nil {
		panic(errVMMNotInitialized)
	}
	assertPageAligned(kpage)
	if tableIndex(kpage, 0) != tableIndex(KernelBase, 0) {
		panic(errKernelVAExpected)
	}

	kernelMu.Acquire()
	defer kernelMu.Release()

	pte, err := pteForAddress(kernelAddrSpace.root, kpage, true)
	if err != nil {
		return err
	}

	flags := FlagPresent
	if writable {
		flags |= FlagRW
	}

	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(flags)
	flushTLBEntryFn(kpage)
	return nil
}
