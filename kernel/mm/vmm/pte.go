package vmm

import (
	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/mm"
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory
	// address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrAlreadyMapped is returned by SetPage when the target user page
	// already carries a present mapping. Replacing an existing mapping
	// must be requested explicitly via RemapPage so that ownership of the
	// evicted frame is never silently dropped.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "user page already carries a present mapping"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uintptr

const (
	// FlagPresent marks the entry as describing a valid mapping.
	FlagPresent PageTableEntryFlag = 1 << 0

	// FlagRW marks the mapped page as writable.
	FlagRW PageTableEntryFlag = 1 << 1

	// FlagUserAccess marks the mapped page as accessible from user mode.
	FlagUserAccess PageTableEntryFlag = 1 << 2

	// FlagAccessed is set by the MMU when the mapped page is read from or
	// written to.
	FlagAccessed PageTableEntryFlag = 1 << 5

	// FlagDirty is set by the MMU when the mapped page is written to.
	FlagDirty PageTableEntryFlag = 1 << 6

	// FlagHugePage marks the entry as describing a huge page. The kernel
	// does not support huge pages; the page table walker reports an error
	// when it encounters one.
	FlagHugePage PageTableEntryFlag = 1 << 7

	// FlagKernelShared is a software flag (one of the AVL bits ignored by
	// the MMU) applied to the top-level slots that point into the shared
	// kernel sub-trie. Address space destruction never descends into a
	// slot carrying this flag.
	FlagKernelShared PageTableEntryFlag = 1 << 9
)

// PageTableEntry describes an entry in one of the page table levels. Entries
// encode a physical frame address and a set of flags.
type PageTableEntry uintptr

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uintptr(*pte) | uintptr(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uintptr(*pte) &^ uintptr(flags))
}

// Frame returns the physical page frame that this page table entry points to.
func (pte PageTableEntry) Frame() mm.Frame {
	return mm.Frame((uintptr(pte) & ptePhysPageMask) >> mm.PageShift)
}

// SetFrame updates the page table entry to point to the given physical frame.
func (pte *PageTableEntry) SetFrame(frame mm.Frame) {
	*pte = (PageTableEntry)((uintptr(*pte) &^ ptePhysPageMask) | frame.Address())
}
