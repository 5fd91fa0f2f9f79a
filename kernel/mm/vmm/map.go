package vmm

import (
	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/mm"
)

var (
	errUnalignedAddress = &kernel.Error{Module: "vmm", Message: "address is not page-aligned"}
	errUserVAExpected   = &kernel.Error{Module: "vmm", Message: "virtual address is not a user address"}
	errMapOnKernel      = &kernel.Error{Module: "vmm", Message: "attempt to install a user mapping in the kernel template"}
)

// assertPageAligned panics if virtAddr is not aligned to a page boundary.
// Misaligned addresses in mapping operations indicate a caller bug.
func assertPageAligned(virtAddr uintptr) {
	if virtAddr&(mm.PageSize-1) != 0 {
		panic(errUnalignedAddress)
	}
}

// assertUserAddr panics if virtAddr does not belong to user space.
func assertUserAddr(virtAddr uintptr) {
	if virtAddr >= KernelBase {
		panic(errUserVAExpected)
	}
}

// GetPage looks up the mapping for the user virtual address uaddr and returns
// the kernel virtual address through which the mapped frame's contents can be
// accessed, preserving the page offset of uaddr. ErrInvalidMapping is
// returned if uaddr is not mapped.
func (as *AddressSpace) GetPage(uaddr uintptr) (uintptr, *kernel.Error) {
	assertUserAddr(uaddr)

	pte, err := pteForAddress(as.root, uaddr, false)
	if err != nil {
		return 0, err
	}

	if !pte.HasFlags(FlagPresent) {
		return 0, ErrInvalidMapping
	}

	return pte.Frame().Address() + directMapOffset + (uaddr & (mm.PageSize - 1)), nil
}

// SetPage installs a mapping from the user virtual page upage to the physical
// frame identified by the kernel virtual address kpage. The new mapping is
// user-accessible and writable iff writable is true.
//
// upage must not already carry a present mapping; SetPage reports
// ErrAlreadyMapped in that case and RemapPage must be used instead. An
// allocation failure while materializing interior page table levels is
// reported to the caller and leaves the address space unchanged.
//
// Both addresses must be page-aligned, upage must be a user address and the
// kernel template cannot receive user mappings; violations are caller bugs
// and panic.
func (as *AddressSpace) SetPage(upage, kpage uintptr, writable bool) *kernel.Error {
	pte, err := as.userPTEForMapping(upage, kpage)
	if err != nil {
		return err
	}

	if pte.HasFlags(FlagPresent) {
		return ErrAlreadyMapped
	}

	as.installUserMapping(pte, kpage, writable)
	return nil
}

// RemapPage installs a mapping from upage to kpage exactly like SetPage but
// explicitly allows replacing an existing mapping. It returns the physical
// frame that was previously mapped at upage (InvalidFrame if there was none)
// so that the caller can reclaim its ownership. If a present mapping was
// replaced in the active address space, the stale translation is invalidated.
func (as *AddressSpace) RemapPage(upage, kpage uintptr, writable bool) (mm.Frame, *kernel.Error) {
	pte, err := as.userPTEForMapping(upage, kpage)
	if err != nil {
		return mm.InvalidFrame, err
	}

	prevFrame := mm.InvalidFrame
	replaced := pte.HasFlags(FlagPresent)
	if replaced {
		prevFrame = pte.Frame()
	}

	as.installUserMapping(pte, kpage, writable)
	if replaced && as.IsActive() {
		flushTLBEntryFn(upage)
	}

	return prevFrame, nil
}

// userPTEForMapping validates the addresses involved in a user mapping
// operation and walks the trie with creation enabled, returning the leaf
// entry slot for upage.
func (as *AddressSpace) userPTEForMapping(upage, kpage uintptr) (*PageTableEntry, *kernel.Error) {
	assertPageAligned(upage)
	assertPageAligned(kpage)
	assertUserAddr(upage)
	if as.root == kernelAddrSpace.root {
		panic(errMapOnKernel)
	}

	return pteForAddress(as.root, upage, true)
}

// installUserMapping writes a present, user-accessible leaf entry pointing at
// the physical frame that backs the kernel virtual address kpage.
func (as *AddressSpace) installUserMapping(pte *PageTableEntry, kpage uintptr, writable bool) {
	flags := FlagPresent | FlagUserAccess
	if writable {
		flags |= FlagRW
	}

	*pte = 0
	pte.SetFrame(mm.FrameFromAddress(kpage - directMapOffset))
	pte.SetFlags(flags)
}

// ClearPage marks the user virtual page upage as not present so later
// accesses to the page will fault. All other bits of the leaf entry are
// preserved. If this address space is the active translation root, the
// page's cached translation is invalidated. Clearing an unmapped page is a
// no-op.
func (as *AddressSpace) ClearPage(upage uintptr) {
	assertPageAligned(upage)
	assertUserAddr(upage)

	pte, err := pteForAddress(as.root, upage, false)
	if err != nil || !pte.HasFlags(FlagPresent) {
		return
	}

	pte.ClearFlags(FlagPresent)
	if as.IsActive() {
		flushTLBEntryFn(upage)
	}
}

// IsDirty returns true if the page at the virtual page vpage has been written
// to since its leaf entry was installed. It returns false if the address
// space contains no leaf entry for vpage.
func (as *AddressSpace) IsDirty(vpage uintptr) bool {
	return as.leafHasFlag(vpage, FlagDirty)
}

// SetDirty sets or clears the dirty bit of the leaf entry for vpage. It is a
// no-op if the address space contains no leaf entry for vpage.
func (as *AddressSpace) SetDirty(vpage uintptr, dirty bool) {
	as.updateLeafFlag(vpage, FlagDirty, dirty)
}

// IsAccessed returns true if the page at the virtual page vpage has been read
// from or written to between the time its leaf entry was installed and the
// last time the accessed bit was cleared. It returns false if the address
// space contains no leaf entry for vpage.
func (as *AddressSpace) IsAccessed(vpage uintptr) bool {
	return as.leafHasFlag(vpage, FlagAccessed)
}

// SetAccessed sets or clears the accessed bit of the leaf entry for vpage. It
// is a no-op if the address space contains no leaf entry for vpage.
func (as *AddressSpace) SetAccessed(vpage uintptr, accessed bool) {
	as.updateLeafFlag(vpage, FlagAccessed, accessed)
}

func (as *AddressSpace) leafHasFlag(vpage uintptr, flag PageTableEntryFlag) bool {
	pte, err := pteForAddress(as.root, vpage, false)
	return err == nil && pte.HasFlags(flag)
}

// updateLeafFlag mutates one of the MMU-maintained attribute bits. When the
// mutation targets the active address space the page's cached translation is
// invalidated so the MMU's own bit-setting behavior stays consistent with the
// explicit write.
func (as *AddressSpace) updateLeafFlag(vpage uintptr, flag PageTableEntryFlag, set bool) {
	pte, err := pteForAddress(as.root, vpage, false)
	if err != nil {
		return
	}

	if set {
		pte.SetFlags(flag)
	} else {
		pte.ClearFlags(flag)
	}

	if as.IsActive() {
		flushTLBEntryFn(vpage)
	}
}
