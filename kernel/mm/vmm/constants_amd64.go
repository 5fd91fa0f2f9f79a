package vmm

const (
	// pageLevels indicates the number of page table levels supported by
	// the amd64 architecture.
	pageLevels = 4

	// entriesPerTable is the number of entries stored in a single page
	// table level: PageSize / the size of a page table entry.
	entriesPerTable = 512

	// ptePhysPageMask is a mask that allows us to extract the physical memory
	// address pointed to by a page table entry. For this particular architecture,
	// bits 12-51 contain the physical memory address.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// KernelBase marks the start of the kernel's virtual address space.
	// Addresses below KernelBase belong to user space. The value is
	// aligned to a top-level table slot boundary (512 GiB) so that user
	// and kernel mappings can never share a top-level slot; the kernel
	// region occupies exactly the top-level slot with index 1.
	KernelBase = uintptr(1) << 39

	// directMapOffset is the fixed offset between a physical address and
	// the kernel virtual address through which its contents are
	// accessible. The hosted kernel maps all physical memory at offset
	// zero.
	directMapOffset = uintptr(0)
)

var (
	// pageLevelBits is the number of virtual address bits that compose
	// the table index at each page level, starting with the top-most
	// level.
	pageLevelBits = [pageLevels]uintptr{9, 9, 9, 9}

	// pageLevelShifts is the number of bits a virtual address needs to be
	// right-shifted by so that its LSBs contain the table index for each
	// page level, starting with the top-most level.
	pageLevelShifts = [pageLevels]uintptr{39, 30, 21, 12}
)

// tableIndex extracts the page table index for the given level out of a
// virtual address.
func tableIndex(virtAddr uintptr, level int) uintptr {
	return (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
}

// canonical sign-extends bit 47 of a virtual address so that addresses
// reconstructed from page table indices are valid amd64 canonical addresses.
func canonical(virtAddr uintptr) uintptr {
	if virtAddr&(uintptr(1)<<47) != 0 {
		virtAddr |= ^((uintptr(1) << 48) - 1)
	}
	return virtAddr
}
