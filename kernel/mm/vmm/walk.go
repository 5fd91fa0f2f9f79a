package vmm

import (
	"unsafe"

	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/mm"
)

// pageTable overlays the contents of a single page table level.
type pageTable [entriesPerTable]PageTableEntry

var (
	// tableFromFrameFn translates a physical frame into a pointer to the
	// page table it holds. The default implementation accesses the frame
	// through the kernel's direct map; it is overridden by tests that
	// need to fake page table memory.
	tableFromFrameFn = tableFromFrame
)

// tableFromFrame returns a pointer to the page table stored in the given
// physical frame. The translation uses the kernel's direct map which covers
// all physical memory at a fixed offset.
func tableFromFrame(frame mm.Frame) *pageTable {
	return (*pageTable)(unsafe.Pointer(frame.Address() + directMapOffset))
}

// createdEntry records an interior page table node materialized during a
// single walk so that a later allocation failure can roll it back.
type createdEntry struct {
	pte   *PageTableEntry
	frame mm.Frame
}

// pteForAddress walks the page table trie rooted at root and returns a
// pointer to the leaf-level entry slot that corresponds to virtAddr.
//
// When create is true, missing interior levels are materialized with zeroed
// frames flagged present, writable and user-accessible. If a frame allocation
// fails mid-walk, every interior node that this particular call created is
// freed and its entry re-cleared so the trie is left exactly as it was found.
// The leaf-level mapping itself is never installed by the walker; that is the
// caller's responsibility.
//
// When create is false, ErrInvalidMapping is returned as soon as a missing
// interior level is encountered.
func pteForAddress(root mm.Frame, virtAddr uintptr, create bool) (*PageTableEntry, *kernel.Error) {
	var (
		created      [pageLevels - 1]createdEntry
		createdCount int
		table        = tableFromFrameFn(root)
	)

	for level := 0; level < pageLevels-1; level++ {
		pte := &table[tableIndex(virtAddr, level)]

		switch {
		case pte.HasFlags(FlagPresent):
			if pte.HasFlags(FlagHugePage) {
				return nil, errNoHugePageSupport
			}
		case !create:
			return nil, ErrInvalidMapping
		default:
			newTableFrame, err := mm.AllocFrame()
			if err != nil {
				unwindCreatedEntries(created[:createdCount])
				return nil, err
			}

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW | FlagUserAccess)

			created[createdCount] = createdEntry{pte: pte, frame: newTableFrame}
			createdCount++
		}

		table = tableFromFrameFn(pte.Frame())
	}

	return &table[tableIndex(virtAddr, pageLevels-1)], nil
}

// unwindCreatedEntries releases the interior nodes materialized by a failed
// walk in reverse creation order and re-clears the entries that pointed to
// them. Entries that were already present before the walk are never touched.
func unwindCreatedEntries(created []createdEntry) {
	for i := len(created) - 1; i >= 0; i-- {
		mm.FreeFrame(created[i].frame)
		*created[i].pte = 0
	}
}
