package vmm

import "github.com/david61song/new-pintos/kernel/mm"

// EntryVisitor is invoked by ForEach for every present leaf entry in an
// address space. The visitor receives a pointer to the live entry and the
// canonical virtual address of the page it maps. Returning false aborts the
// remainder of the walk.
type EntryVisitor func(pte *PageTableEntry, virtAddr uintptr) bool

// ForEach walks the page table trie in ascending virtual address order and
// invokes visit for every present leaf entry, including the entries of the
// shared kernel region. It returns false if the visitor aborted the walk and
// true otherwise.
//
// The visitor may mutate the entry it is handed but must not install or
// remove mappings while the walk is in progress.
func (as *AddressSpace) ForEach(visit EntryVisitor) bool {
	return visitTable(as.root, 0, 0, visit)
}

// visitTable recurses over one page table level. virtAddr carries the address
// bits accumulated from the indices of the enclosing levels.
func visitTable(frame mm.Frame, level int, virtAddr uintptr, visit EntryVisitor) bool {
	table := tableFromFrameFn(frame)
	for i := range table {
		pte := &table[i]
		if !pte.HasFlags(FlagPresent) {
			continue
		}

		entryAddr := virtAddr | (uintptr(i) << pageLevelShifts[level])
		if level == pageLevels-1 {
			if !visit(pte, canonical(entryAddr)) {
				return false
			}
			continue
		}

		if pte.HasFlags(FlagHugePage) {
			continue
		}

		if !visitTable(pte.Frame(), level+1, entryAddr, visit) {
			return false
		}
	}

	return true
}
