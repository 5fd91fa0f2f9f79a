package vmm

import (
	"testing"

	"github.com/david61song/new-pintos/kernel/mm"
)

func TestForEachVisitsPresentLeavesInOrder(t *testing.T) {
	_, restore := setupVMM(t)
	defer restore()

	as, err := NewAddressSpace()
	if err != nil {
		t.Fatal(err)
	}

	// Deliberately map out of ascending order; the walk order depends on
	// the table indices, not the mapping order.
	userPages := []uintptr{uintptr(3)<<pageLevelShifts[1] + 0x2000, 0x1000, 0x200000}
	for _, upage := range userPages {
		frame, err := mm.AllocFrame()
		if err != nil {
			t.Fatal(err)
		}
		if err := as.SetPage(upage, frame.Address()+directMapOffset, true); err != nil {
			t.Fatal(err)
		}
	}

	kpage := KernelBase + 0x4000
	kernelFrame, err := mm.AllocFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := MapKernelPage(kpage, kernelFrame, false); err != nil {
		t.Fatal(err)
	}

	var visited []uintptr
	completed := as.ForEach(func(pte *PageTableEntry, virtAddr uintptr) bool {
		if !pte.HasFlags(FlagPresent) {
			t.Errorf("visited entry at %x is not present", virtAddr)
		}
		visited = append(visited, virtAddr)
		return true
	})

	if !completed {
		t.Fatal("expected ForEach to report a completed walk")
	}

	expected := []uintptr{0x1000, 0x200000, uintptr(3)<<pageLevelShifts[1] + 0x2000, kpage}
	if len(visited) != len(expected) {
		t.Fatalf("expected %d visited entries; got %d", len(expected), len(visited))
	}
	for i, exp := range expected {
		if visited[i] != exp {
			t.Fatalf("expected visit %d to be %x; got %x", i, exp, visited[i])
		}
	}
}

func TestForEachSkipsClearedEntries(t *testing.T) {
	_, restore := setupVMM(t)
	defer restore()

	as, err := NewAddressSpace()
	if err != nil {
		t.Fatal(err)
	}

	for _, upage := range []uintptr{0x1000, 0x2000} {
		frame, err := mm.AllocFrame()
		if err != nil {
			t.Fatal(err)
		}
		if err := as.SetPage(upage, frame.Address()+directMapOffset, true); err != nil {
			t.Fatal(err)
		}
	}

	as.ClearPage(0x1000)

	var visited []uintptr
	as.ForEach(func(_ *PageTableEntry, virtAddr uintptr) bool {
		visited = append(visited, virtAddr)
		return true
	})

	if len(visited) != 1 || visited[0] != 0x2000 {
		t.Fatalf("expected only the page at 0x2000 to be visited; got %x", visited)
	}
}

func TestForEachAbort(t *testing.T) {
	_, restore := setupVMM(t)
	defer restore()

	as, err := NewAddressSpace()
	if err != nil {
		t.Fatal(err)
	}

	for _, upage := range []uintptr{0x1000, 0x2000, 0x3000} {
		frame, err := mm.AllocFrame()
		if err != nil {
			t.Fatal(err)
		}
		if err := as.SetPage(upage, frame.Address()+directMapOffset, true); err != nil {
			t.Fatal(err)
		}
	}

	visitCount := 0
	completed := as.ForEach(func(*PageTableEntry, uintptr) bool {
		visitCount++
		return false
	})

	if completed {
		t.Fatal("expected ForEach to report an aborted walk")
	}
	if visitCount != 1 {
		t.Fatalf("expected the walk to stop after 1 visit; got %d", visitCount)
	}
}
