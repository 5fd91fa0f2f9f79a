// Package cpu models the processor state that the memory management subsystem
// interacts with: the translation-root register (CR3) and the TLB. The
// hardware registers are represented as explicit package state so that the
// rest of the kernel reads and mutates them through the same call surface it
// would use on bare metal.
package cpu

import "sync/atomic"

// activePDTAddr holds the physical address currently loaded in the modeled
// translation-root register. The system follows a single logical CPU model so
// there is exactly one such register.
var activePDTAddr atomic.Uintptr

// SwitchPDT loads the physical address of a top-level page table into the
// translation-root register. On real hardware this also flushes all non-global
// TLB entries.
func SwitchPDT(pdtPhysAddr uintptr) {
	activePDTAddr.Store(pdtPhysAddr)
}

// ActivePDT returns the physical address currently loaded in the
// translation-root register.
func ActivePDT() uintptr {
	return activePDTAddr.Load()
}

// FlushTLBEntry invalidates the cached translation for a single virtual
// address. The hosted model maintains no translation cache so this is a
// no-op; vmm code routes all calls through an overridable hook so tests can
// observe the invalidations that bare metal would require.
func FlushTLBEntry(virtAddr uintptr) {
	_ = virtAddr
}
