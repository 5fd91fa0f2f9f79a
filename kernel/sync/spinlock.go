// Package sync provides synchronization primitives for kernel code.
package sync

import (
	"runtime"
	"sync/atomic"
)

// spinsBeforeYielding defines the number of failed acquisition attempts after
// which a spinning task yields the processor.
const spinsBeforeYielding = 64

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for spins := 0; !l.TryToAcquire(); spins++ {
		if spins >= spinsBeforeYielding {
			spins = 0
			runtime.Gosched()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
