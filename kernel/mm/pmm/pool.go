// Package pmm implements the kernel's physical memory manager: an
// arena-backed pool that hands out fixed-size, naturally aligned page frames
// and reclaims them when they are released. The pool backs each frame with
// pinned host memory so that a frame's contents can be accessed through the
// kernel's direct map.
package pmm

import (
	"unsafe"

	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/mm"
	"github.com/david61song/new-pintos/kernel/sync"
)

var (
	errPoolExhausted     = &kernel.Error{Module: "pmm", Message: "out of physical memory"}
	errFrameNotAllocated = &kernel.Error{Module: "pmm", Message: "frame is not allocated by this pool"}
)

// rawPoison is the fill pattern applied to frames reserved with
// AllocRawFrame. It makes callers that rely on raw frames being zeroed fail
// loudly instead of silently working.
const rawPoison = 0xcc

// frameBlock describes the backing storage for a single frame. The block is
// over-allocated by one page so that the frame address can be rounded up to
// the next page boundary.
type frameBlock struct {
	backing []byte
}

// Pool is a physical frame allocator. All methods are safe for concurrent
// use.
type Pool struct {
	mu sync.Spinlock

	// blocks tracks the backing storage of every live frame. An entry in
	// this map both pins the frame's memory and marks the frame as
	// reserved.
	blocks map[mm.Frame]*frameBlock

	// capacity limits the number of simultaneously reserved frames. A
	// zero capacity lifts the limit.
	capacity int
}

// NewPool creates a frame pool that can hand out up to capacity frames at a
// time. A capacity of 0 removes the limit.
func NewPool(capacity int) *Pool {
	return &Pool{
		blocks:   make(map[mm.Frame]*frameBlock),
		capacity: capacity,
	}
}

// AllocFrame reserves a frame whose contents are cleared to zero.
func (p *Pool) AllocFrame() (mm.Frame, *kernel.Error) {
	return p.reserve(true)
}

// AllocRawFrame reserves a frame whose contents are unspecified. The pool
// fills raw frames with a poison pattern so that callers which expect zeroed
// memory are caught by tests.
func (p *Pool) AllocRawFrame() (mm.Frame, *kernel.Error) {
	return p.reserve(false)
}

func (p *Pool) reserve(zero bool) (mm.Frame, *kernel.Error) {
	p.mu.Acquire()
	defer p.mu.Release()

	if p.capacity != 0 && len(p.blocks) >= p.capacity {
		return mm.InvalidFrame, errPoolExhausted
	}

	// Over-allocate by one page and round up so the frame is naturally
	// aligned regardless of how the host heap aligns the block.
	block := &frameBlock{backing: make([]byte, 2*mm.PageSize)}
	frameAddr := (uintptr(unsafe.Pointer(&block.backing[0])) + mm.PageSize - 1) &^ (mm.PageSize - 1)
	frame := mm.FrameFromAddress(frameAddr)

	if !zero {
		mm.Memset(frameAddr, rawPoison, mm.PageSize)
	}

	p.blocks[frame] = block
	return frame, nil
}

// FreeFrame releases a frame previously reserved from this pool. Releasing a
// frame twice or releasing a frame owned by another allocator returns an
// error.
func (p *Pool) FreeFrame(frame mm.Frame) *kernel.Error {
	p.mu.Acquire()
	defer p.mu.Release()

	if _, reserved := p.blocks[frame]; !reserved {
		return errFrameNotAllocated
	}

	delete(p.blocks, frame)
	return nil
}

// UsedFrames returns the number of frames currently reserved from the pool.
func (p *Pool) UsedFrames() int {
	p.mu.Acquire()
	defer p.mu.Release()
	return len(p.blocks)
}

// Owns returns true if frame is currently reserved from this pool.
func (p *Pool) Owns(frame mm.Frame) bool {
	p.mu.Acquire()
	defer p.mu.Release()
	_, reserved := p.blocks[frame]
	return reserved
}

// Init sets up the kernel physical memory allocation sub-system: it creates
// the system frame pool and registers it as the active frame allocator.
func Init(capacity int) *Pool {
	pool := NewPool(capacity)
	mm.SetFrameAllocator(pool)
	return pool
}
