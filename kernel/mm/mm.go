// Package mm defines the basic types and the physical frame allocation
// boundary used by the kernel's memory management subsystems.
package mm

import (
	"math"

	"github.com/david61song/new-pintos/kernel"
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns a pointer to the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns a Frame that corresponds to
// the given physical address. This function can handle
// both page-aligned and not aligned addresses. in the
// latter case, the input address will be rounded down
// to the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(PageSize - 1)) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns a pointer to the virtual memory address pointed to by this Page.
func (f Page) Address() uintptr {
	return uintptr(f << PageShift)
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses. in the latter case, the input address will be rounded down to the
// page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(PageSize - 1)) >> PageShift)
}

// FrameAllocator is implemented by physical memory allocators that can hand
// out and reclaim fixed-size, naturally aligned page frames.
type FrameAllocator interface {
	// AllocFrame reserves a frame whose contents are cleared to zero.
	AllocFrame() (Frame, *kernel.Error)

	// AllocRawFrame reserves a frame whose contents are left unspecified.
	// It is used when the caller is about to overwrite the full frame.
	AllocRawFrame() (Frame, *kernel.Error)

	// FreeFrame releases a frame previously reserved via AllocFrame or
	// AllocRawFrame.
	FreeFrame(frame Frame) *kernel.Error
}

// frameAllocator points to the frame allocator registered using
// SetFrameAllocator.
var frameAllocator FrameAllocator

// SetFrameAllocator registers a frame allocator that will be used by the vmm
// code when new physical frames need to be allocated or released.
func SetFrameAllocator(alloc FrameAllocator) { frameAllocator = alloc }

// AllocFrame allocates a new zero-filled physical frame using the currently
// registered frame allocator.
func AllocFrame() (Frame, *kernel.Error) { return frameAllocator.AllocFrame() }

// AllocRawFrame allocates a new physical frame with unspecified contents
// using the currently registered frame allocator.
func AllocRawFrame() (Frame, *kernel.Error) { return frameAllocator.AllocRawFrame() }

// FreeFrame releases a physical frame back to the currently registered frame
// allocator.
func FreeFrame(frame Frame) *kernel.Error { return frameAllocator.FreeFrame(frame) }
