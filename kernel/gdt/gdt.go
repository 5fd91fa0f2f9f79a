// Package gdt constructs the global descriptor table and the task state
// segment used for privilege level switches. In long mode the base and limit
// of code and data descriptors are ignored so the table is a fixed set of
// flat segments; the only dynamic piece of state is the kernel stack pointer
// stored in the TSS.
package gdt

import "unsafe"

// Selector identifies a descriptor table entry by its byte offset, with the
// requested privilege level encoded in the two low bits.
type Selector uint16

const (
	// SelNull is the mandatory null selector at index 0.
	SelNull Selector = 0x00

	// SelKernelCode selects the ring 0 code segment.
	SelKernelCode Selector = 0x08

	// SelKernelData selects the ring 0 data segment.
	SelKernelData Selector = 0x10

	// SelUserData selects the ring 3 data segment.
	SelUserData Selector = 0x18 | rplUser

	// SelUserCode selects the ring 3 code segment.
	SelUserCode Selector = 0x20 | rplUser

	// SelTSS selects the task state segment descriptor. The descriptor is
	// 16 bytes long and occupies two consecutive table entries.
	SelTSS Selector = 0x28
)

// rplUser is the requested privilege level for user mode selectors.
const rplUser = 3

// Index returns the descriptor table index this selector refers to.
func (s Selector) Index() int { return int(s >> 3) }

// RPL returns the requested privilege level encoded in the selector.
func (s Selector) RPL() int { return int(s & 3) }

// Descriptor is one 8-byte descriptor table entry.
type Descriptor uint64

// Segment type nibbles and descriptor attribute bits (Intel SDM Vol. 3A,
// section 3.4.5).
const (
	typeCodeExecRead  = 0xa
	typeDataReadWrite = 0x2
	typeTSSAvailable  = 0x9

	descTypeShift  = 40
	descS          = 1 << 44
	descDPLShift   = 45
	descPresent    = 1 << 47
	descLimitHigh  = 48
	descLongMode   = 1 << 53
	descGranular4K = 1 << 55
)

// tableEntries is the number of 8-byte slots in the table: the null entry,
// four flat segments, the two-slot TSS descriptor and one spare.
const tableEntries = 8

// segmentDescriptor packs a flat 4 GiB code or data segment with the given
// type nibble and privilege level. The limit bits are ignored by the
// processor in long mode but are populated the way the boot loaders expect.
func segmentDescriptor(segType, dpl uint64) Descriptor {
	return Descriptor(0xffff | // limit 15:0
		segType<<descTypeShift |
		descS |
		dpl<<descDPLShift |
		descPresent |
		0xf<<descLimitHigh |
		descLongMode |
		descGranular4K)
}

// TaskState mirrors the 104-byte amd64 task state segment. The 64-bit fields
// are split into lo/hi halves so the struct layout matches the hardware
// layout without padding.
type TaskState struct {
	_              uint32
	rsp0Lo, rsp0Hi uint32
	rsp1Lo, rsp1Hi uint32
	rsp2Lo, rsp2Hi uint32
	_              [2]uint32
	ist            [14]uint32
	_              [2]uint32
	_              uint16
	ioMapBase      uint16
}

// SetKernelStack stores the stack pointer loaded on a transition to ring 0.
// It is updated on every context switch to point at the top of the incoming
// thread's kernel stack.
func (ts *TaskState) SetKernelStack(rsp0 uint64) {
	ts.rsp0Lo = uint32(rsp0)
	ts.rsp0Hi = uint32(rsp0 >> 32)
}

// KernelStack returns the currently stored ring 0 stack pointer.
func (ts *TaskState) KernelStack() uint64 {
	return uint64(ts.rsp0Hi)<<32 | uint64(ts.rsp0Lo)
}

// GDT bundles the descriptor table with the task state segment its TSS
// descriptor points to.
type GDT struct {
	entries [tableEntries]Descriptor
	tss     TaskState
}

// New builds a descriptor table with the standard flat segment layout: null,
// kernel code/data, user data/code and a TSS descriptor pointing at the
// bundled task state segment.
func New() *GDT {
	g := &GDT{}
	g.entries[SelKernelCode.Index()] = segmentDescriptor(typeCodeExecRead, 0)
	g.entries[SelKernelData.Index()] = segmentDescriptor(typeDataReadWrite, 0)
	g.entries[SelUserData.Index()] = segmentDescriptor(typeDataReadWrite, rplUser)
	g.entries[SelUserCode.Index()] = segmentDescriptor(typeCodeExecRead, rplUser)
	g.installTSSDescriptor()
	return g
}

// installTSSDescriptor packs the 16-byte system descriptor for the bundled
// task state segment into the two slots starting at SelTSS. Unlike segment
// descriptors, system descriptors carry a live base address and limit.
func (g *GDT) installTSSDescriptor() {
	var (
		base  = uint64(uintptr(unsafe.Pointer(&g.tss)))
		limit = uint64(unsafe.Sizeof(g.tss))
		index = SelTSS.Index()
	)

	g.entries[index] = Descriptor(limit&0xffff |
		(base&0xffffff)<<16 |
		typeTSSAvailable<<descTypeShift |
		descPresent |
		(limit>>16&0xf)<<descLimitHigh |
		(base>>24&0xff)<<56)
	g.entries[index+1] = Descriptor(base >> 32)
}

// Descriptor returns the table entry the given selector refers to.
func (g *GDT) Descriptor(sel Selector) Descriptor {
	return g.entries[sel.Index()]
}

// TaskState returns the task state segment referenced by the table's TSS
// descriptor.
func (g *GDT) TaskState() *TaskState {
	return &g.tss
}

// TSSBase reassembles the base address packed into the TSS descriptor.
func (g *GDT) TSSBase() uint64 {
	var (
		lo = uint64(g.entries[SelTSS.Index()])
		hi = uint64(g.entries[SelTSS.Index()+1])
	)
	return hi<<32 | (lo>>56&0xff)<<24 | lo>>16&0xffffff
}
