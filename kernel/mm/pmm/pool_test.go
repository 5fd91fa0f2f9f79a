package pmm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david61song/new-pintos/kernel/mm"
)

func frameContents(frame mm.Frame) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(frame.Address())), mm.PageSize)
}

func TestPoolAllocFrame(t *testing.T) {
	pool := NewPool(0)

	frame, err := pool.AllocFrame()
	require.Nil(t, err)
	require.True(t, frame.Valid())

	assert.Zero(t, frame.Address()&(mm.PageSize-1), "frames must be naturally aligned")
	assert.True(t, pool.Owns(frame))
	assert.Equal(t, 1, pool.UsedFrames())

	for _, b := range frameContents(frame) {
		require.EqualValues(t, 0, b, "AllocFrame must return zeroed frames")
	}
}

func TestPoolAllocRawFrame(t *testing.T) {
	pool := NewPool(0)

	frame, err := pool.AllocRawFrame()
	require.Nil(t, err)

	for _, b := range frameContents(frame) {
		require.EqualValues(t, rawPoison, b, "raw frames must carry the poison pattern")
	}
}

func TestPoolCapacity(t *testing.T) {
	pool := NewPool(2)

	frame1, err := pool.AllocFrame()
	require.Nil(t, err)
	_, err = pool.AllocFrame()
	require.Nil(t, err)

	_, err = pool.AllocFrame()
	assert.Equal(t, errPoolExhausted, err)

	// Releasing a frame makes room for a new reservation
	require.Nil(t, pool.FreeFrame(frame1))
	_, err = pool.AllocFrame()
	assert.Nil(t, err)
}

func TestPoolFreeFrameErrors(t *testing.T) {
	pool := NewPool(0)

	frame, err := pool.AllocFrame()
	require.Nil(t, err)

	require.Nil(t, pool.FreeFrame(frame))
	assert.Equal(t, errFrameNotAllocated, pool.FreeFrame(frame), "double free must be detected")
	assert.Equal(t, errFrameNotAllocated, pool.FreeFrame(mm.Frame(0xbad)), "foreign frames must be rejected")
	assert.Equal(t, 0, pool.UsedFrames())
}

func TestInitRegistersPoolWithMM(t *testing.T) {
	defer mm.SetFrameAllocator(nil)

	pool := Init(4)

	frame, err := mm.AllocFrame()
	require.Nil(t, err)
	assert.True(t, pool.Owns(frame))

	rawFrame, err := mm.AllocRawFrame()
	require.Nil(t, err)
	assert.True(t, pool.Owns(rawFrame))

	require.Nil(t, mm.FreeFrame(frame))
	require.Nil(t, mm.FreeFrame(rawFrame))
	assert.Equal(t, 0, pool.UsedFrames())
}
