package mm

import (
	"testing"
	"unsafe"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := uintptr(frameIndex<<PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input uintptr
		exp   Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.exp {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.exp, got)
		}
	}
}

func TestPageFromAddress(t *testing.T) {
	specs := []struct {
		input uintptr
		exp   Page
	}{
		{0, Page(0)},
		{4095, Page(0)},
		{4096, Page(1)},
		{4123, Page(1)},
	}

	for specIndex, spec := range specs {
		if got := PageFromAddress(spec.input); got != spec.exp {
			t.Errorf("[spec %d] expected returned page to be %v; got %v", specIndex, spec.exp, got)
		}
	}
}

func TestMemset(t *testing.T) {
	// memset with a 0 size should be a no-op
	Memset(uintptr(0), 0x00, 0)

	for _, size := range []uintptr{16, 32, 512, 1024, PageSize} {
		buf := make([]byte, size)
		for i := range buf {
			buf[i] = 0xf0
		}

		addr := uintptr(unsafe.Pointer(&buf[0]))
		Memset(addr, 0x1a, size)

		for i := range buf {
			if got := buf[i]; got != 0x1a {
				t.Errorf("[size %d] expected byte %d to be 0x1a; got 0x%x", size, i, got)
			}
		}
	}
}

func TestMemcopy(t *testing.T) {
	// memcopy with a 0 size should be a no-op
	Memcopy(uintptr(0), uintptr(0), 0)

	src := make([]byte, PageSize)
	for i := range src {
		src[i] = byte(i % 256)
	}
	dst := make([]byte, PageSize)

	Memcopy(
		uintptr(unsafe.Pointer(&src[0])),
		uintptr(unsafe.Pointer(&dst[0])),
		PageSize,
	)

	for i := range dst {
		if dst[i] != src[i] {
			t.Errorf("value mismatch between src and dst at index %d", i)
		}
	}
}
