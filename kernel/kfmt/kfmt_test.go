package kfmt

import (
	"bytes"
	"io"
	"testing"
)

func TestPrintfBeforeAndAfterSinkRegistration(t *testing.T) {
	defer func() {
		outputSink = nil
		earlyPrintBuffer.rIndex = 0
		earlyPrintBuffer.wIndex = 0
	}()

	// With no sink registered, output should accumulate in the early buffer
	Printf("booting %s %d\n", "kernel", 1)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp, got := "booting kernel 1\n", buf.String(); got != exp {
		t.Fatalf("expected sink to receive buffered output %q; got %q", exp, got)
	}

	buf.Reset()
	Printf("fd %d", 42)

	if exp, got := "fd 42", buf.String(); got != exp {
		t.Fatalf("expected sink to receive %q; got %q", exp, got)
	}
}

func TestRingBufferWrapping(t *testing.T) {
	var rb ringBuffer

	data := make([]byte, ringBufferSize)
	for i := range data {
		data[i] = byte(i % 251)
	}

	// Overfill the buffer so the write index wraps around
	if _, err := rb.Write(data); err != nil {
		t.Fatal(err)
	}
	if _, err := rb.Write(data[:16]); err != nil {
		t.Fatal(err)
	}

	got, err := io.ReadAll(&rb)
	if err != nil {
		t.Fatal(err)
	}

	// A full ring buffer holds one byte less than its capacity
	if exp := ringBufferSize - 1; len(got) != exp {
		t.Fatalf("expected to read %d bytes after wrap; got %d", exp, len(got))
	}

	if _, err = rb.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected EOF on drained buffer; got %v", err)
	}
}
