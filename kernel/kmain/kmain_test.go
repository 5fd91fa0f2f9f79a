package kmain

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david61song/new-pintos/kernel/kfmt"
	"github.com/david61song/new-pintos/kernel/mm"
	"github.com/david61song/new-pintos/kernel/proc"
	"github.com/david61song/new-pintos/kernel/userprog"
)

func TestKmain(t *testing.T) {
	defer func() {
		mm.SetFrameAllocator(nil)
		proc.SetCurrent(nil)
		kfmt.SetOutputSink(nil)
	}()

	var console bytes.Buffer
	dispatcher, err := Kmain(Config{
		ConsoleOut:        &console,
		FramePoolCapacity: 128,
	})
	require.Nil(t, err)
	require.NotNil(t, dispatcher)

	assert.NotNil(t, SystemGDT())
	require.NotNil(t, proc.Current())
	assert.Equal(t, "main", proc.Current().Name)

	for _, milestone := range []string{
		"initializing frame pool",
		"building kernel address space template",
		"installing segment descriptors",
		"boot complete",
	} {
		assert.Truef(t, strings.Contains(console.String(), milestone), "missing log line %q", milestone)
	}

	// The halt system call falls back to a no-op when no handler is
	// configured.
	dispatcher.Dispatch(proc.Current(), &userprog.Registers{RAX: userprog.SysHalt})
}
