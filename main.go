package main

import (
	"os"

	"github.com/david61song/new-pintos/kernel"
	"github.com/david61song/new-pintos/kernel/kmain"
)

// main boots the hosted kernel with the host's standard output as the
// console. It works as a trampoline into the actual kernel entrypoint
// (kmain.Kmain); the host process stands in for the machine.
func main() {
	if _, err := kmain.Kmain(kmain.Config{
		ConsoleOut: os.Stdout,
		HaltFn:     func() { os.Exit(0) },
	}); err != nil {
		kernel.Panic(err)
	}
}
