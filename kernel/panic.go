package kernel

import (
	"bootvoid/kernel/cpu"
	"bootvoid/kernel/kfmt"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the early log and halts
// the CPU. Panic is the only exit path for conditions that leave the boot
// attempt without a usable memory manager (exhausted frame allocator, broken
// configuration); there is nothing to retry at that stage.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	if err == nil {
		err = errRuntimePanic
	}

	log := kfmt.Logger().With("src", "kernel")
	log.Error("unrecoverable error", "module", err.Module, "err", err.Message)
	log.Error("*** kernel panic: system halted ***")

	cpuHaltFn(err)
}

// panicString handles Panic calls with a plain string message.
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
