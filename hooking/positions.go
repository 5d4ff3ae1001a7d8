package hooking

import (
	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/pipebits"
)

// Hook positions of a command buffer.
var (
	// HookPosBitsAdded triggers when bits are added to the pending set. The
	// item is a BitsAdded.
	HookPosBitsAdded = &HookPos{Name: "BitsAdded"}

	// HookPosBarrierEmitted triggers after a barrier is written. The item is
	// a BarrierEmitted.
	HookPosBarrierEmitted = &HookPos{Name: "BarrierEmitted"}

	// HookPosModeSelected triggers after a pipeline select. The item is a
	// ModeSelected.
	HookPosModeSelected = &HookPos{Name: "ModeSelected"}

	// HookPosStateBaseAddress triggers after state base address is written.
	// The item is an emit.StateBaseAddress.
	HookPosStateBaseAddress = &HookPos{Name: "StateBaseAddress"}

	// HookPosL3Configured triggers after the L3 is reprogrammed. The item is
	// an L3Configured.
	HookPosL3Configured = &HookPos{Name: "L3Configured"}
)

// BitsAdded is the hook item of HookPosBitsAdded.
type BitsAdded struct {
	Bits    pipebits.Bits
	Pending pipebits.Bits
	Reason  string
}

// BarrierEmitted is the hook item of HookPosBarrierEmitted.
type BarrierEmitted struct {
	Barrier flush.Barrier
	Emitted pipebits.Bits
	Mode    device.Mode
	Reason  string
}

// ModeSelected is the hook item of HookPosModeSelected.
type ModeSelected struct {
	From device.Mode
	To   device.Mode
}

// L3Configured is the hook item of HookPosL3Configured. From is nil when the
// previous configuration was unknown.
type L3Configured struct {
	From *device.L3Config
	To   device.L3Config
}
