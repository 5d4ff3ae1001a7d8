package device

// Workaround names a fixed packet sequence the emitter writes on behalf of a
// hardware erratum.
type Workaround int

// Known workarounds.
const (
	// WaClearCCStatePointers clears the color-calc state valid bit before a
	// pipeline select into GPGPU.
	WaClearCCStatePointers Workaround = iota + 1

	// WaReemit3DState re-emits the fixed-function state that a pipeline
	// select into 3D invalidates.
	WaReemit3DState

	// WaRegisterReload reads back the end-of-pipe sync write into a scratch
	// register so that later commands observe its completion.
	WaRegisterReload
)

func (w Workaround) String() string {
	switch w {
	case WaClearCCStatePointers:
		return "clear_cc_state_pointers"
	case WaReemit3DState:
		return "reemit_3d_state"
	case WaRegisterReload:
		return "register_reload"
	default:
		return "unknown_workaround"
	}
}
