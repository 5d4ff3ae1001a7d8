package device

import "github.com/sarchlab/pipesync/pipebits"

// RemapRule adds bits to a request. When any bit in When is requested while
// Mode is selected, the bits in Add are requested too.
type RemapRule struct {
	Mode Mode
	When pipebits.Bits
	Add  pipebits.Bits
}

// Deferral lists bits that cannot be emitted while Mode is selected. They
// stay pending until a mode that allows them.
type Deferral struct {
	Mode Mode
	Bits pipebits.Bits
}

// Bracket is the set of bits that must be resolved before switching from
// one pipeline mode to another.
type Bracket struct {
	From Mode
	To   Mode
	Bits pipebits.Bits
}

// Quirks are per-generation deviations from the generic flush protocol.
type Quirks struct {
	// CSStallInGPGPU sets the CS stall on every stalling barrier emitted in
	// GPGPU mode.
	CSStallInGPGPU bool `yaml:"cs_stall_in_gpgpu" toml:"cs_stall_in_gpgpu"`

	// EOPRegisterReload reloads a register from the post-sync address after
	// every end-of-pipe sync.
	EOPRegisterReload bool `yaml:"eop_register_reload" toml:"eop_register_reload"`

	// HDCFlushAsDataCacheFlush encodes the HDC pipeline flush as a data
	// cache flush.
	HDCFlushAsDataCacheFlush bool `yaml:"hdc_flush_as_dc_flush" toml:"hdc_flush_as_dc_flush"`

	// InvalidateDummyWrite attaches a dummy post-sync write to invalidation
	// barriers.
	InvalidateDummyWrite bool `yaml:"invalidate_dummy_write" toml:"invalidate_dummy_write"`

	// SBAInvalidatesInstructionCache adds the instruction cache to the
	// invalidations that follow state base address.
	SBAInvalidatesInstructionCache bool `yaml:"sba_invalidates_instruction_cache" toml:"sba_invalidates_instruction_cache"`

	// ClearCCStateBeforeGPGPU emits WaClearCCStatePointers before selecting
	// GPGPU.
	ClearCCStateBeforeGPGPU bool `yaml:"clear_cc_state_before_gpgpu" toml:"clear_cc_state_before_gpgpu"`

	// Reemit3DStateAfterSelect emits WaReemit3DState after selecting 3D.
	Reemit3DStateAfterSelect bool `yaml:"reemit_3d_state_after_select" toml:"reemit_3d_state_after_select"`

	// DepthStateFlush requires a depth stall, depth flush, depth stall
	// sequence before depth buffer state changes.
	DepthStateFlush bool `yaml:"depth_state_flush" toml:"depth_state_flush"`

	// VFCacheRangeTracking enables the 32-bit vertex fetch cache range
	// workaround.
	VFCacheRangeTracking bool `yaml:"vf_cache_range_tracking" toml:"vf_cache_range_tracking"`

	// SecondaryVFInvalidate invalidates the vertex fetch cache after
	// secondaries, because their bindings are not tracked.
	SecondaryVFInvalidate bool `yaml:"secondary_vf_invalidate" toml:"secondary_vf_invalidate"`
}

// FlushTable holds every generation-specific input of the flush resolver.
type FlushTable struct {
	Remaps    []RemapRule
	Deferrals []Deferral
	Brackets  []Bracket
	Quirks    Quirks
}

// Remap applies the remap rules for the mode until no rule adds new bits.
func (t *FlushTable) Remap(bits pipebits.Bits, mode Mode) pipebits.Bits {
	if t == nil {
		return bits
	}

	for range len(t.Remaps) + 1 {
		next := bits

		for _, r := range t.Remaps {
			if r.Mode.Matches(mode) && bits.HasAny(r.When) {
				next |= r.Add
			}
		}

		if next == bits {
			break
		}

		bits = next
	}

	return bits
}

// Deferred returns the bits that cannot be emitted while mode is selected.
func (t *FlushTable) Deferred(mode Mode) pipebits.Bits {
	if t == nil {
		return 0
	}

	var bits pipebits.Bits

	for _, d := range t.Deferrals {
		if d.Mode.Matches(mode) {
			bits |= d.Bits
		}
	}

	return bits
}

// DeferredAnywhere returns the union of all deferrable bits.
func (t *FlushTable) DeferredAnywhere() pipebits.Bits {
	if t == nil {
		return 0
	}

	var bits pipebits.Bits
	for _, d := range t.Deferrals {
		bits |= d.Bits
	}

	return bits
}

// Bracket returns the bits required around a switch from one mode to
// another.
func (t *FlushTable) Bracket(from, to Mode) pipebits.Bits {
	if t == nil {
		return 0
	}

	var bits pipebits.Bits

	for _, b := range t.Brackets {
		if b.From.Matches(from) && b.To.Matches(to) {
			bits |= b.Bits
		}
	}

	return bits
}
