package flush

import (
	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/pipebits"
)

// Resolve converts requested bits into the barriers that satisfy them in the
// given mode. Bits that cannot be emitted in the mode, and tracking bits that
// the plan does not resolve, are returned as remaining.
//
// Flushes are always emitted in a barrier before the invalidations, and an
// end-of-pipe sync separates them whenever a flush is outstanding.
func Resolve(
	requested pipebits.Bits,
	mode device.Mode,
	table *device.FlushTable,
	caps device.Capabilities,
) (Plan, pipebits.Bits) {
	if requested.IsEmpty() {
		return nil, pipebits.None
	}

	bits := table.Remap(requested, mode)

	// Invalidations wait for the flushes of the same request, so a deferred
	// flush holds them back too.
	deferred := bits & table.Deferred(mode) & pipebits.ObligationBits
	if deferred.HasAny(pipebits.FlushBits) {
		deferred |= bits.Invalidates()

		if !(bits &^ deferred).HasAny(
			pipebits.FlushBits | pipebits.NeedsEndOfPipeSync) {
			deferred |= bits & pipebits.EndOfPipeSync
		}
	}

	bits &^= deferred
	remaining := deferred

	if bits.HasAny(pipebits.FlushBits) {
		bits |= pipebits.NeedsEndOfPipeSync
	}

	if bits.HasAny(pipebits.InvalidateBits) &&
		bits.Has(pipebits.NeedsEndOfPipeSync) {
		bits = bits.Clear(pipebits.NeedsEndOfPipeSync) |
			pipebits.EndOfPipeSync
	}

	var quirks device.Quirks
	if table != nil {
		quirks = table.Quirks
	}

	plan := Plan{}

	first := Barrier{
		Flush: bits.Flushes(),
		Stall: bits & (pipebits.StallBits | pipebits.EndOfPipeSync),
	}

	// A post-sync write rides on a barrier that flushes or stalls. On its
	// own it is dropped.
	if bits.Has(pipebits.EndOfPipeSync) ||
		(bits.Has(pipebits.PostSync) && !first.IsEmpty()) {
		first.Stall |= pipebits.CSStall
		first.PostSync = PostSync{
			Op:      PostSyncWriteImmediate,
			Address: caps.WorkaroundAddress,
		}
	}

	bits = bits.Clear(pipebits.PostSync)

	if quirks.CSStallInGPGPU && mode == device.ModeGPGPU &&
		!first.IsEmpty() {
		first.Stall |= pipebits.CSStall
	}

	if quirks.EOPRegisterReload && first.Stall.Has(pipebits.EndOfPipeSync) {
		first.RegisterReload = true
	}

	if first.Flush.Has(pipebits.RenderTargetCacheFlush) {
		bits = bits.Clear(pipebits.RenderTargetBufferWrites)
	}

	if !first.IsEmpty() {
		plan = append(plan, first)

		if first.Stall.Has(pipebits.EndOfPipeSync) {
			bits = bits.Clear(pipebits.NeedsEndOfPipeSync)
		}
	}

	if invalidates := bits.Invalidates(); !invalidates.IsEmpty() {
		second := Barrier{Invalidate: invalidates}

		if quirks.InvalidateDummyWrite {
			second.PostSync = PostSync{
				Op:      PostSyncWriteImmediate,
				Address: caps.WorkaroundAddress,
			}
		}

		plan = append(plan, second)
	}

	remaining |= bits & (pipebits.NeedsEndOfPipeSync |
		pipebits.RenderTargetBufferWrites)

	if len(plan) == 0 {
		plan = nil
	}

	return plan, remaining
}

// A Resolver binds a flush table and device capabilities so that resolution
// only needs the request and the mode.
type Resolver struct {
	table *device.FlushTable
	caps  device.Capabilities
}

// NewResolver creates a Resolver for a device.
func NewResolver(d *device.Device) *Resolver {
	return &Resolver{
		table: d.Table,
		caps:  d.Capabilities,
	}
}

// Resolve resolves the requested bits in the given mode.
func (r *Resolver) Resolve(
	requested pipebits.Bits,
	mode device.Mode,
) (Plan, pipebits.Bits) {
	return Resolve(requested, mode, r.table, r.caps)
}

// Table returns the flush table used by the resolver.
func (r *Resolver) Table() *device.FlushTable {
	return r.table
}

// Capabilities returns the device capabilities used by the resolver.
func (r *Resolver) Capabilities() device.Capabilities {
	return r.caps
}
