package cmdbuffer

import (
	"strings"

	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/hooking"
	"github.com/sarchlab/pipesync/pipebits"
)

// AddPendingBits records obligations to be resolved by the next
// ApplyPendingFlushes. The reason only shows up in debug output.
func (c *CmdBuffer) AddPendingBits(bits pipebits.Bits, reason string) {
	if c.err != nil {
		return
	}

	c.mustBeRecording()

	if bits.IsEmpty() {
		return
	}

	c.pending |= bits
	c.reasons = append(c.reasons, reason)

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosBitsAdded,
		Item: hooking.BitsAdded{
			Bits:    bits,
			Pending: c.pending,
			Reason:  reason,
		},
	})
}

// ApplyPendingFlushes emits the barriers that resolve the pending bits in
// the current mode. Bits the mode cannot emit stay pending. Calling it with
// nothing pending does nothing.
func (c *CmdBuffer) ApplyPendingFlushes() error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()

	bits := c.pending
	if c.device.Debug.AlwaysFlushCache {
		bits |= pipebits.FlushBits | pipebits.InvalidateBits
	}

	if bits.IsEmpty() {
		return nil
	}

	plan, remaining := c.resolver.Resolve(bits, c.mode)
	reason := strings.Join(c.reasons, ", ")

	var emitted pipebits.Bits

	for _, b := range plan {
		got, err := c.emitBarrier(b, reason)
		if err != nil {
			return err
		}

		emitted |= got
	}

	c.pending = remaining
	c.reasons = c.reasons[:0]

	if !remaining.IsEmpty() {
		c.reasons = append(c.reasons, "deferred")
	}

	c.vb.applied(emitted)

	return nil
}

// emitBarrier writes one barrier, stamping its post-sync write with the
// next sequence number.
func (c *CmdBuffer) emitBarrier(
	b flush.Barrier,
	reason string,
) (pipebits.Bits, error) {
	if b.PostSync.Op != flush.PostSyncNone {
		c.syncSeqNo++
		b.PostSync.Value = c.syncSeqNo
	}

	emitted, err := c.emitter.EmitBarrier(b)
	if err != nil {
		return pipebits.None, c.fail(err, "emitting barrier")
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosBarrierEmitted,
		Item: hooking.BarrierEmitted{
			Barrier: b,
			Emitted: emitted,
			Mode:    c.mode,
			Reason:  reason,
		},
	})

	return emitted, nil
}

// emitBarriers writes barriers outside of the pending set, in order. Bits
// the current mode cannot emit are cut from each barrier and become pending.
func (c *CmdBuffer) emitBarriers(reason string, barriers ...flush.Barrier) error {
	deferred := c.device.Table.Deferred(c.mode)

	var held pipebits.Bits

	for _, b := range barriers {
		held |= b.Bits() & deferred

		b.Flush &^= deferred
		b.Invalidate &^= deferred
		b.Stall &^= deferred

		if b.IsEmpty() {
			continue
		}

		if _, err := c.emitBarrier(b, reason); err != nil {
			return err
		}
	}

	c.AddPendingBits(held, reason)

	return nil
}

// applyNow resolves bits on their own, ahead of anything already pending,
// and emits them right away. What the current mode cannot emit becomes
// pending.
func (c *CmdBuffer) applyNow(bits pipebits.Bits, reason string) error {
	plan, remaining := c.resolver.Resolve(bits, c.mode)

	var emitted pipebits.Bits

	for _, b := range plan {
		got, err := c.emitBarrier(b, reason)
		if err != nil {
			return err
		}

		emitted |= got
	}

	if emitted.Has(pipebits.EndOfPipeSync) {
		c.pending = c.pending.Clear(pipebits.NeedsEndOfPipeSync)
	}

	c.vb.applied(emitted)
	c.AddPendingBits(remaining, reason)

	return nil
}
