package cmdbuffer

import (
	"log"

	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/pipebits"
)

// Begin starts recording. All tracked state is forgotten: the pipeline mode
// and the L3 configuration become unknown and a previous error is cleared.
func (c *CmdBuffer) Begin() error {
	c.err = nil
	c.status = StatusRecording
	c.pending = pipebits.None
	c.reasons = nil
	c.mode = device.ModeInvalid
	c.l3 = nil
	c.poolEpochs = nil
	c.vb.reset()

	if err := c.ReemitStateBaseAddress(); err != nil {
		return err
	}

	// A previous command buffer may have left lines of this memory in the
	// VF cache.
	c.AddPendingBits(pipebits.VFCacheInvalidate, "new cmd buffer")

	if c.device.Capabilities.HasAuxTable {
		c.AddPendingBits(pipebits.AuxTableInvalidate, "new cmd buffer")
	}

	return nil
}

// End drains every pending obligation and closes the command buffer. It
// returns the error that invalidated the command buffer, if any.
func (c *CmdBuffer) End() error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()

	if err := c.drain("end of cmd buffer"); err != nil {
		return err
	}

	// The scoreboard stall is dropped where the mode defers it.
	stall := pipebits.StallAtScoreboard &^ c.device.Table.Deferred(c.mode)

	err := c.emitBarriers("end of cmd buffer",
		flush.Barrier{
			Stall: stall | pipebits.CSStall,
		},
		flush.Barrier{
			Stall:                        pipebits.CSStall,
			DisableIndirectStatePointers: true,
		},
	)
	if err != nil {
		return err
	}

	c.status = StatusExecutable

	return nil
}

// ExecuteSecondary calls secondaries from a primary command buffer. Nothing
// is left pending when the first secondary starts. Afterwards the pipeline
// mode and the L3 configuration are unknown and the state base address is
// emitted again.
func (c *CmdBuffer) ExecuteSecondary(secondaries ...*CmdBuffer) error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()
	c.mustBeExecutableSecondaries(secondaries)

	if len(secondaries) == 0 {
		return nil
	}

	if err := c.drain("execute secondary"); err != nil {
		return err
	}

	for _, s := range secondaries {
		if err := c.emitter.EmitSecondaryCall(s.name); err != nil {
			return c.fail(err, "calling secondary")
		}
	}

	if c.quirks().SecondaryVFInvalidate {
		c.AddPendingBits(pipebits.CSStall|pipebits.VFCacheInvalidate,
			"after secondary")
		c.vb.reset()
	}

	c.mode = device.ModeInvalid
	c.l3 = nil

	return c.ReemitStateBaseAddress()
}

func (c *CmdBuffer) mustBeExecutableSecondaries(secondaries []*CmdBuffer) {
	if c.level != LevelPrimary {
		log.Panicf("command buffer %s is not primary", c.name)
	}

	for _, s := range secondaries {
		if s.level != LevelSecondary {
			log.Panicf("command buffer %s is not secondary", s.name)
		}

		if s.status != StatusExecutable {
			log.Panicf("secondary %s is not executable, status %s",
				s.name, s.status)
		}
	}
}

// drain resolves everything pending. Bits deferred in the current mode are
// forced out by selecting a mode that can emit them. Outstanding flushes are
// completed with an end-of-pipe sync.
func (c *CmdBuffer) drain(reason string) error {
	const maxRounds = 4

	for range maxRounds {
		if c.pending.Has(pipebits.RenderTargetBufferWrites) {
			c.AddPendingBits(pipebits.RenderTargetCacheFlush, reason)
		}

		if c.pending.HasAny(pipebits.FlushBits | pipebits.NeedsEndOfPipeSync) {
			c.AddPendingBits(pipebits.EndOfPipeSync, reason)
		}

		if err := c.ApplyPendingFlushes(); err != nil {
			return err
		}

		if c.pending.IsEmpty() {
			return nil
		}

		if c.pending.HasAny(pipebits.ObligationBits) {
			if err := c.SwitchPipelineMode(c.drainMode()); err != nil {
				return err
			}
		}
	}

	log.Panicf("command buffer %s cannot drain %s", c.name, c.pending)

	return nil
}

// drainMode picks the mode in which the pending bits can be emitted.
func (c *CmdBuffer) drainMode() device.Mode {
	for _, m := range []device.Mode{
		device.Mode3D, device.ModeGPGPU, device.ModeMedia,
	} {
		if m == c.mode {
			continue
		}

		if !c.pending.HasAny(c.device.Table.Deferred(m)) {
			return m
		}
	}

	return device.Mode3D
}
