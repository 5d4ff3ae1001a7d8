package cmdbuffer

import (
	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/hooking"
	"github.com/sarchlab/pipesync/pipebits"
)

// ConfigureL3 reprograms the L3 partitioning. The L3 can only be changed
// while drained, so the change is wrapped in a flush, invalidate, flush
// sequence. Configuring the current partitioning does nothing.
func (c *CmdBuffer) ConfigureL3(cfg device.L3Config) error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()

	if c.l3 != nil && c.l3.Equal(cfg) {
		return nil
	}

	drain := flush.Barrier{
		Flush: pipebits.DataCacheFlush,
		Stall: pipebits.CSStall,
	}
	invalidate := flush.Barrier{
		Invalidate: pipebits.TextureCacheInvalidate |
			pipebits.ConstantCacheInvalidate |
			pipebits.InstructionCacheInvalidate |
			pipebits.StateCacheInvalidate,
	}

	if err := c.emitBarriers("l3 config", drain, invalidate, drain); err != nil {
		return err
	}

	if err := c.emitter.EmitL3Config(cfg); err != nil {
		return c.fail(err, "emitting l3 config")
	}

	from := c.l3
	c.l3 = &cfg

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosL3Configured,
		Item:   hooking.L3Configured{From: from, To: cfg},
	})

	return nil
}
