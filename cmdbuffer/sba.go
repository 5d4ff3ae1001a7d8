package cmdbuffer

import (
	"github.com/sarchlab/pipesync/emit"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/hooking"
	"github.com/sarchlab/pipesync/pipebits"
)

// ReemitStateBaseAddress points the base address registers at the current
// pools. It always emits, and it always invalidates the caches that hold
// state fetched through the previous addresses.
func (c *CmdBuffer) ReemitStateBaseAddress() error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()

	err := c.emitBarriers("before state base address", flush.Barrier{
		Flush: pipebits.DataCacheFlush | pipebits.RenderTargetCacheFlush,
		Stall: pipebits.CSStall,
	})
	if err != nil {
		return err
	}

	sba := emit.NewStateBaseAddress(c.device.Pools)
	if err := c.emitter.EmitStateBaseAddress(sba); err != nil {
		return c.fail(err, "emitting state base address")
	}

	c.poolEpochs = c.currentPoolEpochs()

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosStateBaseAddress,
		Item:   sba,
	})

	bits := pipebits.TextureCacheInvalidate |
		pipebits.ConstantCacheInvalidate |
		pipebits.StateCacheInvalidate |
		pipebits.NeedsEndOfPipeSync
	if c.quirks().SBAInvalidatesInstructionCache {
		bits |= pipebits.InstructionCacheInvalidate
	}

	if err := c.applyNow(bits, "after state base address"); err != nil {
		return err
	}

	return c.ApplyPendingFlushes()
}

func (c *CmdBuffer) currentPoolEpochs() []uint64 {
	pools := c.device.Pools.All()
	epochs := make([]uint64, len(pools))

	for i, p := range pools {
		epochs[i] = p.Epoch()
	}

	return epochs
}

func (c *CmdBuffer) poolsMoved() bool {
	epochs := c.currentPoolEpochs()
	if len(epochs) != len(c.poolEpochs) {
		return true
	}

	for i := range epochs {
		if epochs[i] != c.poolEpochs[i] {
			return true
		}
	}

	return false
}
