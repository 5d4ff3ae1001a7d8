package cmdbuffer

import (
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/pipebits"
)

// EmitDepthStateFlush makes the depth unit idle before its buffer state is
// changed. Only generations that need it emit anything.
func (c *CmdBuffer) EmitDepthStateFlush() error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()

	if !c.quirks().DepthStateFlush {
		return nil
	}

	stall := flush.Barrier{Stall: pipebits.DepthStall}

	return c.emitBarriers("depth state",
		stall,
		flush.Barrier{Flush: pipebits.DepthCacheFlush},
		stall,
	)
}
