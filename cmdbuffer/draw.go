package cmdbuffer

import "github.com/sarchlab/pipesync/device"

// PrepareDraw brings the command buffer into a state where a draw can be
// recorded: 3D selected, an L3 configuration programmed, base addresses
// current and nothing pending that the 3D pipeline can resolve.
func (c *CmdBuffer) PrepareDraw() error {
	return c.prepare(device.Mode3D)
}

// PrepareDispatch is PrepareDraw for compute dispatches.
func (c *CmdBuffer) PrepareDispatch() error {
	return c.prepare(device.ModeGPGPU)
}

func (c *CmdBuffer) prepare(mode device.Mode) error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()

	if err := c.SwitchPipelineMode(mode); err != nil {
		return err
	}

	if c.l3 == nil && c.device.DefaultL3 != nil {
		if err := c.ConfigureL3(*c.device.DefaultL3); err != nil {
			return err
		}
	}

	if c.poolsMoved() {
		if err := c.ReemitStateBaseAddress(); err != nil {
			return err
		}
	}

	return c.ApplyPendingFlushes()
}
