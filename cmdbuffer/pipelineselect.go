package cmdbuffer

import (
	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/hooking"
	"github.com/sarchlab/pipesync/pipebits"
)

// SwitchPipelineMode selects the target pipeline. The bracket of the
// transition is resolved before the select. Bracket bits the current mode
// cannot emit are emitted right after the select, so none of them is left
// pending when the switch returns. Switching to the mode that is already
// selected does nothing.
func (c *CmdBuffer) SwitchPipelineMode(target device.Mode) error {
	if c.err != nil {
		return c.err
	}

	c.mustBeRecording()

	if target == c.mode {
		return nil
	}

	table := c.device.Table
	quirks := c.quirks()

	bracket := table.Bracket(c.mode, target)
	if !bracket.IsEmpty() {
		c.AddPendingBits(bracket, "pipeline select")

		if err := c.ApplyPendingFlushes(); err != nil {
			return err
		}
	}

	if target == device.ModeGPGPU && quirks.ClearCCStateBeforeGPGPU {
		err := c.emitter.EmitWorkaround(device.WaClearCCStatePointers)
		if err != nil {
			return c.fail(err, "clearing color calc state")
		}
	}

	if err := c.emitter.EmitModeSelect(target); err != nil {
		return c.fail(err, "selecting pipeline")
	}

	from := c.mode
	c.mode = target

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosModeSelected,
		Item:   hooking.ModeSelected{From: from, To: target},
	})

	return c.afterModeSelect(from, target)
}

// afterModeSelect emits what the previous mode held back.
func (c *CmdBuffer) afterModeSelect(from, target device.Mode) error {
	if target == device.Mode3D && c.quirks().Reemit3DStateAfterSelect {
		if err := c.emitter.EmitWorkaround(device.WaReemit3DState); err != nil {
			return c.fail(err, "re-emitting 3D state")
		}
	}

	if c.device.Table.Deferred(from).IsEmpty() ||
		!c.pending.HasAny(pipebits.ObligationBits) {
		return nil
	}

	return c.ApplyPendingFlushes()
}
