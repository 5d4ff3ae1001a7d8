package cmdbuffer

import "github.com/sarchlab/pipesync/pipebits"

// PipelineBarrier makes writes performed through src visible to reads
// performed through dst. The barrier only adds pending bits; they are
// resolved by the next operation that applies them.
func (c *CmdBuffer) PipelineBarrier(src, dst pipebits.Access, reason string) {
	bits := pipebits.FlushBitsForAccess(src) |
		pipebits.InvalidateBitsForAccess(dst,
			c.device.Capabilities.IndirectUBOsUseSampler)

	c.AddPendingBits(bits, reason)
}
