package cmdbuffer

import (
	"log"

	"github.com/sarchlab/pipesync/pipebits"
)

// The VF cache keys its lines on the low 32 bits of the address. Vertex and
// index buffers whose combined range spans more than 4 GiB can alias.
const (
	// IndexBufferSlot is the binding index used for the index buffer.
	IndexBufferSlot = -1

	maxVertexBuffers = 32
	vbAlign          = 64
	vfCacheSpan      = uint64(1) << 32
)

type addressRange struct {
	start, end uint64
}

func (r addressRange) isEmpty() bool {
	return r.end <= r.start
}

func (r addressRange) union(o addressRange) addressRange {
	if r.isEmpty() {
		return o
	}

	if o.isEmpty() {
		return r
	}

	return addressRange{start: min(r.start, o.start), end: max(r.end, o.end)}
}

type vbCacheTracker struct {
	bound [maxVertexBuffers + 1]addressRange
	dirty [maxVertexBuffers + 1]addressRange
}

func (t *vbCacheTracker) reset() {
	*t = vbCacheTracker{}
}

// applied forgets the dirty ranges once the VF cache has been invalidated
// behind a CS stall.
func (t *vbCacheTracker) applied(emitted pipebits.Bits) {
	if emitted.Has(pipebits.CSStall | pipebits.VFCacheInvalidate) {
		t.dirty = [maxVertexBuffers + 1]addressRange{}
	}
}

func slotOf(index int) int {
	if index == IndexBufferSlot {
		return maxVertexBuffers
	}

	return index
}

func (c *CmdBuffer) vfCacheTracking() bool {
	return c.quirks().VFCacheRangeTracking &&
		!c.device.Capabilities.UsesRelocations
}

// SetVertexBinding records the buffer bound at a vertex buffer index, or at
// IndexBufferSlot for the index buffer. A size of 0 unbinds the slot.
func (c *CmdBuffer) SetVertexBinding(index int, address, size uint64) {
	if c.err != nil {
		return
	}

	c.mustBeRecording()

	if index < IndexBufferSlot || index >= maxVertexBuffers {
		log.Panicf("vertex buffer index %d of %s out of range",
			index, c.name)
	}

	if !c.vfCacheTracking() {
		return
	}

	r := addressRange{}
	if size > 0 {
		r.start = address &^ (vbAlign - 1)
		r.end = (address + size + vbAlign - 1) &^ (vbAlign - 1)
	}

	c.vb.bound[slotOf(index)] = r
}

// MarkVertexBuffersUsed records that a draw reads the vertex buffers in
// mask, and the index buffer if indexed. When the ranges read since the last
// VF invalidation no longer fit in the VF cache's address space, a CS stall
// and a VF invalidation become pending.
func (c *CmdBuffer) MarkVertexBuffersUsed(mask uint32, indexed bool) {
	if c.err != nil {
		return
	}

	c.mustBeRecording()

	if !c.vfCacheTracking() {
		return
	}

	slots := []int{}
	for i := range maxVertexBuffers {
		if mask&(1<<i) != 0 {
			slots = append(slots, i)
		}
	}

	if indexed {
		slots = append(slots, maxVertexBuffers)
	}

	for _, s := range slots {
		bound := c.vb.bound[s]
		if bound.isEmpty() {
			continue
		}

		dirty := c.vb.dirty[s].union(bound)
		c.vb.dirty[s] = dirty

		if dirty.end-dirty.start > vfCacheSpan {
			c.AddPendingBits(pipebits.CSStall|pipebits.VFCacheInvalidate,
				"vb > 32b range")
		}
	}
}
