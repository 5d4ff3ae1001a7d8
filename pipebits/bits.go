// Package pipebits defines the set of cache flush, cache invalidate, and
// stall obligations that a command buffer accumulates before they are
// written into the command stream.
package pipebits

import (
	"fmt"
	"math/bits"
	"strings"
)

// Bits is a set of pending pipe obligations.
type Bits uint32

// Flush flags. Data written through the named cache is not yet visible to
// memory or to other cache clients.
const (
	DepthCacheFlush Bits = 1 << iota
	DataCacheFlush
	TileCacheFlush
	RenderTargetCacheFlush
	HDCPipelineFlush
	UntypedDataportCacheFlush
	CCSCacheFlush

	// Invalidate flags. The named cache may hold stale data.
	StateCacheInvalidate
	ConstantCacheInvalidate
	VFCacheInvalidate
	TextureCacheInvalidate
	InstructionCacheInvalidate
	AuxTableInvalidate

	// Stall flags.
	StallAtScoreboard
	DepthStall
	CSStall
	PSSStallSync

	// EndOfPipeSync waits for all prior flushes to be observably complete.
	EndOfPipeSync

	// NeedsEndOfPipeSync records that a flush has been emitted without an
	// end-of-pipe sync. The next invalidation must resolve it first.
	NeedsEndOfPipeSync

	// RenderTargetBufferWrites marks render target writes into buffers that
	// are still in flight. It is cleared by a render target flush.
	RenderTargetBufferWrites

	// PostSync requests a post-sync write on the next stalling barrier.
	PostSync
)

// None is the empty set.
const None Bits = 0

// Family masks.
const (
	FlushBits = DepthCacheFlush |
		DataCacheFlush |
		TileCacheFlush |
		RenderTargetCacheFlush |
		HDCPipelineFlush |
		UntypedDataportCacheFlush |
		CCSCacheFlush

	InvalidateBits = StateCacheInvalidate |
		ConstantCacheInvalidate |
		VFCacheInvalidate |
		TextureCacheInvalidate |
		InstructionCacheInvalidate |
		AuxTableInvalidate

	StallBits = StallAtScoreboard |
		DepthStall |
		CSStall |
		PSSStallSync

	// ObligationBits are the bits that must never be dropped without being
	// emitted.
	ObligationBits = FlushBits | InvalidateBits | StallBits | EndOfPipeSync

	// MetaBits never map directly to a hardware barrier field.
	MetaBits = NeedsEndOfPipeSync | RenderTargetBufferWrites | PostSync

	allBits = ObligationBits | MetaBits
)

var bitNames = []struct {
	bit  Bits
	name string
}{
	{DepthCacheFlush, "depth_flush"},
	{DataCacheFlush, "dc_flush"},
	{TileCacheFlush, "tile_flush"},
	{RenderTargetCacheFlush, "rt_flush"},
	{HDCPipelineFlush, "hdc_flush"},
	{UntypedDataportCacheFlush, "udp_flush"},
	{CCSCacheFlush, "ccs_flush"},
	{StateCacheInvalidate, "state_inval"},
	{ConstantCacheInvalidate, "const_inval"},
	{VFCacheInvalidate, "vf_inval"},
	{TextureCacheInvalidate, "tex_inval"},
	{InstructionCacheInvalidate, "ic_inval"},
	{AuxTableInvalidate, "aux_inval"},
	{StallAtScoreboard, "sb_stall"},
	{DepthStall, "depth_stall"},
	{CSStall, "cs_stall"},
	{PSSStallSync, "pss_stall"},
	{EndOfPipeSync, "eop"},
	{NeedsEndOfPipeSync, "needs_eop"},
	{RenderTargetBufferWrites, "rt_bufwr"},
	{PostSync, "post_sync"},
}

// Add returns the union of b and other.
func (b Bits) Add(other Bits) Bits {
	return b | other
}

// Clear returns b without the bits in mask.
func (b Bits) Clear(mask Bits) Bits {
	return b &^ mask
}

// Intersect returns the bits present in both b and mask.
func (b Bits) Intersect(mask Bits) Bits {
	return b & mask
}

// Has returns true if every bit in mask is set.
func (b Bits) Has(mask Bits) bool {
	return b&mask == mask
}

// HasAny returns true if at least one bit in mask is set.
func (b Bits) HasAny(mask Bits) bool {
	return b&mask != 0
}

// IsEmpty returns true if no bit is set.
func (b Bits) IsEmpty() bool {
	return b == 0
}

// Count returns the number of bits set.
func (b Bits) Count() int {
	return bits.OnesCount32(uint32(b))
}

// Flushes returns the flush family subset.
func (b Bits) Flushes() Bits { return b & FlushBits }

// Invalidates returns the invalidate family subset.
func (b Bits) Invalidates() Bits { return b & InvalidateBits }

// Stalls returns the stall family subset.
func (b Bits) Stalls() Bits { return b & StallBits }

// Names returns the names of the bits that are set, in bit order.
func (b Bits) Names() []string {
	names := make([]string, 0, b.Count())

	for _, bn := range bitNames {
		if b&bn.bit != 0 {
			names = append(names, bn.name)
		}
	}

	if unknown := b &^ allBits; unknown != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(unknown)))
	}

	return names
}

// String dumps the set in the "+name +name" form used by pipe control debug
// output.
func (b Bits) String() string {
	if b == 0 {
		return "(none)"
	}

	names := b.Names()
	for i := range names {
		names[i] = "+" + names[i]
	}

	return strings.Join(names, " ")
}

// Parse converts a list of names separated by "|", "," or spaces into Bits.
func Parse(s string) (Bits, error) {
	var result Bits

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' ' || r == '+'
	})

	for _, f := range fields {
		bit, err := ParseName(f)
		if err != nil {
			return 0, err
		}

		result |= bit
	}

	return result, nil
}

// ParseName converts a single name into its bit. The family names "flush",
// "invalidate" and "stall" select whole families.
func ParseName(name string) (Bits, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case "flush", "flushes":
		return FlushBits, nil
	case "invalidate", "invalidates":
		return InvalidateBits, nil
	case "stall", "stalls":
		return StallBits, nil
	}

	for _, bn := range bitNames {
		if bn.name == name {
			return bn.bit, nil
		}
	}

	return 0, fmt.Errorf("unknown pipe bit %q", name)
}

// ParseNames converts a list of names into Bits.
func ParseNames(names []string) (Bits, error) {
	var result Bits

	for _, n := range names {
		bit, err := Parse(n)
		if err != nil {
			return 0, err
		}

		result |= bit
	}

	return result, nil
}

// MarshalText implements encoding.TextMarshaler.
func (b Bits) MarshalText() ([]byte, error) {
	return []byte(strings.Join(b.Names(), "|")), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Bits) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*b = parsed

	return nil
}
