// Package emit defines the boundary between the flush protocol and packet
// encoding, and provides Batch, an in-memory command stream.
package emit

import (
	"fmt"

	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/pipebits"
)

// Emitter writes hardware packets into a command stream.
type Emitter interface {
	// EmitBarrier writes one pipe control. It returns the bits actually
	// encoded, which may differ from the request when the generation
	// substitutes an illegal combination.
	EmitBarrier(b flush.Barrier) (pipebits.Bits, error)

	// EmitModeSelect writes a pipeline select.
	EmitModeSelect(mode device.Mode) error

	// EmitStateBaseAddress writes the base addresses of the state pools.
	EmitStateBaseAddress(sba StateBaseAddress) error

	// EmitL3Config reprograms the L3 partitioning.
	EmitL3Config(cfg device.L3Config) error

	// EmitWorkaround writes the packet sequence of a hardware workaround.
	EmitWorkaround(wa device.Workaround) error

	// EmitSecondaryCall jumps into a secondary command buffer.
	EmitSecondaryCall(id string) error
}

// Range is the address and size of one pool.
type Range struct {
	Address uint64 `json:"address"`
	Size    uint64 `json:"size"`
}

func (r Range) String() string {
	return fmt.Sprintf("0x%x/0x%x", r.Address, r.Size)
}

// StateBaseAddress holds the base address registers.
type StateBaseAddress struct {
	General         Range `json:"general"`
	Dynamic         Range `json:"dynamic"`
	Instruction     Range `json:"instruction"`
	Surface         Range `json:"surface"`
	BindlessSurface Range `json:"bindless_surface"`
}

// NewStateBaseAddress reads the current location of every pool.
func NewStateBaseAddress(pools device.Pools) StateBaseAddress {
	return StateBaseAddress{
		General:         rangeOf(pools.General),
		Dynamic:         rangeOf(pools.Dynamic),
		Instruction:     rangeOf(pools.Instruction),
		Surface:         rangeOf(pools.Surface),
		BindlessSurface: rangeOf(pools.BindlessSurface),
	}
}

func rangeOf(p device.Pool) Range {
	if p == nil {
		return Range{}
	}

	addr, size := p.BaseAddress()

	return Range{Address: addr, Size: size}
}

func (s StateBaseAddress) String() string {
	return fmt.Sprintf(
		"general=%s dynamic=%s instruction=%s surface=%s bindless=%s",
		s.General, s.Dynamic, s.Instruction, s.Surface, s.BindlessSurface)
}
