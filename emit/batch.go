package emit

import (
	"errors"
	"strings"

	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/pipebits"
)

// ErrOutOfSpace is returned when a packet does not fit into a Batch.
var ErrOutOfSpace = errors.New("command buffer out of space")

// Batch is an Emitter that records packets in memory. It applies the
// substitutions the hardware requires and enforces a capacity in dwords.
type Batch struct {
	table    *device.FlushTable
	quirks   device.Quirks
	mode     device.Mode
	capacity int
	used     int
	packets  []Packet
	err      error
}

// NewBatch creates a Batch for a device. A capacity of 0 means unlimited.
func NewBatch(d *device.Device, capacity int) *Batch {
	b := &Batch{capacity: capacity}

	if d != nil && d.Table != nil {
		b.table = d.Table
		b.quirks = d.Table.Quirks
	}

	return b
}

// Packets returns the recorded packets.
func (b *Batch) Packets() []Packet {
	return b.packets
}

// Used returns the number of dwords written.
func (b *Batch) Used() int {
	return b.used
}

// Err returns the error that stopped the batch, if any.
func (b *Batch) Err() error {
	return b.err
}

// Reset drops all packets and the sticky error.
func (b *Batch) Reset() {
	b.packets = nil
	b.used = 0
	b.err = nil
	b.mode = device.ModeInvalid
}

func (b *Batch) String() string {
	var sb strings.Builder

	for _, p := range b.packets {
		sb.WriteString(p.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}

func (b *Batch) write(p Packet) error {
	if b.err != nil {
		return b.err
	}

	p.Dwords = kindDwords[p.Kind]

	if b.capacity > 0 && b.used+p.Dwords > b.capacity {
		b.err = ErrOutOfSpace
		return b.err
	}

	b.used += p.Dwords
	b.packets = append(b.packets, p)

	return nil
}

// EmitBarrier writes a pipe control, and a register reload after it when
// the barrier asks for one.
func (b *Batch) EmitBarrier(barrier flush.Barrier) (pipebits.Bits, error) {
	barrier = b.substitute(barrier)

	err := b.write(Packet{Kind: KindBarrier, Barrier: &barrier})
	if err != nil {
		return pipebits.None, err
	}

	if barrier.RegisterReload {
		err = b.write(Packet{
			Kind:    KindRegisterReload,
			Address: barrier.PostSync.Address,
		})
		if err != nil {
			return pipebits.None, err
		}
	}

	return barrier.Bits(), nil
}

func (b *Batch) substitute(barrier flush.Barrier) flush.Barrier {
	if b.quirks.HDCFlushAsDataCacheFlush &&
		barrier.Flush.Has(pipebits.HDCPipelineFlush) {
		barrier.Flush = barrier.Flush.Clear(pipebits.HDCPipelineFlush) |
			pipebits.DataCacheFlush
	}

	// A CS stall needs one of these in the same pipe control.
	companions := barrier.Flush.HasAny(pipebits.RenderTargetCacheFlush|
		pipebits.DepthCacheFlush|pipebits.DataCacheFlush) ||
		barrier.Stall.HasAny(pipebits.StallAtScoreboard|pipebits.DepthStall) ||
		barrier.PostSync.Op != flush.PostSyncNone

	scoreboard := !b.table.Deferred(b.mode).Has(pipebits.StallAtScoreboard)

	if barrier.Stall.Has(pipebits.CSStall) && !companions && scoreboard {
		barrier.Stall |= pipebits.StallAtScoreboard
	}

	return barrier
}

// EmitModeSelect writes a pipeline select.
func (b *Batch) EmitModeSelect(mode device.Mode) error {
	if err := b.write(Packet{Kind: KindModeSelect, Mode: mode.String()}); err != nil {
		return err
	}

	b.mode = mode

	return nil
}

// EmitStateBaseAddress writes the state base address packet.
func (b *Batch) EmitStateBaseAddress(sba StateBaseAddress) error {
	return b.write(Packet{Kind: KindStateBaseAddress, StateBaseAddress: &sba})
}

// EmitL3Config writes the L3 configuration registers.
func (b *Batch) EmitL3Config(cfg device.L3Config) error {
	return b.write(Packet{Kind: KindL3Config, L3Config: &cfg})
}

// EmitWorkaround writes a workaround sequence.
func (b *Batch) EmitWorkaround(wa device.Workaround) error {
	return b.write(Packet{Kind: KindWorkaround, Workaround: wa.String()})
}

// EmitSecondaryCall writes a jump into a secondary.
func (b *Batch) EmitSecondaryCall(id string) error {
	if err := b.write(Packet{Kind: KindSecondaryCall, Secondary: id}); err != nil {
		return err
	}

	b.mode = device.ModeInvalid

	return nil
}
