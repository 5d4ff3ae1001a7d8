package recording

import (
	"github.com/sarchlab/pipesync/emit"
	"github.com/sarchlab/pipesync/hooking"
	"github.com/sarchlab/pipesync/id"
)

// Table names used by BarrierRecorder.
const (
	TableBits     = "pipe_bits"
	TableBarriers = "barriers"
	TableSelects  = "pipeline_selects"
	TableSBA      = "state_base_addresses"
	TableL3       = "l3_configs"
)

// BitsEntry is a row of TableBits.
type BitsEntry struct {
	ID      string
	Buffer  string
	Bits    string
	Pending string
	Reason  string
}

// BarrierEntry is a row of TableBarriers.
type BarrierEntry struct {
	ID            string
	Buffer        string
	Mode          string
	Flush         string
	Invalidate    string
	Stall         string
	Emitted       string
	PostSyncValue uint64
	Reason        string
}

// SelectEntry is a row of TableSelects.
type SelectEntry struct {
	ID       string
	Buffer   string
	FromMode string
	ToMode   string
}

// SBAEntry is a row of TableSBA.
type SBAEntry struct {
	ID              string
	Buffer          string
	General         uint64
	Dynamic         uint64
	Instruction     uint64
	Surface         uint64
	BindlessSurface uint64
}

// L3Entry is a row of TableL3.
type L3Entry struct {
	ID     string
	Buffer string
	Config string
}

// BarrierRecorder is a hook that writes command buffer activity into a
// DataRecorder.
type BarrierRecorder struct {
	recorder DataRecorder
	ids      id.Generator
}

// NewBarrierRecorder creates the tables and returns the hook.
func NewBarrierRecorder(
	recorder DataRecorder,
	ids id.Generator,
) *BarrierRecorder {
	recorder.CreateTable(TableBits, BitsEntry{})
	recorder.CreateTable(TableBarriers, BarrierEntry{})
	recorder.CreateTable(TableSelects, SelectEntry{})
	recorder.CreateTable(TableSBA, SBAEntry{})
	recorder.CreateTable(TableL3, L3Entry{})

	return &BarrierRecorder{
		recorder: recorder,
		ids:      ids,
	}
}

// Func records the hook item.
func (r *BarrierRecorder) Func(ctx hooking.HookCtx) {
	buffer := ""
	if n, ok := ctx.Domain.(hooking.Named); ok {
		buffer = n.Name()
	}

	switch item := ctx.Item.(type) {
	case hooking.BitsAdded:
		r.recorder.InsertData(TableBits, BitsEntry{
			ID:      r.ids.Generate(),
			Buffer:  buffer,
			Bits:    text(item.Bits.MarshalText()),
			Pending: text(item.Pending.MarshalText()),
			Reason:  item.Reason,
		})
	case hooking.BarrierEmitted:
		r.recorder.InsertData(TableBarriers, BarrierEntry{
			ID:            r.ids.Generate(),
			Buffer:        buffer,
			Mode:          item.Mode.String(),
			Flush:         text(item.Barrier.Flush.MarshalText()),
			Invalidate:    text(item.Barrier.Invalidate.MarshalText()),
			Stall:         text(item.Barrier.Stall.MarshalText()),
			Emitted:       text(item.Emitted.MarshalText()),
			PostSyncValue: item.Barrier.PostSync.Value,
			Reason:        item.Reason,
		})
	case hooking.ModeSelected:
		r.recorder.InsertData(TableSelects, SelectEntry{
			ID:       r.ids.Generate(),
			Buffer:   buffer,
			FromMode: item.From.String(),
			ToMode:   item.To.String(),
		})
	case emit.StateBaseAddress:
		r.recorder.InsertData(TableSBA, SBAEntry{
			ID:              r.ids.Generate(),
			Buffer:          buffer,
			General:         item.General.Address,
			Dynamic:         item.Dynamic.Address,
			Instruction:     item.Instruction.Address,
			Surface:         item.Surface.Address,
			BindlessSurface: item.BindlessSurface.Address,
		})
	case hooking.L3Configured:
		r.recorder.InsertData(TableL3, L3Entry{
			ID:     r.ids.Generate(),
			Buffer: buffer,
			Config: item.To.String(),
		})
	}
}

func text(b []byte, _ error) string {
	return string(b)
}
