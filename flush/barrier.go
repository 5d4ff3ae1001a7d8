// Package flush resolves pending pipe bits into an ordered list of hardware
// barriers.
package flush

import (
	"fmt"
	"strings"

	"github.com/sarchlab/pipesync/pipebits"
)

// PostSyncOp is the operation a barrier performs after it completes.
type PostSyncOp int

// Post-sync operations.
const (
	PostSyncNone PostSyncOp = iota
	PostSyncWriteImmediate
)

func (op PostSyncOp) String() string {
	switch op {
	case PostSyncNone:
		return "none"
	case PostSyncWriteImmediate:
		return "write_imm"
	default:
		return fmt.Sprintf("PostSyncOp(%d)", int(op))
	}
}

// PostSync describes the write performed when a barrier completes.
type PostSync struct {
	Op      PostSyncOp
	Address uint64
	Value   uint64
}

// Barrier is one pipe control operation. Stall carries the stall family bits
// and EndOfPipeSync.
type Barrier struct {
	Flush      pipebits.Bits
	Invalidate pipebits.Bits
	Stall      pipebits.Bits
	PostSync   PostSync

	// RegisterReload reloads a register from the post-sync address after
	// the barrier.
	RegisterReload bool

	// DisableIndirectStatePointers tells the hardware to ignore push
	// constant pointers saved in the context.
	DisableIndirectStatePointers bool
}

// Bits returns every pipe bit carried by the barrier.
func (b Barrier) Bits() pipebits.Bits {
	return b.Flush | b.Invalidate | b.Stall
}

// IsEmpty returns true if the barrier would have no effect.
func (b Barrier) IsEmpty() bool {
	return b.Bits() == 0 &&
		b.PostSync.Op == PostSyncNone &&
		!b.DisableIndirectStatePointers
}

func (b Barrier) String() string {
	var sb strings.Builder

	sb.WriteString(b.Bits().String())

	if b.PostSync.Op != PostSyncNone {
		fmt.Fprintf(&sb, " post_sync=%s@0x%x:%d",
			b.PostSync.Op, b.PostSync.Address, b.PostSync.Value)
	}

	if b.RegisterReload {
		sb.WriteString(" reload")
	}

	if b.DisableIndirectStatePointers {
		sb.WriteString(" disable_isp")
	}

	return sb.String()
}

// Plan is an ordered list of barriers.
type Plan []Barrier

// Bits returns the union of the bits of every barrier in the plan.
func (p Plan) Bits() pipebits.Bits {
	var bits pipebits.Bits
	for _, b := range p {
		bits |= b.Bits()
	}

	return bits
}

func (p Plan) String() string {
	if len(p) == 0 {
		return "[]"
	}

	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = "{" + b.String() + "}"
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
