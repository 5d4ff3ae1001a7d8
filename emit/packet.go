package emit

import (
	"fmt"

	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/flush"
)

// Kind is the type of a packet.
type Kind int

// Packet kinds.
const (
	KindBarrier Kind = iota
	KindModeSelect
	KindStateBaseAddress
	KindL3Config
	KindWorkaround
	KindSecondaryCall
	KindRegisterReload
)

var kindNames = map[Kind]string{
	KindBarrier:          "PIPE_CONTROL",
	KindModeSelect:       "PIPELINE_SELECT",
	KindStateBaseAddress: "STATE_BASE_ADDRESS",
	KindL3Config:         "L3_CONFIG",
	KindWorkaround:       "WORKAROUND",
	KindSecondaryCall:    "MI_BATCH_BUFFER_START",
	KindRegisterReload:   "MI_LOAD_REGISTER_MEM",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Dword sizes of the packets.
var kindDwords = map[Kind]int{
	KindBarrier:          6,
	KindModeSelect:       1,
	KindStateBaseAddress: 22,
	KindL3Config:         5,
	KindWorkaround:       4,
	KindSecondaryCall:    3,
	KindRegisterReload:   4,
}

// Packet is one command written into a Batch. Only the fields of its Kind
// are set.
type Packet struct {
	Kind             Kind              `json:"kind"`
	Dwords           int               `json:"dwords"`
	Barrier          *flush.Barrier    `json:"barrier,omitempty"`
	Mode             string            `json:"mode,omitempty"`
	StateBaseAddress *StateBaseAddress `json:"sba,omitempty"`
	L3Config         *device.L3Config  `json:"l3,omitempty"`
	Workaround       string            `json:"workaround,omitempty"`
	Secondary        string            `json:"secondary,omitempty"`
	Address          uint64            `json:"address,omitempty"`
}

func (p Packet) String() string {
	switch p.Kind {
	case KindBarrier:
		return fmt.Sprintf("%s %s", p.Kind, p.Barrier)
	case KindModeSelect:
		return fmt.Sprintf("%s %s", p.Kind, p.Mode)
	case KindStateBaseAddress:
		return fmt.Sprintf("%s %s", p.Kind, p.StateBaseAddress)
	case KindL3Config:
		return fmt.Sprintf("%s %s", p.Kind, p.L3Config)
	case KindWorkaround:
		return fmt.Sprintf("%s %s", p.Kind, p.Workaround)
	case KindSecondaryCall:
		return fmt.Sprintf("%s %s", p.Kind, p.Secondary)
	case KindRegisterReload:
		return fmt.Sprintf("%s 0x%x", p.Kind, p.Address)
	default:
		return p.Kind.String()
	}
}
