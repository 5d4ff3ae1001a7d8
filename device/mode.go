package device

import (
	"fmt"
	"strings"
)

// Mode is the logical pipeline selected in hardware.
type Mode int

// Pipeline modes. ModeInvalid is the "unknown" state after a command buffer
// begins or after secondaries ran; the first switch from it is never a no-op.
const (
	ModeInvalid Mode = iota
	Mode3D
	ModeGPGPU
	ModeMedia

	// ModeAny is a wildcard used only as a table key.
	ModeAny Mode = -1
)

func (m Mode) String() string {
	switch m {
	case ModeInvalid:
		return "invalid"
	case Mode3D:
		return "3d"
	case ModeGPGPU:
		return "gpgpu"
	case ModeMedia:
		return "media"
	case ModeAny:
		return "any"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Matches returns true if the table key m applies to the actual mode.
func (m Mode) Matches(actual Mode) bool {
	return m == ModeAny || m == actual
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "3d", "render", "threed":
		return Mode3D, nil
	case "gpgpu", "compute":
		return ModeGPGPU, nil
	case "media", "video":
		return ModeMedia, nil
	case "invalid", "unknown":
		return ModeInvalid, nil
	case "any", "*", "":
		return ModeAny, nil
	default:
		return ModeInvalid, fmt.Errorf("unknown pipeline mode %q", s)
	}
}
