package device

import "fmt"

// Generation identifies a hardware generation, in tenths (75 is 7.5).
type Generation int

// Known generations.
const (
	Gen7   Generation = 70
	Gen75  Generation = 75
	Gen8   Generation = 80
	Gen9   Generation = 90
	Gen11  Generation = 110
	Gen12  Generation = 120
	Gen125 Generation = 125
)

func (g Generation) String() string {
	if g%10 == 0 {
		return fmt.Sprintf("gen%d", g/10)
	}

	return fmt.Sprintf("gen%d.%d", g/10, g%10)
}

// Capabilities are the read-only properties of a device that parameterize
// the flush protocol.
type Capabilities struct {
	Generation             Generation
	HasAuxTable            bool
	HasIndirectUnroll      bool
	IndirectUBOsUseSampler bool
	UsesRelocations        bool

	// WorkaroundAddress is the scratch location that end-of-pipe sync
	// post-sync writes target.
	WorkaroundAddress uint64
}
