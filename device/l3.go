package device

import (
	"fmt"
	"strings"
)

// L3Config is a partitioning of the shared last-level cache between the
// hardware clients. Sizes are in KiB.
type L3Config struct {
	Name string `yaml:"name" toml:"name"`
	SLM  int    `yaml:"slm" toml:"slm"`
	URB  int    `yaml:"urb" toml:"urb"`
	RO   int    `yaml:"ro" toml:"ro"`
	DC   int    `yaml:"dc" toml:"dc"`
	RW   int    `yaml:"rw" toml:"rw"`
	All  int    `yaml:"all" toml:"all"`
}

// Equal compares the partition sizes. The name is not part of the
// configuration.
func (c L3Config) Equal(other L3Config) bool {
	return c.SLM == other.SLM &&
		c.URB == other.URB &&
		c.RO == other.RO &&
		c.DC == other.DC &&
		c.RW == other.RW &&
		c.All == other.All
}

func (c L3Config) String() string {
	parts := []string{}

	add := func(name string, size int) {
		if size > 0 {
			parts = append(parts, fmt.Sprintf("%s=%dK", name, size))
		}
	}

	add("SLM", c.SLM)
	add("URB", c.URB)
	add("ALL", c.All)
	add("RO", c.RO)
	add("DC", c.DC)
	add("RW", c.RW)

	return strings.Join(parts, " ")
}
