package device

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/sarchlab/pipesync/pipebits"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// ProfileFile is the on-disk form of a set of device profiles.
type ProfileFile struct {
	Profiles []ProfileSpec `yaml:"profiles" toml:"profiles"`
}

// ProfileSpec describes one device in a profile file. Bits and modes are
// written by name.
type ProfileSpec struct {
	Name       string     `yaml:"name" toml:"name"`
	Generation int        `yaml:"generation" toml:"generation"`
	Caps       CapsSpec   `yaml:"caps" toml:"caps"`
	Quirks     Quirks     `yaml:"quirks" toml:"quirks"`
	Remap      []RuleSpec `yaml:"remap" toml:"remap"`
	Defer      []RuleSpec `yaml:"defer" toml:"defer"`
	ModeSwitch []RuleSpec `yaml:"mode_switch" toml:"mode_switch"`
	L3         []L3Config `yaml:"l3" toml:"l3"`
}

// CapsSpec is the file form of Capabilities.
type CapsSpec struct {
	AuxTable               bool   `yaml:"aux_table" toml:"aux_table"`
	IndirectUnroll         bool   `yaml:"indirect_unroll" toml:"indirect_unroll"`
	IndirectUBOsUseSampler bool   `yaml:"indirect_ubos_use_sampler" toml:"indirect_ubos_use_sampler"`
	Relocations            bool   `yaml:"relocations" toml:"relocations"`
	WorkaroundAddress      uint64 `yaml:"workaround_address" toml:"workaround_address"`
}

// RuleSpec is the file form of remap, deferral and bracket rules.
type RuleSpec struct {
	Mode string   `yaml:"mode" toml:"mode"`
	From string   `yaml:"from" toml:"from"`
	To   string   `yaml:"to" toml:"to"`
	When []string `yaml:"when" toml:"when"`
	Bits []string `yaml:"bits" toml:"bits"`
}

// Profile is a parsed device description.
type Profile struct {
	Name         string
	Capabilities Capabilities
	Table        FlushTable
	L3Configs    []L3Config
}

// DefaultL3 returns the first L3 configuration of the profile.
func (p *Profile) DefaultL3() *L3Config {
	if len(p.L3Configs) == 0 {
		return nil
	}

	cfg := p.L3Configs[0]

	return &cfg
}

// L3 returns the L3 configuration with the given name.
func (p *Profile) L3(name string) (*L3Config, bool) {
	for i := range p.L3Configs {
		if p.L3Configs[i].Name == name {
			cfg := p.L3Configs[i]
			return &cfg, true
		}
	}

	return nil, false
}

// ParseProfiles decodes profile data. The format is picked from the file
// extension: ".toml" is TOML, anything else is YAML.
func ParseProfiles(filename string, data []byte) ([]*Profile, error) {
	file := ProfileFile{}

	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		err = yaml.Unmarshal(data, &file)
	}

	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filename, err)
	}

	profiles := make([]*Profile, 0, len(file.Profiles))

	for _, spec := range file.Profiles {
		p, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", spec.Name, err)
		}

		profiles = append(profiles, p)
	}

	return profiles, nil
}

// LoadProfiles reads profiles from a YAML or TOML file.
func LoadProfiles(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseProfiles(path, data)
}

// BuiltinProfiles returns the profiles shipped with the package.
func BuiltinProfiles() []*Profile {
	profiles, err := ParseProfiles("profiles.yaml", builtinProfiles)
	if err != nil {
		panic(err)
	}

	return profiles
}

// BuiltinProfile returns the shipped profile with the given name.
func BuiltinProfile(name string) (*Profile, error) {
	return FindProfile(BuiltinProfiles(), name)
}

// FindProfile looks a profile up by name.
func FindProfile(profiles []*Profile, name string) (*Profile, error) {
	names := make([]string, 0, len(profiles))

	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}

		names = append(names, p.Name)
	}

	sort.Strings(names)

	return nil, fmt.Errorf("unknown device profile %q, known: %s",
		name, strings.Join(names, ", "))
}

func (s ProfileSpec) build() (*Profile, error) {
	p := &Profile{
		Name: s.Name,
		Capabilities: Capabilities{
			Generation:             Generation(s.Generation),
			HasAuxTable:            s.Caps.AuxTable,
			HasIndirectUnroll:      s.Caps.IndirectUnroll,
			IndirectUBOsUseSampler: s.Caps.IndirectUBOsUseSampler,
			UsesRelocations:        s.Caps.Relocations,
			WorkaroundAddress:      s.Caps.WorkaroundAddress,
		},
		Table:     FlushTable{Quirks: s.Quirks},
		L3Configs: s.L3,
	}

	for _, r := range s.Remap {
		mode, when, bits, err := r.parse()
		if err != nil {
			return nil, err
		}

		p.Table.Remaps = append(p.Table.Remaps,
			RemapRule{Mode: mode, When: when, Add: bits})
	}

	for _, r := range s.Defer {
		mode, _, bits, err := r.parse()
		if err != nil {
			return nil, err
		}

		p.Table.Deferrals = append(p.Table.Deferrals,
			Deferral{Mode: mode, Bits: bits})
	}

	for _, r := range s.ModeSwitch {
		from, err := ParseMode(r.From)
		if err != nil {
			return nil, err
		}

		to, err := ParseMode(r.To)
		if err != nil {
			return nil, err
		}

		bits, err := pipebits.ParseNames(r.Bits)
		if err != nil {
			return nil, err
		}

		p.Table.Brackets = append(p.Table.Brackets,
			Bracket{From: from, To: to, Bits: bits})
	}

	return p, nil
}

func (r RuleSpec) parse() (Mode, pipebits.Bits, pipebits.Bits, error) {
	mode, err := ParseMode(r.Mode)
	if err != nil {
		return ModeInvalid, 0, 0, err
	}

	when, err := pipebits.ParseNames(r.When)
	if err != nil {
		return ModeInvalid, 0, 0, err
	}

	bits, err := pipebits.ParseNames(r.Bits)
	if err != nil {
		return ModeInvalid, 0, 0, err
	}

	return mode, when, bits, nil
}
