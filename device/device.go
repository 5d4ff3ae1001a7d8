// Package device describes the GPU that command buffers are built for: its
// capabilities, its flush table, its state pools and its debug switches.
package device

// Device is the process-wide context shared by all command buffers built for
// one GPU. It is created once and passed by reference.
type Device struct {
	Name         string
	Capabilities Capabilities
	Table        *FlushTable
	DefaultL3    *L3Config
	L3Configs    []L3Config
	Pools        Pools
	Debug        Debug
}

// L3 returns the named L3 configuration of the device.
func (d *Device) L3(name string) (*L3Config, bool) {
	for i := range d.L3Configs {
		if d.L3Configs[i].Name == name {
			cfg := d.L3Configs[i]
			return &cfg, true
		}
	}

	return nil, false
}

// Builder can build devices.
type Builder struct {
	profile *Profile
	pools   *Pools
	debug   Debug
}

// MakeBuilder returns a Builder with the gen9 profile.
func MakeBuilder() Builder {
	p, err := BuiltinProfile("skl")
	if err != nil {
		panic(err)
	}

	return Builder{profile: p}
}

// WithProfile sets the device profile.
func (b Builder) WithProfile(p *Profile) Builder {
	b.profile = p
	return b
}

// WithPools sets the state pools. By default, DefaultPools is used.
func (b Builder) WithPools(pools Pools) Builder {
	b.pools = &pools
	return b
}

// WithDebug sets the debug switches.
func (b Builder) WithDebug(d Debug) Builder {
	b.debug = d
	return b
}

// Build creates the device.
func (b Builder) Build(name string) *Device {
	table := b.profile.Table

	d := &Device{
		Name:         name,
		Capabilities: b.profile.Capabilities,
		Table:        &table,
		DefaultL3:    b.profile.DefaultL3(),
		L3Configs:    append([]L3Config(nil), b.profile.L3Configs...),
		Debug:        b.debug,
	}

	if b.pools != nil {
		d.Pools = *b.pools
	} else {
		d.Pools = DefaultPools(d.Capabilities.UsesRelocations)
	}

	return d
}
