package script

import (
	"fmt"
	"log"

	"github.com/sarchlab/pipesync/cmdbuffer"
	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/emit"
	"github.com/sarchlab/pipesync/hooking"
	"github.com/sarchlab/pipesync/monitoring"
	"github.com/sarchlab/pipesync/pipebits"
)

// Result holds what a replay recorded.
type Result struct {
	Device  *device.Device
	Buffers []*cmdbuffer.CmdBuffer
	Batches map[string]*emit.Batch
}

// Packets returns the packet stream of the named buffer.
func (r *Result) Packets(name string) []emit.Packet {
	b, ok := r.Batches[name]
	if !ok {
		return nil
	}

	return b.Packets()
}

// Runner replays scripts.
type Runner struct {
	profiles   []*device.Profile
	deviceName string
	debug      device.Debug
	capacity   int
	logger     *log.Logger
	hooks      []hooking.Hook
	monitor    *monitoring.Monitor
}

// MakeRunner returns a Runner that uses the built-in profiles.
func MakeRunner() Runner {
	return Runner{
		profiles: device.BuiltinProfiles(),
	}
}

// WithProfiles sets the profiles that scripts can name.
func (r Runner) WithProfiles(profiles []*device.Profile) Runner {
	r.profiles = profiles
	return r
}

// WithDeviceName overrides the device named by the script.
func (r Runner) WithDeviceName(name string) Runner {
	r.deviceName = name
	return r
}

// WithDebug sets the debug switches of the replay device.
func (r Runner) WithDebug(d device.Debug) Runner {
	r.debug = d
	return r
}

// WithCapacity limits every buffer to the given number of dwords.
func (r Runner) WithCapacity(dwords int) Runner {
	r.capacity = dwords
	return r
}

// WithLogger sets the logger of the debug hooks.
func (r Runner) WithLogger(l *log.Logger) Runner {
	r.logger = l
	return r
}

// WithHook attaches a hook to every replayed buffer.
func (r Runner) WithHook(h hooking.Hook) Runner {
	r.hooks = append(r.hooks, h)
	return r
}

// WithMonitor registers the replayed buffers with a monitor and reports
// replay progress to it.
func (r Runner) WithMonitor(m *monitoring.Monitor) Runner {
	r.monitor = m
	return r
}

// Run replays the script. It stops at the first failing op.
func (r Runner) Run(s *Script) (*Result, error) {
	name := s.Device
	if r.deviceName != "" {
		name = r.deviceName
	}

	profile, err := device.FindProfile(r.profiles, name)
	if err != nil {
		return nil, err
	}

	d := device.MakeBuilder().
		WithProfile(profile).
		WithDebug(r.debug).
		Build(profile.Name)

	res := &Result{
		Device:  d,
		Batches: make(map[string]*emit.Batch),
	}

	var bar *monitoring.ProgressBar
	if r.monitor != nil {
		bar = r.monitor.CreateProgressBar("replay", uint64(s.NumOps()))
		defer r.monitor.CompleteProgressBar(bar)
	}

	built := map[string]*cmdbuffer.CmdBuffer{}

	for _, b := range s.Buffers {
		c, err := r.build(d, b, res)
		if err != nil {
			return res, err
		}

		for i, op := range b.Ops {
			if bar != nil {
				bar.Start(b.Name + ": " + op.Name)
			}

			err := runOp(c, op, built)
			if err != nil {
				return res, fmt.Errorf("buffer %s, op %d (%s): %w",
					b.Name, i, op.Name, err)
			}

			if bar != nil {
				bar.Finish()
			}
		}

		built[b.Name] = c
	}

	return res, nil
}

func (r Runner) build(
	d *device.Device,
	b Buffer,
	res *Result,
) (*cmdbuffer.CmdBuffer, error) {
	level := cmdbuffer.LevelPrimary

	if b.Level != "" {
		l, err := cmdbuffer.ParseLevel(b.Level)
		if err != nil {
			return nil, fmt.Errorf("buffer %s: %w", b.Name, err)
		}

		level = l
	}

	batch := emit.NewBatch(d, r.capacity)

	builder := cmdbuffer.MakeBuilder().
		WithDevice(d).
		WithEmitter(batch).
		WithLevel(level)
	if r.logger != nil {
		builder = builder.WithLogger(r.logger)
	}

	c := builder.Build(b.Name)
	for _, h := range r.hooks {
		c.AcceptHook(h)
	}

	if r.monitor != nil {
		r.monitor.RegisterCmdBuffer(c)
	}

	res.Buffers = append(res.Buffers, c)
	res.Batches[b.Name] = batch

	return c, nil
}

func runOp(
	c *cmdbuffer.CmdBuffer,
	op Op,
	built map[string]*cmdbuffer.CmdBuffer,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	switch op.Name {
	case "begin":
		return c.Begin()
	case "end":
		return c.End()
	case "add":
		return addBits(c, op)
	case "apply":
		return c.ApplyPendingFlushes()
	case "switch":
		mode, err := device.ParseMode(op.Mode)
		if err != nil {
			return err
		}

		return c.SwitchPipelineMode(mode)
	case "l3":
		cfg, ok := c.Device().L3(op.Preset)
		if !ok {
			return fmt.Errorf("unknown L3 configuration %q", op.Preset)
		}

		return c.ConfigureL3(*cfg)
	case "barrier":
		return barrier(c, op)
	case "draw":
		return c.PrepareDraw()
	case "dispatch":
		return c.PrepareDispatch()
	case "execute":
		return execute(c, op, built)
	case "grow":
		return grow(c.Device(), op.Pool)
	case "vb":
		c.SetVertexBinding(op.Index, op.Address, op.Size)
		return c.Err()
	case "vbused":
		c.MarkVertexBuffersUsed(op.Mask, op.Indexed)
		return c.Err()
	case "sba":
		return c.ReemitStateBaseAddress()
	case "depthflush":
		return c.EmitDepthStateFlush()
	}

	return fmt.Errorf("unknown op %q", op.Name)
}

func addBits(c *cmdbuffer.CmdBuffer, op Op) error {
	bits, err := pipebits.Parse(op.Bits)
	if err != nil {
		return err
	}

	reason := op.Reason
	if reason == "" {
		reason = "script"
	}

	c.AddPendingBits(bits, reason)

	return c.Err()
}

func barrier(c *cmdbuffer.CmdBuffer, op Op) error {
	src, err := pipebits.ParseAccess(op.Src)
	if err != nil {
		return err
	}

	dst, err := pipebits.ParseAccess(op.Dst)
	if err != nil {
		return err
	}

	reason := op.Reason
	if reason == "" {
		reason = "pipeline barrier"
	}

	c.PipelineBarrier(src, dst, reason)

	return c.Err()
}

func execute(
	c *cmdbuffer.CmdBuffer,
	op Op,
	built map[string]*cmdbuffer.CmdBuffer,
) error {
	secondaries := make([]*cmdbuffer.CmdBuffer, 0, len(op.Secondaries))

	for _, name := range op.Secondaries {
		s, ok := built[name]
		if !ok {
			return fmt.Errorf("secondary %s is not recorded before use", name)
		}

		secondaries = append(secondaries, s)
	}

	return c.ExecuteSecondary(secondaries...)
}

type growablePool interface {
	Grow(newSize uint64) bool
}

func grow(d *device.Device, name string) error {
	var pool device.Pool

	switch name {
	case "general":
		pool = d.Pools.General
	case "dynamic":
		pool = d.Pools.Dynamic
	case "instruction":
		pool = d.Pools.Instruction
	case "surface":
		pool = d.Pools.Surface
	case "bindless", "bindless_surface":
		pool = d.Pools.BindlessSurface
	default:
		return fmt.Errorf("unknown pool %q", name)
	}

	g, ok := pool.(growablePool)
	if !ok {
		return fmt.Errorf("pool %s cannot grow", name)
	}

	_, size := pool.BaseAddress()
	g.Grow(2 * size)

	return nil
}
