package cmdbuffer

import (
	"log"
	"os"

	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/emit"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/hooking"
)

// Builder can build command buffers.
type Builder struct {
	device  *device.Device
	emitter emit.Emitter
	level   Level
	logger  *log.Logger
}

// MakeBuilder returns a Builder for primary command buffers.
func MakeBuilder() Builder {
	return Builder{
		level: LevelPrimary,
	}
}

// WithDevice sets the device the command buffer records for.
func (b Builder) WithDevice(d *device.Device) Builder {
	b.device = d
	return b
}

// WithEmitter sets the emitter. By default, an unlimited emit.Batch is used.
func (b Builder) WithEmitter(e emit.Emitter) Builder {
	b.emitter = e
	return b
}

// WithLevel sets the level of the command buffer.
func (b Builder) WithLevel(l Level) Builder {
	b.level = l
	return b
}

// WithLogger sets the logger used by the debug hooks. By default, the hooks
// write to stderr.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a command buffer. Debug hooks are attached according to the
// debug switches of the device.
func (b Builder) Build(name string) *CmdBuffer {
	if b.device == nil {
		panic("command buffer needs a device")
	}

	c := &CmdBuffer{
		name:     name,
		level:    b.level,
		device:   b.device,
		resolver: flush.NewResolver(b.device),
		emitter:  b.emitter,
		status:   StatusInitial,
		mode:     device.ModeInvalid,
	}

	if c.emitter == nil {
		c.emitter = emit.NewBatch(b.device, 0)
	}

	logger := b.logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	if b.device.Debug.PipeControl {
		c.AcceptHook(hooking.NewPipeControlLogger(logger))
	}

	if b.device.Debug.L3 {
		c.AcceptHook(hooking.NewL3Logger(logger))
	}

	return c
}
