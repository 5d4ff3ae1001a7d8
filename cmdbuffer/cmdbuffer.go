// Package cmdbuffer tracks the cache coherency obligations of a command
// buffer while it is recorded. Callers add pending pipe bits as they record
// work, and the command buffer resolves them into barriers before every
// operation that needs a coherent view of memory.
package cmdbuffer

import (
	"fmt"
	"log"

	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/emit"
	"github.com/sarchlab/pipesync/flush"
	"github.com/sarchlab/pipesync/hooking"
	"github.com/sarchlab/pipesync/pipebits"
)

// Status is the recording state of a command buffer.
type Status int

// Command buffer statuses.
const (
	StatusInitial Status = iota
	StatusRecording
	StatusExecutable
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusRecording:
		return "recording"
	case StatusExecutable:
		return "executable"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Level tells whether a command buffer is submitted directly or called from
// another command buffer.
type Level int

// Command buffer levels.
const (
	LevelPrimary Level = iota
	LevelSecondary
)

func (l Level) String() string {
	if l == LevelSecondary {
		return "secondary"
	}

	return "primary"
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "primary":
		return LevelPrimary, nil
	case "secondary":
		return LevelSecondary, nil
	default:
		return LevelPrimary, fmt.Errorf("unknown command buffer level %q", s)
	}
}

// A CmdBuffer owns the pending pipe bits, the selected pipeline mode and the
// L3 configuration of one command stream. It is not safe for concurrent use.
type CmdBuffer struct {
	hooking.HookableBase

	name     string
	level    Level
	device   *device.Device
	resolver *flush.Resolver
	emitter  emit.Emitter

	status  Status
	err     error
	pending pipebits.Bits
	reasons []string
	mode    device.Mode
	l3      *device.L3Config

	poolEpochs []uint64
	vb         vbCacheTracker
	syncSeqNo  uint64
}

// Name returns the name of the command buffer.
func (c *CmdBuffer) Name() string {
	return c.name
}

// Level returns the level of the command buffer.
func (c *CmdBuffer) Level() Level {
	return c.level
}

// Device returns the device the command buffer records for.
func (c *CmdBuffer) Device() *device.Device {
	return c.device
}

// Emitter returns the emitter that receives the packets.
func (c *CmdBuffer) Emitter() emit.Emitter {
	return c.emitter
}

// Status returns the recording state.
func (c *CmdBuffer) Status() Status {
	return c.status
}

// Err returns the error that invalidated the command buffer, if any.
func (c *CmdBuffer) Err() error {
	return c.err
}

// PendingBits returns the bits that have not been resolved yet.
func (c *CmdBuffer) PendingBits() pipebits.Bits {
	return c.pending
}

// Mode returns the currently selected pipeline mode.
func (c *CmdBuffer) Mode() device.Mode {
	return c.mode
}

// L3Config returns the current L3 configuration, or nil if it is unknown.
func (c *CmdBuffer) L3Config() *device.L3Config {
	if c.l3 == nil {
		return nil
	}

	cfg := *c.l3

	return &cfg
}

// SyncSeqNo returns the value written by the latest post-sync operation.
func (c *CmdBuffer) SyncSeqNo() uint64 {
	return c.syncSeqNo
}

func (c *CmdBuffer) quirks() device.Quirks {
	if c.device.Table == nil {
		return device.Quirks{}
	}

	return c.device.Table.Quirks
}

func (c *CmdBuffer) mustBeRecording() {
	if c.status != StatusRecording {
		log.Panicf("command buffer %s is not recording, status %s",
			c.name, c.status)
	}
}

// fail records an emitter error. The command buffer becomes invalid and
// every later operation returns the same error.
func (c *CmdBuffer) fail(err error, what string) error {
	c.err = fmt.Errorf("%s: %s: %w", c.name, what, err)
	c.status = StatusInvalid

	return c.err
}
