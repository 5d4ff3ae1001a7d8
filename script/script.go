// Package script replays command-buffer recordings described in YAML.
//
// A script names a device profile and lists the command buffers to record:
//
//	device: skl
//	buffers:
//	  - name: primary
//	    ops:
//	      - begin
//	      - add: {bits: rt_flush, reason: draw}
//	      - switch: gpgpu
//	      - end
package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script is a replay document.
type Script struct {
	Device  string   `yaml:"device"`
	Buffers []Buffer `yaml:"buffers"`
}

// Buffer is one command buffer of a script.
type Buffer struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
	Ops   []Op   `yaml:"ops"`
}

// Op is one recorded operation. An op is written either as a bare name,
// such as "begin", or as a single-key mapping from the name to its
// arguments.
type Op struct {
	Name string

	Bits   string
	Reason string

	Mode   string
	Preset string

	Src []string
	Dst []string

	Secondaries []string

	Pool string

	Index   int
	Address uint64
	Size    uint64

	Mask    uint32
	Indexed bool
}

type addArgs struct {
	Bits   string `yaml:"bits"`
	Reason string `yaml:"reason"`
}

type barrierArgs struct {
	Src    []string `yaml:"src"`
	Dst    []string `yaml:"dst"`
	Reason string   `yaml:"reason"`
}

type vbArgs struct {
	Index   int    `yaml:"index"`
	Address uint64 `yaml:"address"`
	Size    uint64 `yaml:"size"`
}

type vbUsedArgs struct {
	Mask    uint32 `yaml:"mask"`
	Indexed bool   `yaml:"indexed"`
}

var bareOps = map[string]bool{
	"begin":      true,
	"end":        true,
	"apply":      true,
	"draw":       true,
	"dispatch":   true,
	"sba":        true,
	"depthflush": true,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Op) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		o.Name = node.Value
		if !bareOps[o.Name] {
			return fmt.Errorf("line %d: op %q needs arguments or is unknown",
				node.Line, o.Name)
		}

		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: an op must have exactly one key",
				node.Line)
		}

		o.Name = node.Content[0].Value

		err := o.decodeArgs(node.Content[1])
		if err != nil {
			return fmt.Errorf("line %d: op %s: %w", node.Line, o.Name, err)
		}

		return nil
	}

	return fmt.Errorf("line %d: malformed op", node.Line)
}

func (o *Op) decodeArgs(arg *yaml.Node) error {
	switch o.Name {
	case "add":
		a := addArgs{}
		if err := arg.Decode(&a); err != nil {
			return err
		}

		o.Bits, o.Reason = a.Bits, a.Reason
	case "switch":
		return arg.Decode(&o.Mode)
	case "l3":
		return arg.Decode(&o.Preset)
	case "barrier":
		a := barrierArgs{}
		if err := arg.Decode(&a); err != nil {
			return err
		}

		o.Src, o.Dst, o.Reason = a.Src, a.Dst, a.Reason
	case "execute":
		return arg.Decode(&o.Secondaries)
	case "grow":
		return arg.Decode(&o.Pool)
	case "vb":
		a := vbArgs{}
		if err := arg.Decode(&a); err != nil {
			return err
		}

		o.Index, o.Address, o.Size = a.Index, a.Address, a.Size
	case "vbused":
		a := vbUsedArgs{}
		if err := arg.Decode(&a); err != nil {
			return err
		}

		o.Mask, o.Indexed = a.Mask, a.Indexed
	default:
		if bareOps[o.Name] {
			return nil
		}

		return fmt.Errorf("unknown op")
	}

	return nil
}

// NumOps returns the number of ops over all buffers.
func (s *Script) NumOps() int {
	n := 0
	for _, b := range s.Buffers {
		n += len(b.Ops)
	}

	return n
}

// Parse decodes a script.
func Parse(data []byte) (*Script, error) {
	s := &Script{}

	err := yaml.Unmarshal(data, s)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, b := range s.Buffers {
		if b.Name == "" {
			return nil, fmt.Errorf("buffer without a name")
		}

		if seen[b.Name] {
			return nil, fmt.Errorf("buffer %s is defined twice", b.Name)
		}

		seen[b.Name] = true
	}

	return s, nil
}

// Load reads and decodes a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}
