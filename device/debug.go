package device

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadDebug.
const (
	EnvDebug       = "PIPESYNC_DEBUG"
	EnvAlwaysFlush = "PIPESYNC_ALWAYS_FLUSH"
)

// Debug holds the diagnostic switches of a device.
type Debug struct {
	// PipeControl logs every pending bit addition and every barrier.
	PipeControl bool

	// L3 logs L3 configuration transitions.
	L3 bool

	// AlwaysFlushCache makes every flush application flush and invalidate
	// everything.
	AlwaysFlushCache bool
}

// LoadDebug reads the debug switches from the environment, after loading
// the given .env files. Missing files are ignored; variables already set in
// the environment win over the files.
func LoadDebug(envFiles ...string) (Debug, error) {
	for _, f := range envFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Debug{}, err
		}
	}

	return ParseDebug(os.Getenv(EnvDebug), os.Getenv(EnvAlwaysFlush))
}

// ParseDebug parses a comma separated flag list such as "pc,l3" and an
// always-flush boolean.
func ParseDebug(flags string, alwaysFlush string) (Debug, error) {
	d := Debug{}

	for _, f := range strings.Split(flags, ",") {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "":
		case "pc", "pipe_control":
			d.PipeControl = true
		case "l3":
			d.L3 = true
		case "all":
			d.PipeControl = true
			d.L3 = true
		default:
			return Debug{}, errors.New("unknown debug flag " + f)
		}
	}

	if alwaysFlush != "" {
		v, err := strconv.ParseBool(alwaysFlush)
		if err != nil {
			return Debug{}, err
		}

		d.AlwaysFlushCache = v
	}

	return d, nil
}
