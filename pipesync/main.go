// Command pipesync replays command-buffer scripts and shows the barriers
// they produce.
package main

import (
	"github.com/sarchlab/pipesync/pipesync/cmd"
	"github.com/tebeka/atexit"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
