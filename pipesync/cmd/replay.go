package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/muesli/termenv"
	"github.com/sarchlab/pipesync/emit"
	"github.com/sarchlab/pipesync/id"
	"github.com/sarchlab/pipesync/recording"
	"github.com/sarchlab/pipesync/script"
	"github.com/spf13/cobra"
)

type replayOptions struct {
	profile  string
	record   string
	capacity int
	color    bool
	json     bool
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Replay a script and print the command streams.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, closeRecorder, err := makeRunner(cmd, replayOpts)
		if err != nil {
			return err
		}
		defer closeRecorder()

		s, err := script.Load(args[0])
		if err != nil {
			return err
		}

		res, runErr := runner.Run(s)
		if res != nil {
			err = printResult(cmd.OutOrStdout(), res, replayOpts)
			if err != nil {
				return err
			}
		}

		return runErr
	},
}

func init() {
	addReplayFlags(replayCmd, &replayOpts)
	replayCmd.Flags().BoolVar(&replayOpts.color, "color", true,
		"color the packet dump")
	replayCmd.Flags().BoolVar(&replayOpts.json, "json", false,
		"print the packets as JSON")

	rootCmd.AddCommand(replayCmd)
}

func addReplayFlags(c *cobra.Command, opts *replayOptions) {
	c.Flags().StringVar(&opts.profile, "profile", "",
		"device profile, overriding the one named by the script")
	c.Flags().StringVar(&opts.record, "record", "",
		"record the emitted barriers into an SQLite file")
	c.Flags().IntVar(&opts.capacity, "capacity", 0,
		"command buffer size in dwords, 0 for unlimited")
}

func makeRunner(
	cmd *cobra.Command,
	opts replayOptions,
) (script.Runner, func(), error) {
	profiles, err := loadProfiles()
	if err != nil {
		return script.Runner{}, nil, err
	}

	runner := script.MakeRunner().
		WithProfiles(profiles).
		WithDeviceName(opts.profile).
		WithDebug(debug).
		WithCapacity(opts.capacity).
		WithLogger(log.New(cmd.ErrOrStderr(), "", 0))

	if opts.record == "" {
		return runner, func() {}, nil
	}

	recorder := recording.New(opts.record)
	runner = runner.WithHook(
		recording.NewBarrierRecorder(recorder, id.NewIDGenerator()))

	return runner, func() {
		err := recorder.Close()
		if err != nil {
			log.Printf("closing recording: %v", err)
		}
	}, nil
}

func printResult(w io.Writer, res *script.Result, opts replayOptions) error {
	if opts.json {
		return printJSON(w, res)
	}

	profile := termenv.Ascii
	if opts.color {
		profile = termenv.ANSI
	}

	out := termenv.NewOutput(w, termenv.WithProfile(profile))

	for _, c := range res.Buffers {
		header := fmt.Sprintf("%s (%s, %s)", c.Name(), c.Level(), c.Status())
		fmt.Fprintln(out, out.String(header).Bold())

		for _, p := range res.Packets(c.Name()) {
			fmt.Fprintf(out, "  %s\n", colorPacket(out, p))
		}

		if c.Err() != nil {
			fmt.Fprintf(out, "  %s\n",
				out.String("error: "+c.Err().Error()).Foreground(out.Color("1")))
		}
	}

	return nil
}

func colorPacket(out *termenv.Output, p emit.Packet) termenv.Style {
	s := out.String(p.String())

	switch p.Kind {
	case emit.KindBarrier:
		return s.Foreground(out.Color("3"))
	case emit.KindModeSelect:
		return s.Foreground(out.Color("6"))
	case emit.KindStateBaseAddress:
		return s.Foreground(out.Color("5"))
	case emit.KindL3Config:
		return s.Foreground(out.Color("2"))
	case emit.KindSecondaryCall:
		return s.Foreground(out.Color("4"))
	}

	return s
}

type bufferDump struct {
	Name    string        `json:"name"`
	Level   string        `json:"level"`
	Status  string        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Packets []emit.Packet `json:"packets"`
}

func printJSON(w io.Writer, res *script.Result) error {
	dumps := make([]bufferDump, 0, len(res.Buffers))

	for _, c := range res.Buffers {
		d := bufferDump{
			Name:    c.Name(),
			Level:   c.Level().String(),
			Status:  c.Status().String(),
			Packets: res.Packets(c.Name()),
		}

		if c.Err() != nil {
			d.Error = c.Err().Error()
		}

		dumps = append(dumps, d)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(dumps)
}
