package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/sarchlab/pipesync/monitoring"
	"github.com/sarchlab/pipesync/script"
	"github.com/spf13/cobra"
)

var (
	serveOpts replayOptions
	port      int
	open      bool
)

var serveCmd = &cobra.Command{
	Use: "serve <script.yaml>",
	Short: "Replay a script and keep its command buffers available for " +
		"inspection over HTTP.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := replayAndServe(cmd, serveOpts, args[0])
		if err != nil {
			return err
		}

		if open {
			err = browser.OpenURL(url)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "cannot open browser: %v\n", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop serving.")
		<-ctx.Done()

		return nil
	},
}

// replayAndServe replays the script and then starts the monitoring server.
// The handlers read the command buffers unlocked, so the server only starts
// once recording is over.
func replayAndServe(
	cmd *cobra.Command,
	opts replayOptions,
	path string,
) (string, error) {
	runner, closeRecorder, err := makeRunner(cmd, opts)
	if err != nil {
		return "", err
	}
	defer closeRecorder()

	s, err := script.Load(path)
	if err != nil {
		return "", err
	}

	m := monitoring.NewMonitor()
	if port != 0 {
		m = m.WithPortNumber(port)
	}

	_, err = runner.WithMonitor(m).Run(s)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "replay stopped: %v\n", err)
	}

	return m.StartServer(), nil
}

func init() {
	addReplayFlags(serveCmd, &serveOpts)
	serveCmd.Flags().IntVar(&port, "port", 0,
		"port of the monitoring server, random if not set")
	serveCmd.Flags().BoolVar(&open, "open", false,
		"open the monitor in a browser")

	rootCmd.AddCommand(serveCmd)
}
