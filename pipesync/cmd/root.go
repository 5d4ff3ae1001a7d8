// Package cmd provides the command-line interface for pipesync.
package cmd

import (
	"github.com/sarchlab/pipesync/device"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	envFile      string
	profilesFile string
	debug        device.Debug
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "pipesync",
	Short: "pipesync replays command buffer scripts and prints the " +
		"barriers they emit.",
	Long: `pipesync replays command buffer scripts against a device ` +
		`profile and prints the resulting command stream. Debug output is ` +
		`controlled by PIPESYNC_DEBUG and PIPESYNC_ALWAYS_FLUSH, which can ` +
		`also be set in a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		d, err := device.LoadDebug(envFile)
		if err != nil {
			return err
		}

		debug = d

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env",
		"file to load debug variables from")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles-file", "",
		"YAML or TOML file with device profiles, instead of the built-in ones")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}

func loadProfiles() ([]*device.Profile, error) {
	if profilesFile == "" {
		return device.BuiltinProfiles(), nil
	}

	return device.LoadProfiles(profilesFile)
}
