package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/pipebits"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the device profiles.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		profiles, err := loadProfiles()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tGEN\tL3\tDEFERRED IN GPGPU")

		for _, p := range profiles {
			l3 := "-"
			if cfg := p.DefaultL3(); cfg != nil {
				l3 = cfg.String()
			}

			deferred := p.Table.Deferred(device.ModeGPGPU)
			text := "-"
			if deferred != pipebits.None {
				text = deferred.String()
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				p.Name, p.Capabilities.Generation, l3, text)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
