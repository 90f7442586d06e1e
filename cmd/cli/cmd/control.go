package cmd

import (
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control [pause|resume]",
	Short: "Pause or resume dispatch for every agent",
	Long: `While dispatch is paused claims return no task and agents idle after
their next heartbeat. Tasks already running are not interrupted.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"pause", "resume"},
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := newClient().Control(cmd.Context(), args[0])
		if err != nil {
			printError(cmd, err)
			return
		}

		if resp.Paused {
			cmd.Printf("%s⏸  Dispatch paused%s\n", colorYellow, colorReset)
		} else {
			cmd.Printf("%s▶  Dispatch running%s\n", colorGreen, colorReset)
		}
	},
}

func init() {
	rootCmd.AddCommand(controlCmd)
}
