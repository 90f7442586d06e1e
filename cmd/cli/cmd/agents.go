package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect registered agents",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents and whether they are online",
	Run: func(cmd *cobra.Command, args []string) {
		alive, _ := cmd.Flags().GetBool("alive")

		resp, err := newClient().ListAgents(cmd.Context(), alive)
		if err != nil {
			printError(cmd, err)
			return
		}

		if resp.Paused {
			cmd.Printf("%s⏸  Dispatch is paused%s\n\n", colorYellow, colorReset)
		}
		if len(resp.Agents) == 0 {
			cmd.Println("No agents found.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "ID\tNAME\tSITES\tSTATUS\tONLINE\tLAST SEEN")
		for _, a := range resp.Agents {
			online := "no"
			if a.Online {
				online = "yes"
			}
			lastSeen := "-"
			if !a.LastSeen.IsZero() {
				lastSeen = relativeTime(a.LastSeen) + " ago"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, strings.Join(a.Sites, ","), a.Status, online, lastSeen)
		}
	},
}

func init() {
	agentsListCmd.Flags().Bool("alive", false, "Only show agents inside the liveness window")

	agentsCmd.AddCommand(agentsListCmd)
	rootCmd.AddCommand(agentsCmd)
}
