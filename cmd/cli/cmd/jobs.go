package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"taskplane/pkg/client"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Create jobs and follow their progress",
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create [csv_file]",
	Short: "Create a job from a CSV of recipients",
	Long: `Upload a CSV file with first_name and last_name columns. The controller
samples up to --total rows and creates one task per row.

Example:
  taskctl jobs create --site site-1 --price 10 --total 50 people.csv
  taskctl jobs create --site site-1 --price 30 --total 5 --random=false people.csv`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		site, _ := flags.GetString("site")
		price, _ := flags.GetInt("price")
		total, _ := flags.GetInt("total")
		random, _ := flags.GetBool("random")

		if site == "" {
			cmd.Println("Error: --site is required")
			return
		}
		if price <= 0 {
			cmd.Println("Error: --price is required")
			return
		}
		if total <= 0 {
			cmd.Println("Error: --total must be positive")
			return
		}

		f, err := os.Open(args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		defer f.Close()

		result, err := newClient().CreateJob(cmd.Context(), client.CreateJobParams{
			Site:         site,
			Price:        price,
			Total:        total,
			RandomSample: random,
			FileName:     filepath.Base(args[0]),
			CSV:          f,
		})
		if err != nil {
			printError(cmd, err)
			return
		}

		cmd.Printf("Job created successfully!\n")
		cmd.Printf("Job ID: %s\n", result.JobID)
		cmd.Printf("Tasks:  %d\n", result.TotalTasks)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show task counts for a job",
	Long:  `Show a job's task counts by status (pending, running, success, failed) and its remaining queue depth. With --watch the view refreshes until every task has finished.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		watch, _ := cmd.Flags().GetBool("watch")
		interval, _ := cmd.Flags().GetDuration("interval")
		c := newClient()

		for {
			status, err := c.JobStatus(cmd.Context(), args[0])
			if err != nil {
				printError(cmd, err)
				return
			}
			printJobStatus(cmd, *status)

			done := status.Stats.Total > 0 && status.Stats.Success+status.Stats.Failed == status.Stats.Total
			if !watch || done {
				return
			}
			if !sleep(cmd.Context(), interval) {
				return
			}
			cmd.Println()
		}
	},
}

func sleep(ctx context.Context, d time.Duration) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func init() {
	flags := jobsCreateCmd.Flags()
	flags.StringP("site", "s", "", "Site the tasks are for (required)")
	flags.IntP("price", "p", 0, "Product price, selects the product link (required)")
	flags.IntP("total", "n", 0, "Maximum number of tasks to create (required)")
	flags.Bool("random", true, "Sample rows at random instead of taking the first ones")

	jobsStatusCmd.Flags().BoolP("watch", "w", false, "Refresh until the job has finished")
	jobsStatusCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval for --watch")

	jobsCmd.AddCommand(jobsCreateCmd, jobsStatusCmd)
	rootCmd.AddCommand(jobsCmd)
}
