package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Manage the dead letter queue",
	Long:  `Inspect and retry jobs that have permanently failed after exceeding their retry limit.`,
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs in the dead letter queue",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"), viper.GetString("token"))

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		entries, err := client.ListDLQ(limit, offset)
		if err != nil {
			cmd.Printf("Error fetching DLQ: %s\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			if offset > 0 {
				cmd.Println("No more jobs found in DLQ.")
			} else {
				cmd.Println("No jobs found in DLQ.")
			}
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tATTEMPTS\tFAILED AT\tREASON")
		for _, e := range entries {
			reason := e.Reason
			if len(reason) > 50 {
				reason = reason[:47] + "..."
			}

			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				e.JobID,
				e.AttemptsMade,
				e.FailedAt.Format(time.RFC3339),
				reason,
			)
		}
		w.Flush()
	},
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry [job_id]",
	Short: "Retry a specific job from the dead letter queue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		client := NewJobClient(viper.GetString("url"), viper.GetString("token"))

		resp, err := client.RetryDLQ(jobID)
		if err != nil {
			cmd.Printf("Error retrying job: %s\n", err)
			os.Exit(1)
		}

		cmd.Printf("Job %s retried successfully.\n", jobID)
		cmd.Printf("  New job ID: %s\n", resp.NewJobID)
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRetryCmd)

	dlqListCmd.Flags().IntP("limit", "l", 20, "Number of items to fetch from the DLQ")
	dlqListCmd.Flags().IntP("offset", "o", 0, "Offset for pagination")
}
