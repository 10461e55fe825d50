package cmd

import (
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue and job statistics",
	Long:  `Report the queue-wide bucket counts and job statistics snapshot for the cluster.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"), viper.GetString("token"))

		stats, err := client.GetQueueStats()
		if err != nil {
			cmd.Printf("Error fetching stats: %s\n", err)
			os.Exit(1)
		}

		cmd.Printf("%sQueue Counts%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sWaiting:%s    %d\n", colorDim, colorReset, stats.Waiting)
		cmd.Printf("%sActive:%s     %d\n", colorDim, colorReset, stats.Active)
		cmd.Printf("%sDelayed:%s    %d\n", colorDim, colorReset, stats.Delayed)
		cmd.Printf("%sCompleted:%s  %d\n", colorDim, colorReset, stats.Completed)
		cmd.Printf("%sFailed:%s     %d\n", colorDim, colorReset, stats.Failed)

		cmd.Println()
		cmd.Printf("%sJob Statistics%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sTotal jobs:%s     %d\n", colorDim, colorReset, stats.TotalJobs)
		cmd.Printf("%sDead lettered:%s  %d\n", colorDim, colorReset, stats.DeadLettered)
		if stats.AvgDurationMS != nil {
			cmd.Printf("%sAvg duration:%s   %.0fms\n", colorDim, colorReset, *stats.AvgDurationMS)
		} else {
			cmd.Printf("%sAvg duration:%s   -\n", colorDim, colorReset)
		}

		if len(stats.ByStatus) > 0 {
			cmd.Println()
			cmd.Printf("%sBy Status%s\n", colorBold, colorReset)
			cmd.Println("──────────────────────────────")

			statuses := make([]string, 0, len(stats.ByStatus))
			for status := range stats.ByStatus {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)
			for _, status := range statuses {
				cmd.Printf("  %s: %d\n", colorizeStatus(status), stats.ByStatus[status])
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
