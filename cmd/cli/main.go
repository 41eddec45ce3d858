package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tasktracker",
	Short: "TaskTracker command line client",
	Long: `Talks to a running TaskTracker API (auth, tasks, dashboard) and
manages its Postgres schema directly (db migrate, seed, reset).

Environment Variables:
  TASKTRACKER_API    API endpoint (default: http://localhost:8080/api)
  DATABASE_URL, DB_* database settings for the db commands`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(authCmd(), tasksCmd(), dashboardCmd(), dbCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
