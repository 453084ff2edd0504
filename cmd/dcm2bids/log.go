package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dcm2bids/internal/paths"
	"dcm2bids/internal/slogutil"
)

var (
	logLines     int
	logOutputDir string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the log of the latest run",
	Long: `Print the end of the newest run log in <output_dir>/tmp_dcm2bids/log.

Examples:
  dcm2bids log              # Show last 50 lines
  dcm2bids log -n 200 -o bids`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "Number of lines to show")
	logCmd.Flags().StringVarP(&logOutputDir, "output_dir", "o", ".", "Output BIDS directory")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	bidsDir, err := filepath.Abs(logOutputDir)
	if err != nil {
		return err
	}
	logDir := paths.LogDir(bidsDir)

	logPath, err := slogutil.NewestLog(logDir)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "No logs found.")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Log directory: %s\n", logDir)
		fmt.Fprintln(out, "A log file is created by every 'dcm2bids -d ... -p ... -c ...' run.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find log: %w", err)
	}

	lines, err := slogutil.TailLines(logPath, logLines)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "==> %s <==\n", logPath)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
