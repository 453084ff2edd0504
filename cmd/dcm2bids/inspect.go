package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dcm2bids/internal/dicominfo"
	"dcm2bids/internal/slogutil"
)

var (
	inspectFormat  string
	inspectWorkers int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect DIR",
	Short: "List the DICOM series found in a directory",
	Long: `Read the header of every DICOM file under DIR and list the series with
their number, description and protocol, without running dcm2niix.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "human", "Output format (json, human)")
	inspectCmd.Flags().IntVar(&inspectWorkers, "workers", 0, "Files parsed in parallel (default: number of CPUs)")
	rootCmd.AddCommand(inspectCmd)
}

// InspectResponseCLI is the output of the inspect command.
type InspectResponseCLI struct {
	Dir string `json:"dir"`
	*dicominfo.Result
}

func runInspect(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(settingsViper)
	if err != nil {
		return err
	}
	logger := slogutil.NewLogger(cmd.ErrOrStderr(), slogutil.LevelFromString(settings.LogLevel))

	result, err := dicominfo.Inspect(cmd.Context(), args[0], dicominfo.Options{Workers: inspectWorkers}, logger)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", args[0], err)
	}

	output, err := FormatResponse(&InspectResponseCLI{Dir: args[0], Result: result}, OutputFormat(inspectFormat))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
	return err
}
