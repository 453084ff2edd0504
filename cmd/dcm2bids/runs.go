package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dcm2bids/internal/paths"
	"dcm2bids/internal/slogutil"
	"dcm2bids/internal/storage"
)

var (
	runsOutputDir string
	runsLimit     int
	runsFormat    string
)

var runsCmd = &cobra.Command{
	Use:   "runs [RUN_ID]",
	Short: "List the runs recorded in the output directory",
	Long: `List the conversion runs recorded in <output_dir>/tmp_dcm2bids/ledger.db,
newest first. With RUN_ID, also list the files that run placed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVarP(&runsOutputDir, "output_dir", "o", ".", "Output BIDS directory")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to show")
	runsCmd.Flags().StringVar(&runsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(runsCmd)
}

// RunCLI is one ledger run.
type RunCLI struct {
	ID           string `json:"id"`
	Participant  string `json:"participant"`
	Session      string `json:"session,omitempty"`
	Status       string `json:"status"`
	StartedAt    string `json:"startedAt"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	Acquisitions int    `json:"acquisitions"`
	Failures     int    `json:"failures"`
}

// RunFileCLI is one file placed by a run.
type RunFileCLI struct {
	Acquisition string `json:"acquisition"`
	Src         string `json:"src"`
	Dst         string `json:"dst"`
	Action      string `json:"action"`
}

// RunsResponseCLI is the output of the runs command.
type RunsResponseCLI struct {
	Ledger string       `json:"ledger"`
	Runs   []RunCLI     `json:"runs"`
	Files  []RunFileCLI `json:"files,omitempty"`
}

func runRuns(cmd *cobra.Command, args []string) error {
	bidsDir, err := filepath.Abs(runsOutputDir)
	if err != nil {
		return err
	}

	runID := ""
	if len(args) == 1 {
		runID = args[0]
	}

	resp, err := listRuns(paths.LedgerPath(bidsDir), runsLimit, runID)
	if err != nil {
		return err
	}

	output, err := FormatResponse(resp, OutputFormat(runsFormat))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
	return err
}

func listRuns(ledgerPath string, limit int, runID string) (*RunsResponseCLI, error) {
	resp := &RunsResponseCLI{Ledger: ledgerPath, Runs: []RunCLI{}}
	if _, err := os.Stat(ledgerPath); os.IsNotExist(err) {
		return resp, nil
	}

	db, err := storage.Open(ledgerPath, slogutil.NewDiscardLogger())
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	ledger := storage.NewLedger(db)

	runs, err := ledger.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if runID != "" && r.ID != runID {
			continue
		}
		rc := RunCLI{
			ID:           r.ID,
			Participant:  r.Participant,
			Session:      r.Session,
			Status:       r.Status,
			StartedAt:    r.StartedAt.Local().Format(time.DateTime),
			Acquisitions: r.Acquisitions,
			Failures:     r.Failures,
		}
		if r.FinishedAt != nil {
			rc.FinishedAt = r.FinishedAt.Local().Format(time.DateTime)
		}
		resp.Runs = append(resp.Runs, rc)
	}

	if runID == "" {
		return resp, nil
	}
	if len(resp.Runs) == 0 {
		return nil, fmt.Errorf("run %s not found in the last %d runs", runID, limit)
	}

	files, err := ledger.ListFiles(runID)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		resp.Files = append(resp.Files, RunFileCLI{Acquisition: f.Acquisition, Src: f.Src, Dst: f.Dst, Action: f.Action})
	}
	return resp, nil
}
