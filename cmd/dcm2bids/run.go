package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"dcm2bids/internal/config"
	"dcm2bids/internal/dcm2niix"
	dcmerrors "dcm2bids/internal/errors"
	"dcm2bids/internal/organize"
	"dcm2bids/internal/paths"
	"dcm2bids/internal/participant"
	"dcm2bids/internal/sidecar"
	"dcm2bids/internal/slogutil"
	"dcm2bids/internal/storage"
	"dcm2bids/internal/update"
	"dcm2bids/internal/version"
)

// errAcquisitionsFailed is returned once the failures were already logged.
var errAcquisitionsFailed = errors.New("some acquisitions could not be placed")

// convertOptions are the inputs of one conversion run.
type convertOptions struct {
	DicomDirs   []string
	Participant string
	Session     string
	ConfigPath  string
	OutputDir   string
	Settings    *config.Settings
	Console     io.Writer
}

// convertResult summarizes a conversion run.
type convertResult struct {
	RunID     string
	LogPath   string
	Sidecars  int
	Unpaired  int
	Ambiguous int
	Report    *organize.Report
}

func runConvert(cmd *cobra.Command, args []string) error {
	dirs, err := dicomDirs(runDicomDirs, args)
	if err != nil {
		return err
	}
	if len(dirs) == 0 || runParticipant == "" || runConfigPath == "" {
		return fmt.Errorf("--dicom_dir, --participant and --config are required")
	}

	settings, err := loadSettings(settingsViper)
	if err != nil {
		return err
	}

	_, err = convert(cmd.Context(), convertOptions{
		DicomDirs:   dirs,
		Participant: runParticipant,
		Session:     runSession,
		ConfigPath:  runConfigPath,
		OutputDir:   runOutputDir,
		Settings:    settings,
		Console:     cmd.ErrOrStderr(),
	})
	return err
}

// convert runs dcm2niix, pairs the sidecars and organizes the BIDS tree.
func convert(ctx context.Context, opts convertOptions) (*convertResult, error) {
	p := participant.New(opts.Participant, opts.Session)

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	bidsDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if _, err := paths.EnsureDir(bidsDir); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", bidsDir, err)
	}

	s := opts.Settings
	logger, runLog, err := slogutil.NewRunLogger(slogutil.RunLogOptions{
		Console:    opts.Console,
		Level:      slogutil.LevelFromString(s.LogLevel),
		JSON:       s.LogFormat == "json",
		Dir:        paths.LogDir(bidsDir),
		Prefix:     p.Prefix(),
		MaxSize:    s.LogMaxSize,
		MaxBackups: s.LogMaxBackups,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = runLog.Close() }()

	result := &convertResult{LogPath: runLog.Path}

	logger.Info("--- dcm2bids start ---")
	logger.Info("Running", "version", version.Version, "participant", p.String(), "config", cfg.Path, "output", bidsDir)

	dcm2niixVersion, err := dcm2niix.Version(ctx, s.Dcm2niixPath)
	if err != nil {
		logger.Warn("Could not read the dcm2niix version", "error", err.Error())
	} else {
		logger.Info("Using dcm2niix", "version", dcm2niixVersion)
	}
	updates := startUpdateChecks(ctx, s, dcm2niixVersion)

	runner := dcm2niix.NewRunner(s.Dcm2niixPath, cfg.Dcm2niixOptions, logger)
	converted, err := runner.Run(ctx, opts.DicomDirs, paths.Dcm2niixOutputDir(bidsDir, p.Prefix()), s.ForceDcm2niix)
	if err != nil {
		return result, err
	}

	sidecars, err := sidecar.LoadAll(converted.OutputDir, logger)
	if err != nil {
		return result, err
	}
	sidecar.Sort(sidecars, cfg.CompKeys)
	result.Sidecars = len(sidecars)

	parsed, err := sidecar.NewParser(p, cfg, logger).Build(sidecars)
	if err != nil {
		return result, err
	}
	result.Unpaired = len(parsed.Unpaired)
	result.Ambiguous = len(parsed.Ambiguous)

	if err := organize.EnsureBidsIgnore(bidsDir); err != nil {
		logger.Warn("Could not update .bidsignore", "error", err.Error())
	}

	db, err := storage.Open(paths.LedgerPath(bidsDir), logger)
	if err != nil {
		return result, err
	}
	defer func() { _ = db.Close() }()

	ledger := storage.NewLedger(db)
	runID, err := ledger.StartRun(&storage.Run{
		Participant: p.Name(),
		Session:     p.Session(),
		ConfigPath:  cfg.Path,
		OutputDir:   bidsDir,
		ToolVersion: version.Version,
	})
	if err != nil {
		return result, err
	}
	result.RunID = runID

	organizer := organize.New(organize.Options{
		BIDSDir:       bidsDir,
		Clobber:       s.Clobber,
		CompressNifti: cfg.CompressNifti,
		Version:       version.Version,
	}, ledger.Recorder(runID), logger)

	report, err := organizer.Organize(ctx, parsed.Acquisitions, len(cfg.Descriptions))
	result.Report = report

	acquisitions, failures := len(parsed.Acquisitions), 0
	if report != nil {
		failures = len(report.Failures)
	}
	if err != nil && failures == 0 {
		failures = 1
	}
	if finishErr := ledger.FinishRun(runID, acquisitions, failures); finishErr != nil {
		logger.Warn("Could not finish run in ledger", "run", runID, "error", finishErr.Error())
	}
	if err != nil {
		return result, err
	}

	reportUpdates(logger, updates)

	logger.Info("--- dcm2bids end ---",
		"sidecars", result.Sidecars,
		"acquisitions", report.Acquisitions,
		"moved", report.Moved,
		"skipped", report.Skipped,
		"unpaired", result.Unpaired,
		"ambiguous", result.Ambiguous,
		"log", runLog.Path,
	)

	if len(report.Failures) > 0 {
		for _, f := range report.Failures {
			logger.Error("Acquisition not placed", "acquisition", f.Acquisition, "code", string(dcmerrors.CodeOf(f.Err)), "error", f.Err.Error())
		}
		return result, errAcquisitionsFailed
	}
	return result, nil
}

// startUpdateChecks looks up newer releases of dcm2bids and, when its
// version is known, dcm2niix.
func startUpdateChecks(ctx context.Context, s *config.Settings, dcm2niixVersion string) []<-chan *update.UpdateInfo {
	if s.NoUpdateCheck || update.Disabled() {
		return nil
	}
	checks := []<-chan *update.UpdateInfo{update.NewDcm2bidsChecker().CheckAsync(ctx)}
	if dcm2niixVersion != "" {
		checks = append(checks, update.NewChecker(update.Dcm2niix, dcm2niixVersion).CheckAsync(ctx))
	}
	return checks
}

func reportUpdates(logger *slog.Logger, checks []<-chan *update.UpdateInfo) {
	for _, ch := range checks {
		if info := <-ch; info != nil {
			logger.Warn(info.String())
		}
	}
}
