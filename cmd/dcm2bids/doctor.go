package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dcm2bids/internal/config"
	"dcm2bids/internal/dcm2niix"
	"dcm2bids/internal/paths"
	"dcm2bids/internal/update"
	"dcm2bids/internal/version"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the dcm2bids environment",
	Long: `Check that dcm2niix can be run, that the dcm2bids home directory is
writable and whether newer releases of dcm2bids or dcm2niix exist.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorCheck is the outcome of one diagnostic.
type DoctorCheck struct {
	Name           string   `json:"name"`
	Status         string   `json:"status"` // pass, warn, fail
	Message        string   `json:"message"`
	SuggestedFixes []string `json:"suggestedFixes,omitempty"`
}

// DoctorResponseCLI is the output of the doctor command.
type DoctorResponseCLI struct {
	Version string        `json:"version"`
	Healthy bool          `json:"healthy"`
	Checks  []DoctorCheck `json:"checks"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(settingsViper)
	if err != nil {
		return err
	}

	resp := diagnose(cmd.Context(), settings)

	output, err := FormatResponse(resp, OutputFormat(doctorFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)

	if !resp.Healthy {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func diagnose(ctx context.Context, settings *config.Settings) *DoctorResponseCLI {
	resp := &DoctorResponseCLI{Version: version.Info(), Healthy: true}

	dcm2niixVersion, dcm2niixCheck := checkDcm2niix(ctx, settings.Dcm2niixPath)
	resp.Checks = append(resp.Checks, dcm2niixCheck, checkHome())

	if settings.NoUpdateCheck || update.Disabled() {
		resp.Checks = append(resp.Checks, DoctorCheck{Name: "updates", Status: "pass", Message: "update check disabled"})
	} else {
		resp.Checks = append(resp.Checks, checkUpdate(ctx, update.NewDcm2bidsChecker()))
		if dcm2niixVersion != "" {
			resp.Checks = append(resp.Checks, checkUpdate(ctx, update.NewChecker(update.Dcm2niix, dcm2niixVersion)))
		}
	}

	for _, c := range resp.Checks {
		if c.Status == "fail" {
			resp.Healthy = false
		}
	}
	return resp
}

func checkDcm2niix(ctx context.Context, binary string) (string, DoctorCheck) {
	v, err := dcm2niix.Version(ctx, binary)
	if err != nil {
		return "", DoctorCheck{
			Name:    "dcm2niix",
			Status:  "fail",
			Message: err.Error(),
			SuggestedFixes: []string{
				"Install dcm2niix: https://github.com/rordenlab/dcm2niix#install",
				"Or point to it with --dcm2niix PATH or DCM2BIDS_DCM2NIIX",
			},
		}
	}
	return v, DoctorCheck{Name: "dcm2niix", Status: "pass", Message: binary + " " + v}
}

func checkHome() DoctorCheck {
	home, err := paths.GetHome()
	if err != nil {
		return DoctorCheck{Name: "home", Status: "warn", Message: err.Error()}
	}
	if _, err := paths.EnsureDir(home); err != nil {
		return DoctorCheck{
			Name:           "home",
			Status:         "warn",
			Message:        fmt.Sprintf("%s is not writable: %v", home, err),
			SuggestedFixes: []string{"Set " + paths.HomeEnvVar + " to a writable directory"},
		}
	}

	probe := filepath.Join(home, ".doctor")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return DoctorCheck{
			Name:           "home",
			Status:         "warn",
			Message:        fmt.Sprintf("%s is not writable: %v", home, err),
			SuggestedFixes: []string{"Set " + paths.HomeEnvVar + " to a writable directory"},
		}
	}
	_ = os.Remove(probe)
	return DoctorCheck{Name: "home", Status: "pass", Message: home}
}

func checkUpdate(ctx context.Context, checker *update.Checker) DoctorCheck {
	info := checker.Check(ctx)
	name := "updates"
	if info == nil {
		return DoctorCheck{Name: name, Status: "pass", Message: "no newer release found"}
	}
	return DoctorCheck{
		Name:           name,
		Status:         "warn",
		Message:        fmt.Sprintf("%s %s is available (running %s)", info.Tool, info.LatestVersion, info.CurrentVersion),
		SuggestedFixes: []string{info.ReleasesPage},
	}
}
