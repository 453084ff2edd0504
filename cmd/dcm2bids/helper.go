package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"dcm2bids/internal/config"
	"dcm2bids/internal/dcm2niix"
	"dcm2bids/internal/paths"
	"dcm2bids/internal/sidecar"
	"dcm2bids/internal/slogutil"
)

var (
	helperDicomDirs []string
	helperOutputDir string
	helperFormat    string
	helperReuse     bool
)

// helperKeys are the sidecar fields most often used in criteria.
var helperKeys = []string{"SeriesNumber", "SeriesDescription", "ProtocolName", "ImageType", "EchoTime", "RepetitionTime"}

var helperCmd = &cobra.Command{
	Use:   "helper",
	Short: "Run dcm2niix and list the sidecars to help write a config",
	Long: `Convert DICOM directories into <output_dir>/tmp_dcm2bids/helper and list the
produced sidecars with the fields commonly used as criteria.

Examples:
  dcm2bids helper -d sourcedata/01
  dcm2bids helper -d sourcedata/01a sourcedata/01b --format json`,
	Args: cobra.ArbitraryArgs,
	RunE: runHelper,
}

func init() {
	helperCmd.Flags().StringArrayVarP(&helperDicomDirs, "dicom_dir", "d", nil, "DICOM directory(ies); further directories may follow as arguments")
	helperCmd.Flags().StringVarP(&helperOutputDir, "output_dir", "o", ".", "Output BIDS directory")
	helperCmd.Flags().StringVar(&helperFormat, "format", "human", "Output format (json, human)")
	helperCmd.Flags().BoolVar(&helperReuse, "reuse", false, "Reuse a previous helper output instead of converting again")
	_ = helperCmd.MarkFlagRequired("dicom_dir")
	rootCmd.AddCommand(helperCmd)
}

// HelperSidecarCLI is one sidecar produced by the helper.
type HelperSidecarCLI struct {
	Filename string            `json:"filename"`
	Fields   map[string]string `json:"fields"`
}

// HelperResponseCLI is the output of the helper command.
type HelperResponseCLI struct {
	OutputDir string             `json:"outputDir"`
	Reused    bool               `json:"reused"`
	Sidecars  []HelperSidecarCLI `json:"sidecars"`
}

func runHelper(cmd *cobra.Command, args []string) error {
	dirs, err := dicomDirs(helperDicomDirs, args)
	if err != nil {
		return err
	}

	settings, err := loadSettings(settingsViper)
	if err != nil {
		return err
	}

	bidsDir, err := filepath.Abs(helperOutputDir)
	if err != nil {
		return err
	}

	logger := slogutil.NewLogger(cmd.ErrOrStderr(), slogutil.LevelFromString(settings.LogLevel))
	runner := dcm2niix.NewRunner(settings.Dcm2niixPath, config.DefaultDcm2niixOptions, logger)

	converted, err := runner.Run(cmd.Context(), dirs, paths.HelperDir(bidsDir), !helperReuse)
	if err != nil {
		return err
	}

	sidecars, err := sidecar.LoadAll(converted.OutputDir, logger)
	if err != nil {
		return err
	}
	sidecar.Sort(sidecars, config.DefaultCompKeys)

	resp := buildHelperResponse(converted, sidecars)
	output, err := FormatResponse(resp, OutputFormat(helperFormat))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
	return err
}

func buildHelperResponse(converted *dcm2niix.Result, sidecars []*sidecar.Sidecar) *HelperResponseCLI {
	resp := &HelperResponseCLI{
		OutputDir: converted.OutputDir,
		Reused:    converted.Reused,
		Sidecars:  make([]HelperSidecarCLI, 0, len(sidecars)),
	}
	for _, sc := range sidecars {
		fields := map[string]string{}
		for _, key := range helperKeys {
			if v, ok := sc.Field(key); ok {
				fields[key] = sidecar.FormatValue(v)
			}
		}
		resp.Sidecars = append(resp.Sidecars, HelperSidecarCLI{Filename: sc.Filename(), Fields: fields})
	}
	return resp
}
