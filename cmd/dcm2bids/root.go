package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dcm2bids/internal/config"
	"dcm2bids/internal/paths"
	"dcm2bids/internal/version"
)

var (
	runDicomDirs   []string
	runParticipant string
	runSession     string
	runConfigPath  string
	runOutputDir   string

	// settingsViper resolves runtime settings from flags, DCM2BIDS_*
	// variables and ~/.dcm2bids/settings.*.
	settingsViper = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "dcm2bids",
	Short: "Reorganize NIfTI files from dcm2niix into the Brain Imaging Data Structure",
	Long: `dcm2bids converts DICOM directories with dcm2niix, pairs every produced
sidecar with a description of the config file and moves the files of each
paired acquisition into a BIDS tree.

Examples:
  dcm2bids -d sourcedata/01 -p 01 -c config.json -o bids
  dcm2bids -d sourcedata/01a sourcedata/01b -p 01 -s 02 -c config.toml --clobber`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	RunE:          runConvert,
}

func init() {
	rootCmd.SetVersionTemplate("dcm2bids version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringP("log_level", "l", "INFO", "Set logging level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	pf.String("dcm2niix", "dcm2niix", "Path of the dcm2niix binary")
	_ = settingsViper.BindPFlag("logLevel", pf.Lookup("log_level"))
	_ = settingsViper.BindPFlag("dcm2niix", pf.Lookup("dcm2niix"))

	f := rootCmd.Flags()
	f.StringArrayVarP(&runDicomDirs, "dicom_dir", "d", nil, "DICOM directory(ies); further directories may follow as arguments")
	f.StringVarP(&runParticipant, "participant", "p", "", "Participant ID")
	f.StringVarP(&runSession, "session", "s", "", "Session ID")
	f.StringVarP(&runConfigPath, "config", "c", "", "Configuration file (.json, .toml or .yaml)")
	f.StringVarP(&runOutputDir, "output_dir", "o", ".", "Output BIDS directory")
	f.Bool("forceDcm2niix", false, "Overwrite previous temporary dcm2niix output if it exists")
	f.Bool("clobber", false, "Overwrite output if it exists")
	_ = settingsViper.BindPFlag("forceDcm2niix", f.Lookup("forceDcm2niix"))
	_ = settingsViper.BindPFlag("clobber", f.Lookup("clobber"))
}

// dicomDirs merges the -d values with the positional arguments following
// them, so that "-d A B" names both directories.
func dicomDirs(flagDirs, args []string) ([]string, error) {
	if len(flagDirs) == 0 && len(args) > 0 {
		return nil, fmt.Errorf("unexpected argument %q, DICOM directories are given with --dicom_dir", args[0])
	}
	dirs := make([]string, 0, len(flagDirs)+len(args))
	dirs = append(dirs, flagDirs...)
	return append(dirs, args...), nil
}

// loadSettings resolves the runtime settings of the current invocation.
func loadSettings(v *viper.Viper) (*config.Settings, error) {
	home, err := paths.GetHome()
	if err != nil {
		home = ""
	}
	s, err := config.LoadSettings(v, home)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}
