package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcm2bids/internal/config"
	"dcm2bids/internal/paths"
	"dcm2bids/internal/storage"
	"dcm2bids/internal/testutil"
)

// fakeDcm2niix copies the files of the DICOM directory into the -o directory.
const fakeDcm2niix = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "Chris Rorden's dcm2niiX version v1.0.20230411"
  exit 0
fi
out=""
while [ $# -gt 1 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
cp "$1"/* "$out"/
`

const testConfig = `{
  "descriptions": [
    {"dataType": "anat", "modalityLabel": "T1w", "criteria": {"SeriesDescription": "*T1*"}},
    {"dataType": "func", "modalityLabel": "bold", "customLabels": "task-rest", "criteria": {"SeriesDescription": "rest*"}},
    {"dataType": "fmap", "modalityLabel": "epi", "customLabels": "dir-AP", "criteria": {"SeriesDescription": "fmap*"}, "intendedFor": %s}
  ]
}`

type fixture struct {
	dicomDir string
	bidsDir  string
	config   string
	settings *config.Settings
}

func newFixture(t *testing.T, intendedFor string) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	t.Setenv(paths.HomeEnvVar, t.TempDir())

	root := t.TempDir()
	f := &fixture{
		dicomDir: filepath.Join(root, "dicom"),
		bidsDir:  filepath.Join(root, "bids"),
		config:   filepath.Join(root, "config.json"),
	}
	require.NoError(t, os.MkdirAll(f.dicomDir, 0755))

	files := map[string]string{
		"003_T1.json":     `{"SeriesNumber": 3, "SeriesDescription": "mprage T1"}`,
		"003_T1.nii.gz":   "t1",
		"004_rest.json":   `{"SeriesNumber": 4, "SeriesDescription": "rest bold"}`,
		"004_rest.nii.gz": "rest 1",
		"005_rest.json":   `{"SeriesNumber": 5, "SeriesDescription": "rest bold"}`,
		"005_rest.nii.gz": "rest 2",
		"006_fmap.json":   `{"SeriesNumber": 6, "SeriesDescription": "fmap AP"}`,
		"006_fmap.nii.gz": "fmap",
		"007_loc.json":    `{"SeriesNumber": 7, "SeriesDescription": "localizer"}`,
		"007_loc.nii.gz":  "loc",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(f.dicomDir, name), []byte(content), 0644))
	}

	require.NoError(t, os.WriteFile(f.config, []byte(fmt.Sprintf(testConfig, intendedFor)), 0644))

	bin := filepath.Join(root, "dcm2niix")
	require.NoError(t, os.WriteFile(bin, []byte(fakeDcm2niix), 0755))

	f.settings = config.DefaultSettings()
	f.settings.Dcm2niixPath = bin
	f.settings.NoUpdateCheck = true
	return f
}

func (f *fixture) options(console *bytes.Buffer) convertOptions {
	return convertOptions{
		DicomDirs:   []string{f.dicomDir},
		Participant: "01",
		Session:     "01",
		ConfigPath:  f.config,
		OutputDir:   f.bidsDir,
		Settings:    f.settings,
		Console:     console,
	}
}

func TestConvert(t *testing.T) {
	f := newFixture(t, "1")
	var console bytes.Buffer

	result, err := convert(context.Background(), f.options(&console))
	require.NoError(t, err, console.String())

	assert.Equal(t, 5, result.Sidecars)
	assert.Equal(t, 1, result.Unpaired)
	assert.Equal(t, 0, result.Ambiguous)
	assert.Equal(t, 4, result.Report.Acquisitions)
	assert.Equal(t, 8, result.Report.Moved)
	assert.FileExists(t, result.LogPath)

	session := filepath.Join(f.bidsDir, "sub-01", "ses-01")
	assert.FileExists(t, filepath.Join(session, "anat", "sub-01_ses-01_T1w.nii.gz"))
	assert.FileExists(t, filepath.Join(session, "func", "sub-01_ses-01_task-rest_run-01_bold.nii.gz"))
	assert.FileExists(t, filepath.Join(session, "func", "sub-01_ses-01_task-rest_run-02_bold.json"))
	assert.FileExists(t, filepath.Join(f.bidsDir, ".bidsignore"))

	raw, err := os.ReadFile(filepath.Join(session, "fmap", "sub-01_ses-01_dir-AP_epi.json"))
	require.NoError(t, err)
	var fmap map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fmap))
	assert.Equal(t, []interface{}{
		"ses-01/func/sub-01_ses-01_task-rest_run-01_bold.nii.gz",
		"ses-01/func/sub-01_ses-01_task-rest_run-02_bold.nii.gz",
	}, fmap["IntendedFor"])

	// the localizer matched nothing and stays in the temporary tree
	assert.FileExists(t, filepath.Join(paths.Dcm2niixOutputDir(f.bidsDir, "sub-01_ses-01"), "007_loc.nii.gz"))
	assert.Contains(t, console.String(), "--- dcm2bids end ---")

	resp, err := listRuns(paths.LedgerPath(f.bidsDir), 10, result.RunID)
	require.NoError(t, err)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, storage.RunStatusSucceeded, resp.Runs[0].Status)
	assert.Equal(t, 4, resp.Runs[0].Acquisitions)
	assert.Len(t, resp.Files, 8)
}

func TestConvertGolden(t *testing.T) {
	f := newFixture(t, "[1]")

	_, err := convert(context.Background(), f.options(&bytes.Buffer{}))
	require.NoError(t, err)

	got := testutil.SnapshotTree(t, f.bidsDir, paths.TmpDirName)
	testutil.CompareGolden(t, filepath.Join("testdata", "convert.golden.json"), got)
}

func TestConvert_RerunSkipsExisting(t *testing.T) {
	f := newFixture(t, "1")
	var console bytes.Buffer

	_, err := convert(context.Background(), f.options(&console))
	require.NoError(t, err)

	// dcm2niix runs again and every destination already exists
	f.settings.ForceDcm2niix = true
	result, err := convert(context.Background(), f.options(&console))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Report.Moved)
	assert.Equal(t, 8, result.Report.Skipped)

	resp, err := listRuns(paths.LedgerPath(f.bidsDir), 0, "")
	require.NoError(t, err)
	assert.Len(t, resp.Runs, 2)
}

func TestConvert_FailedAcquisition(t *testing.T) {
	f := newFixture(t, "5")
	var console bytes.Buffer

	result, err := convert(context.Background(), f.options(&console))
	assert.ErrorIs(t, err, errAcquisitionsFailed)
	require.NotNil(t, result.Report)
	assert.Len(t, result.Report.Failures, 1)
	assert.Contains(t, console.String(), "INTENDED_FOR_OUT_OF_RANGE")

	resp, err := listRuns(paths.LedgerPath(f.bidsDir), 10, "")
	require.NoError(t, err)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, storage.RunStatusFailed, resp.Runs[0].Status)
}

func TestConvert_MissingConfig(t *testing.T) {
	f := newFixture(t, "1")
	opts := f.options(&bytes.Buffer{})
	opts.ConfigPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := convert(context.Background(), opts)
	assert.Error(t, err)
	assert.NoDirExists(t, f.bidsDir)
}

func TestListRuns_NoLedger(t *testing.T) {
	resp, err := listRuns(filepath.Join(t.TempDir(), "ledger.db"), 10, "")
	require.NoError(t, err)
	assert.Empty(t, resp.Runs)

	out, err := FormatResponse(resp, FormatHuman)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}

func TestDicomDirs(t *testing.T) {
	dirs, err := dicomDirs([]string{"a"}, []string{"b", "c,d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c,d"}, dirs)

	dirs, err = dicomDirs(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, dirs)

	_, err = dicomDirs(nil, []string{"b"})
	assert.Error(t, err)
}

func TestRootCommand_SeveralDicomDirs(t *testing.T) {
	f := newFixture(t, "1")
	t.Setenv("DCM2BIDS_NO_UPDATE_CHECK", "true")

	second := filepath.Join(filepath.Dir(f.dicomDir), "dicom,rest")
	require.NoError(t, os.MkdirAll(second, 0755))
	for _, name := range []string{"004_rest.json", "004_rest.nii.gz", "005_rest.json", "005_rest.nii.gz"} {
		require.NoError(t, os.Rename(filepath.Join(f.dicomDir, name), filepath.Join(second, name)))
	}

	var console bytes.Buffer
	rootCmd.SetErr(&console)
	rootCmd.SetArgs([]string{
		"-d", f.dicomDir, second,
		"-p", "01", "-s", "01",
		"-c", f.config,
		"-o", f.bidsDir,
		"--dcm2niix", f.settings.Dcm2niixPath,
	})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		runDicomDirs, runParticipant, runSession, runConfigPath, runOutputDir = nil, "", "", "", "."
	})

	require.NoError(t, rootCmd.Execute(), console.String())

	session := filepath.Join(f.bidsDir, "sub-01", "ses-01")
	assert.FileExists(t, filepath.Join(session, "anat", "sub-01_ses-01_T1w.nii.gz"))
	assert.FileExists(t, filepath.Join(session, "func", "sub-01_ses-01_task-rest_run-01_bold.nii.gz"))
	assert.FileExists(t, filepath.Join(session, "func", "sub-01_ses-01_task-rest_run-02_bold.nii.gz"))
	assert.FileExists(t, filepath.Join(session, "fmap", "sub-01_ses-01_dir-AP_epi.json"))
}
