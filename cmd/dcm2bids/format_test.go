package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcm2bids/internal/dicominfo"
)

func TestFormatResponse_UnsupportedFormat(t *testing.T) {
	_, err := FormatResponse(map[string]string{}, OutputFormat("xml"))
	assert.Error(t, err)
}

func TestFormatResponse_JSON(t *testing.T) {
	out, err := FormatResponse(&DoctorResponseCLI{Version: "2.1.9", Healthy: true, Checks: []DoctorCheck{}}, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"version\": \"2.1.9\",\n  \"healthy\": true,\n  \"checks\": []\n}", out)
}

func TestFormatResponse_TOML(t *testing.T) {
	out, err := FormatResponse(map[string]interface{}{"searchMethod": "fnmatch", "compKeys": []string{"SeriesNumber"}}, FormatTOML)
	require.NoError(t, err)
	assert.Contains(t, out, `searchMethod = "fnmatch"`)
	assert.Contains(t, out, `compKeys = ["SeriesNumber"]`)
}

func TestFormatDoctorHuman(t *testing.T) {
	out, err := FormatResponse(&DoctorResponseCLI{
		Version: "2.1.9",
		Checks: []DoctorCheck{
			{Name: "dcm2niix", Status: "fail", Message: "not found", SuggestedFixes: []string{"install it"}},
			{Name: "home", Status: "pass", Message: "/home/me/.dcm2bids"},
		},
	}, FormatHuman)
	require.NoError(t, err)

	assert.Contains(t, out, "✗ dcm2niix: not found")
	assert.Contains(t, out, "→ install it")
	assert.Contains(t, out, "✓ home")
	assert.Contains(t, out, "Some checks failed.")
}

func TestFormatInspectHuman(t *testing.T) {
	out, err := FormatResponse(&InspectResponseCLI{Dir: "dicom", Result: &dicominfo.Result{
		Series: []dicominfo.Series{
			{Number: "3", Description: "T1 mprage", Protocol: "t1_mprage_sag", Modality: "MR", Files: 176},
		},
		Skipped: 2,
	}}, FormatHuman)
	require.NoError(t, err)

	assert.Contains(t, out, "T1 mprage")
	assert.Contains(t, out, "176")
	assert.Contains(t, out, "1 series, 2 non-DICOM files skipped")
}

func TestFormatRunsHuman(t *testing.T) {
	out, err := FormatResponse(&RunsResponseCLI{
		Runs: []RunCLI{{ID: "0123456789abcdef", Participant: "sub-01", Status: "succeeded", StartedAt: "2024-05-06 07:08:09", Acquisitions: 4}},
		Files: []RunFileCLI{{Dst: "sub-01/anat/sub-01_T1w.json", Action: "write"}},
	}, FormatHuman)
	require.NoError(t, err)

	assert.Contains(t, out, "01234567  2024-05-06 07:08:09")
	assert.Contains(t, out, "sub-01     -")
	assert.Contains(t, out, "write  sub-01/anat/sub-01_T1w.json")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
