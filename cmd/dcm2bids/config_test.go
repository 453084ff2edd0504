package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outputCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestRunConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
descriptions:
  - dataType: anat
    modalityLabel: T1w
    criteria:
      SeriesDescription: "*T1*"
`), 0644))

	defer func(old string) { configFormat = old }(configFormat)

	configFormat = "json"
	cmd, buf := outputCommand()
	require.NoError(t, runConfigShow(cmd, []string{path}))
	assert.Contains(t, buf.String(), `"searchMethod": "fnmatch"`)
	assert.Contains(t, buf.String(), `"SeriesDescription": "*T1*"`)

	configFormat = "toml"
	cmd, buf = outputCommand()
	require.NoError(t, runConfigShow(cmd, []string{path}))
	assert.Contains(t, buf.String(), "[[descriptions]]")
	assert.Contains(t, buf.String(), `dcm2niixOptions = "-b y -ba y -z y -f '%3s_%f_%p_%t'"`)

	configFormat = "human"
	cmd, _ = outputCommand()
	assert.Error(t, runConfigShow(cmd, []string{path}))
}

func TestRunConfigShow_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"descriptions": []}`), 0644))

	cmd, _ := outputCommand()
	assert.Error(t, runConfigShow(cmd, []string{path}))
}

func TestRunConfigEnv(t *testing.T) {
	t.Setenv("DCM2BIDS_LOG_LEVEL", "DEBUG")

	cmd, buf := outputCommand()
	require.NoError(t, runConfigEnv(cmd, nil))

	assert.Contains(t, buf.String(), "DCM2BIDS_NO_UPDATE_CHECK")
	assert.Contains(t, buf.String(), "DCM2BIDS_LOG_LEVEL=DEBUG → logLevel")
	for env := range envDescriptions {
		assert.Contains(t, buf.String(), env)
	}
}
