package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcm2bids/internal/config"
	"dcm2bids/internal/paths"
	"dcm2bids/internal/version"
)

func TestDiagnose_MissingDcm2niix(t *testing.T) {
	t.Setenv(paths.HomeEnvVar, t.TempDir())

	settings := config.DefaultSettings()
	settings.Dcm2niixPath = filepath.Join(t.TempDir(), "missing-dcm2niix")
	settings.NoUpdateCheck = true

	resp := diagnose(context.Background(), settings)
	assert.False(t, resp.Healthy)
	require.Len(t, resp.Checks, 3)
	assert.Equal(t, "fail", resp.Checks[0].Status)
	assert.NotEmpty(t, resp.Checks[0].SuggestedFixes)
	assert.Equal(t, "pass", resp.Checks[1].Status)
	assert.Equal(t, "update check disabled", resp.Checks[2].Message)
}

func TestDiagnose_Healthy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv(paths.HomeEnvVar, home)

	bin := filepath.Join(t.TempDir(), "dcm2niix")
	require.NoError(t, os.WriteFile(bin, []byte(fakeDcm2niix), 0755))

	settings := config.DefaultSettings()
	settings.Dcm2niixPath = bin
	settings.NoUpdateCheck = true

	resp := diagnose(context.Background(), settings)
	assert.True(t, resp.Healthy)
	assert.Equal(t, version.Info(), resp.Version)
	assert.Equal(t, bin+" v1.0.20230411", resp.Checks[0].Message)
	assert.Equal(t, home, resp.Checks[1].Message)
	assert.DirExists(t, home)
}
