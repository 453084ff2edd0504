package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcm2bids/internal/dcm2niix"
	"dcm2bids/internal/sidecar"
)

func TestBuildHelperResponse(t *testing.T) {
	sidecars := []*sidecar.Sidecar{
		sidecar.New("/tmp/helper/003_T1.json", map[string]interface{}{
			"SeriesNumber":      float64(3),
			"SeriesDescription": "T1 mprage",
			"ImageType":         []interface{}{"ORIGINAL", "PRIMARY"},
			"Manufacturer":      "Siemens",
		}),
	}

	resp := buildHelperResponse(&dcm2niix.Result{OutputDir: "/tmp/helper", Reused: true}, sidecars)
	require.Len(t, resp.Sidecars, 1)
	assert.Equal(t, "003_T1.json", resp.Sidecars[0].Filename)
	assert.Equal(t, "3", resp.Sidecars[0].Fields["SeriesNumber"])
	assert.Equal(t, "T1 mprage", resp.Sidecars[0].Fields["SeriesDescription"])
	assert.NotContains(t, resp.Sidecars[0].Fields, "Manufacturer")

	out, err := FormatResponse(resp, FormatHuman)
	require.NoError(t, err)
	assert.Contains(t, out, "reused previous dcm2niix output")
	assert.Contains(t, out, "SeriesDescription: T1 mprage")
}
