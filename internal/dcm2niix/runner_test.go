package dcm2niix

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcm2bids/internal/errors"
	"dcm2bids/internal/slogutil"
)

// fakeConverter writes one sidecar per DICOM directory, named after it, and
// appends its arguments to $FAKE_ARGS_FILE.
const fakeConverter = `#!/bin/sh
printf '%s\n' "$*" >> "$FAKE_ARGS_FILE"
out=""
while [ $# -gt 1 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
name=$(basename "$1")
echo '{"SeriesDescription": "'"$name"'"}' > "$out/$name.json"
echo "Conversion required 0.1 seconds"
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "dcm2niix")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func TestRun(t *testing.T) {
	bin := writeScript(t, fakeConverter)
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	t.Setenv("FAKE_ARGS_FILE", argsFile)

	out := filepath.Join(t.TempDir(), "tmp_dcm2bids", "sub-01")
	r := NewRunner(bin, "-b y -z y -f '%3s_%f_%p_%t'", slogutil.NewDiscardLogger())

	result, err := r.Run(context.Background(), []string{"/data/dicom/T1", "/data/dicom/rest"}, out, false)
	require.NoError(t, err)

	assert.False(t, result.Reused)
	assert.Equal(t, []string{filepath.Join(out, "T1.json"), filepath.Join(out, "rest.json")}, result.Sidecars)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(args)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "-b y -z y -f %3s_%f_%p_%t -o "+out+" /data/dicom/T1", lines[0])
}

func TestRun_ReusesPreviousOutput(t *testing.T) {
	bin := writeScript(t, "#!/bin/sh\nexit 1\n")
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "old.json"), []byte("{}"), 0644))

	r := NewRunner(bin, "", slogutil.NewDiscardLogger())
	result, err := r.Run(context.Background(), []string{"/data/dicom"}, out, false)
	require.NoError(t, err)

	assert.True(t, result.Reused)
	assert.Equal(t, []string{filepath.Join(out, "old.json")}, result.Sidecars)
}

func TestRun_ForceClearsOutput(t *testing.T) {
	bin := writeScript(t, fakeConverter)
	t.Setenv("FAKE_ARGS_FILE", filepath.Join(t.TempDir(), "args.txt"))

	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "old.json"), []byte("{}"), 0644))

	r := NewRunner(bin, "", slogutil.NewDiscardLogger())
	result, err := r.Run(context.Background(), []string{"/data/new"}, out, true)
	require.NoError(t, err)

	assert.False(t, result.Reused)
	assert.Equal(t, []string{filepath.Join(out, "new.json")}, result.Sidecars)
}

func TestRun_Failure(t *testing.T) {
	bin := writeScript(t, "#!/bin/sh\necho 'Error: no DICOM found' >&2\nexit 2\n")

	r := NewRunner(bin, "", slogutil.NewDiscardLogger())
	_, err := r.Run(context.Background(), []string{"/data/dicom"}, filepath.Join(t.TempDir(), "out"), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.Dcm2niixFailed))

	var de *errors.Dcm2bidsError
	require.ErrorAs(t, err, &de)
	details, ok := de.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details["output"], "no DICOM found")
}

func TestRun_NotFound(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "missing-dcm2niix"), "", slogutil.NewDiscardLogger())
	_, err := r.Run(context.Background(), []string{"/data/dicom"}, filepath.Join(t.TempDir(), "out"), false)
	assert.True(t, errors.HasCode(err, errors.Dcm2niixNotFound), "got %v", err)
}

func TestRun_BadOptions(t *testing.T) {
	r := NewRunner("dcm2niix", "-f 'unterminated", slogutil.NewDiscardLogger())
	_, err := r.Run(context.Background(), []string{"/data/dicom"}, filepath.Join(t.TempDir(), "out"), false)
	assert.True(t, errors.HasCode(err, errors.ConfigInvalid))
}

func TestVersion(t *testing.T) {
	bin := writeScript(t, "#!/bin/sh\necho \"Chris Rorden's dcm2niiX version v1.0.20230411  GCC12.2.0 x86-64 (64-bit Linux)\"\nexit 3\n")

	v, err := Version(context.Background(), bin)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.20230411", v)

	bin = writeScript(t, "#!/bin/sh\necho hello\n")
	_, err = Version(context.Background(), bin)
	assert.Error(t, err)

	_, err = Version(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.HasCode(err, errors.Dcm2niixNotFound))
}

func TestNewRunner_DefaultBinary(t *testing.T) {
	assert.Equal(t, DefaultBinary, NewRunner("", "", slogutil.NewDiscardLogger()).binary)
}
