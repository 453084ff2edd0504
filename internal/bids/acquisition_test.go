package bids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcm2bids/internal/errors"
)

type fakeParticipant struct {
	prefix    string
	directory string
	session   string
}

func (p fakeParticipant) Prefix() string    { return p.prefix }
func (p fakeParticipant) Directory() string { return p.directory }
func (p fakeParticipant) Session() string   { return p.session }

type fakeSidecar struct {
	data map[string]interface{}
	root string
}

func (s *fakeSidecar) Data() map[string]interface{} { return s.data }
func (s *fakeSidecar) Root() string                 { return s.root }

var sub01ses02 = fakeParticipant{prefix: "sub-01_ses-02", directory: "sub-01/ses-02", session: "ses-02"}

func intPtr(i int) *int { return &i }

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"\t\n", ""},
		{"T1w", "_T1w"},
		{"_T1w", "_T1w"},
		{"task-rest", "_task-rest"},
		{"_task-rest_run-01", "_task-rest_run-01"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, Separator))
		})
	}

	assert.Equal(t, "-x", Normalize("x", "-"))
}

func TestNewAcquisition_NormalizesLabels(t *testing.T) {
	acq := NewAcquisition(AcquisitionParams{
		Participant:   sub01ses02,
		DataType:      "anat",
		ModalityLabel: "T1w",
		CustomLabels:  "  ",
	})

	assert.Equal(t, "_T1w", acq.ModalityLabel())
	assert.Equal(t, "", acq.CustomLabels())
	assert.False(t, acq.IntendedFor().Requested())
	assert.NotNil(t, acq.SidecarChanges())
	_, ok := acq.IndexSidecar()
	assert.False(t, ok)
}

func TestNewAcquisition_OwnsSidecarChanges(t *testing.T) {
	changes := map[string]interface{}{"TaskName": "rest"}
	a := NewAcquisition(AcquisitionParams{Participant: sub01ses02, DataType: "func", ModalityLabel: "bold", SidecarChanges: changes})
	b := NewAcquisition(AcquisitionParams{Participant: sub01ses02, DataType: "func", ModalityLabel: "bold"})

	changes["TaskName"] = "motor"
	a.SidecarChanges()["EchoTime"] = 0.05

	assert.Equal(t, "rest", a.SidecarChanges()["TaskName"])
	assert.Empty(t, b.SidecarChanges())
	assert.NotContains(t, changes, "EchoTime")
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		name     string
		custom   string
		modality string
		want     string
	}{
		{name: "modality only", custom: "", modality: "T1w", want: "_T1w"},
		{name: "custom and modality", custom: "task-rest", modality: "bold", want: "_task-rest_bold"},
		{name: "prefixed inputs", custom: "_acq-highres", modality: "_T2w", want: "_acq-highres_T2w"},
		{name: "no modality", custom: "dir-AP", modality: "", want: "_dir-AP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := NewAcquisition(AcquisitionParams{
				Participant:   sub01ses02,
				DataType:      "func",
				ModalityLabel: tt.modality,
				CustomLabels:  tt.custom,
			})
			assert.Equal(t, tt.want, acq.Suffix())
		})
	}
}

func TestSetDstFile(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		custom   string
		modality string
		order    EntityOrder
		want     string
	}{
		{
			name:     "canonical order",
			prefix:   "sub-01_ses-02",
			custom:   "task-rest",
			modality: "bold",
			order:    EntityOrder{"sub", "ses", "task"},
			want:     "sub-01_ses-02_task-rest_bold",
		},
		{
			name:     "non canonical entity kept before suffix",
			prefix:   "sub-01_foo-bar",
			modality: "T1w",
			order:    EntityOrder{"sub"},
			want:     "sub-01_foo-bar_T1w",
		},
		{
			name:     "entities reordered",
			prefix:   "sub-01_ses-02",
			custom:   "run-01_acq-highres",
			modality: "T1w",
			order:    EntityTableV170,
			want:     "sub-01_ses-02_acq-highres_run-01_T1w",
		},
		{
			name:     "later key overwrites earlier value",
			prefix:   "sub-01",
			custom:   "run-01_run-02",
			modality: "bold",
			order:    EntityTableV170,
			want:     "sub-01_run-02_bold",
		},
		{
			name:     "hyphenated value is a suffix token",
			prefix:   "sub-01",
			custom:   "acq-mp-rage",
			modality: "T1w",
			order:    EntityTableV170,
			want:     "sub-01_acq-mp-rage_T1w",
		},
		{
			name:     "empty half is a suffix token",
			prefix:   "sub-01",
			custom:   "echo-",
			modality: "bold",
			order:    EntityTableV170,
			want:     "sub-01_echo-_bold",
		},
		{
			name:     "leftovers keep first seen order",
			prefix:   "sub-01",
			custom:   "zzz-1_aaa-2_task-rest",
			modality: "bold",
			order:    EntityTableV170,
			want:     "sub-01_task-rest_zzz-1_aaa-2_bold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := NewAcquisition(AcquisitionParams{
				Participant:   fakeParticipant{prefix: tt.prefix},
				DataType:      "func",
				ModalityLabel: tt.modality,
				CustomLabels:  tt.custom,
			})
			acq.SetDstFile(tt.order)

			got, err := acq.DstFile()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestinationPaths(t *testing.T) {
	acq := NewAcquisition(AcquisitionParams{
		Participant:   sub01ses02,
		DataType:      "fmap",
		ModalityLabel: "epi",
		CustomLabels:  "dir-AP",
	})

	_, err := acq.DestinationRoot()
	assert.True(t, errors.HasCode(err, errors.DestinationNotComputed))
	_, err = acq.DestinationForIntendedFor()
	assert.True(t, errors.HasCode(err, errors.DestinationNotComputed))

	acq.SetDstFile(EntityTableV170)

	root, err := acq.DestinationRoot()
	require.NoError(t, err)
	assert.Equal(t, "sub-01/ses-02/fmap/sub-01_ses-02_dir-AP_epi", root)

	intended, err := acq.DestinationForIntendedFor()
	require.NoError(t, err)
	assert.Equal(t, "ses-02/fmap/sub-01_ses-02_dir-AP_epi", intended)
}

func TestDestinationForIntendedFor_NoSession(t *testing.T) {
	acq := NewAcquisition(AcquisitionParams{
		Participant:   fakeParticipant{prefix: "sub-01", directory: "sub-01"},
		DataType:      "func",
		ModalityLabel: "bold",
		CustomLabels:  "task-rest",
	})
	acq.SetDstFile(EntityTableV170)

	intended, err := acq.DestinationForIntendedFor()
	require.NoError(t, err)
	assert.Equal(t, "func/sub-01_task-rest_bold", intended)
}

func TestEqual(t *testing.T) {
	base := AcquisitionParams{
		Participant:   sub01ses02,
		DataType:      "func",
		ModalityLabel: "bold",
		CustomLabels:  "task-rest",
	}
	a := NewAcquisition(base)

	other := base
	other.SidecarChanges = map[string]interface{}{"TaskName": "rest"}
	other.IntendedFor = IntendedForIndices(0, 1)
	other.SrcSidecar = &fakeSidecar{root: "/tmp/003"}
	other.ModalityLabel = "_bold"
	b := NewAcquisition(other)

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))

	different := base
	different.CustomLabels = "task-motor"
	assert.False(t, a.Equal(NewAcquisition(different)))

	otherParticipant := base
	otherParticipant.Participant = fakeParticipant{prefix: "sub-02", directory: "sub-02"}
	assert.False(t, a.Equal(NewAcquisition(otherParticipant)))

	assert.False(t, a.Equal(nil))
}

func TestWithCustomLabels(t *testing.T) {
	acq := NewAcquisition(AcquisitionParams{
		Participant:    sub01ses02,
		DataType:       "func",
		ModalityLabel:  "bold",
		CustomLabels:   "task-rest",
		SidecarChanges: map[string]interface{}{"TaskName": "rest"},
		IntendedFor:    IntendedForIndices(2),
		IndexSidecar:   intPtr(3),
	})
	acq.SetDstFile(EntityTableV170)

	run := acq.WithCustomLabels(acq.CustomLabels() + "_run-01")

	assert.Equal(t, "_task-rest_run-01", run.CustomLabels())
	assert.Equal(t, "_task-rest", acq.CustomLabels())
	assert.Equal(t, []int{2}, run.IntendedFor().Indices())
	idx, ok := run.IndexSidecar()
	assert.True(t, ok)
	assert.Equal(t, 3, idx)
	_, err := run.DstFile()
	assert.Error(t, err)
}

func TestSrcRoot(t *testing.T) {
	acq := NewAcquisition(AcquisitionParams{Participant: sub01ses02, DataType: "anat", ModalityLabel: "T1w"})
	assert.Equal(t, "", acq.SrcRoot())

	acq = NewAcquisition(AcquisitionParams{
		Participant:   sub01ses02,
		DataType:      "anat",
		ModalityLabel: "T1w",
		SrcSidecar:    &fakeSidecar{root: "/tmp/helper/003_T1"},
	})
	assert.Equal(t, "/tmp/helper/003_T1", acq.SrcRoot())
}
