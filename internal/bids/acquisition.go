// Package bids derives BIDS destination names and sidecar content for a
// single converted scan.
package bids

import (
	"fmt"
	"path"
	"path/filepath"

	"dcm2bids/internal/errors"
)

// Participant supplies the identity fields used to build names and paths.
// Implementations must be comparable with == (Acquisition.Equal compares them).
type Participant interface {
	// Prefix is the leading part of every filename, e.g. "sub-01_ses-02".
	Prefix() string
	// Directory is the participant folder relative to the BIDS root, e.g. "sub-01/ses-02".
	Directory() string
	// Session is the session folder, e.g. "ses-02", or "".
	Session() string
}

// Sidecar supplies the raw metadata extracted next to an image.
type Sidecar interface {
	// Data is the mutable sidecar content. ComposeSidecarData writes into it.
	Data() map[string]interface{}
	// Root is the source path without extension.
	Root() string
}

// AcquisitionParams holds the inputs of NewAcquisition.
type AcquisitionParams struct {
	Participant    Participant
	DataType       string
	ModalityLabel  string
	CustomLabels   string
	SrcSidecar     Sidecar
	SidecarChanges map[string]interface{}
	IntendedFor    IntendedFor
	IndexSidecar   *int
}

// Acquisition is one scan classified for a participant/session.
// Classification fields are fixed at construction; only the destination
// filename is set later, by SetDstFile.
type Acquisition struct {
	participant    Participant
	dataType       string
	modalityLabel  string
	customLabels   string
	srcSidecar     Sidecar
	sidecarChanges map[string]interface{}
	intendedFor    IntendedFor
	indexSidecar   *int

	dstFile string
}

// NewAcquisition builds an Acquisition, normalizing both labels and taking
// its own copy of the sidecar changes.
func NewAcquisition(p AcquisitionParams) *Acquisition {
	changes := make(map[string]interface{}, len(p.SidecarChanges))
	for k, v := range p.SidecarChanges {
		changes[k] = v
	}

	var index *int
	if p.IndexSidecar != nil {
		i := *p.IndexSidecar
		index = &i
	}

	return &Acquisition{
		participant:    p.Participant,
		dataType:       p.DataType,
		modalityLabel:  Normalize(p.ModalityLabel, Separator),
		customLabels:   Normalize(p.CustomLabels, Separator),
		srcSidecar:     p.SrcSidecar,
		sidecarChanges: changes,
		intendedFor:    p.IntendedFor,
		indexSidecar:   index,
	}
}

// WithCustomLabels returns a copy of a with its custom labels replaced.
// The destination filename of the copy is not set.
func (a *Acquisition) WithCustomLabels(customLabels string) *Acquisition {
	return NewAcquisition(AcquisitionParams{
		Participant:    a.participant,
		DataType:       a.dataType,
		ModalityLabel:  a.modalityLabel,
		CustomLabels:   customLabels,
		SrcSidecar:     a.srcSidecar,
		SidecarChanges: a.sidecarChanges,
		IntendedFor:    a.intendedFor,
		IndexSidecar:   a.indexSidecar,
	})
}

func (a *Acquisition) Participant() Participant { return a.participant }
func (a *Acquisition) DataType() string         { return a.dataType }
func (a *Acquisition) ModalityLabel() string    { return a.modalityLabel }
func (a *Acquisition) CustomLabels() string     { return a.customLabels }
func (a *Acquisition) SrcSidecar() Sidecar      { return a.srcSidecar }
func (a *Acquisition) IntendedFor() IntendedFor { return a.intendedFor }

// SidecarChanges returns the override map owned by a.
func (a *Acquisition) SidecarChanges() map[string]interface{} { return a.sidecarChanges }

// IndexSidecar returns the cross-reference position and whether it is set.
func (a *Acquisition) IndexSidecar() (int, bool) {
	if a.indexSidecar == nil {
		return 0, false
	}
	return *a.indexSidecar, true
}

// Equal compares the logical role of two acquisitions: participant, data
// type and both labels. Sidecar content and overrides are ignored.
func (a *Acquisition) Equal(other *Acquisition) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.participant == other.participant &&
		a.dataType == other.dataType &&
		a.modalityLabel == other.modalityLabel &&
		a.customLabels == other.customLabels
}

// Suffix is the tail appended to the participant prefix:
// "_<modality>" or "_<custom>_<modality>".
func (a *Acquisition) Suffix() string {
	if a.customLabels == "" {
		return a.modalityLabel
	}
	return a.customLabels + a.modalityLabel
}

// SrcRoot returns the source sidecar path without extension, or "" when
// there is no source sidecar.
func (a *Acquisition) SrcRoot() string {
	if a.srcSidecar == nil {
		return ""
	}
	return a.srcSidecar.Root()
}

// SetDstFile computes the destination filename from the participant prefix
// and the suffix, ordering entities with order.
func (a *Acquisition) SetDstFile(order EntityOrder) {
	a.dstFile = order.OrderName(a.participant.Prefix() + a.Suffix())
}

// DstFile returns the destination filename (no directory, no extension).
func (a *Acquisition) DstFile() (string, error) {
	if a.dstFile == "" {
		return "", errors.NewDcm2bidsError(
			errors.DestinationNotComputed,
			fmt.Sprintf("destination of %s read before SetDstFile", a),
			nil, nil,
		)
	}
	return a.dstFile, nil
}

// DestinationRoot is the destination path without extension, relative to
// the BIDS root.
func (a *Acquisition) DestinationRoot() (string, error) {
	dst, err := a.DstFile()
	if err != nil {
		return "", err
	}
	return filepath.Join(a.participant.Directory(), a.dataType, dst), nil
}

// DestinationForIntendedFor is the destination path without extension,
// relative to the session folder, as written in IntendedFor fields.
func (a *Acquisition) DestinationForIntendedFor() (string, error) {
	dst, err := a.DstFile()
	if err != nil {
		return "", err
	}
	return path.Join(a.participant.Session(), a.dataType, dst), nil
}

// String identifies the acquisition in logs and errors.
func (a *Acquisition) String() string {
	prefix := ""
	if a.participant != nil {
		prefix = a.participant.Prefix()
	}
	return fmt.Sprintf("%s %s%s", a.dataType, prefix, a.Suffix())
}
