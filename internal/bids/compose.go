package bids

import (
	"fmt"

	"dcm2bids/internal/errors"
)

const (
	// VersionKey is the sidecar field recording the tool version.
	VersionKey = "Dcm2bidsVersion"
	// IntendedForKey is the sidecar field listing the scans a field map applies to.
	IntendedForKey = "IntendedFor"
)

// ComposeSidecarData merges the source sidecar content with the tool
// version, the resolved IntendedFor paths and the sidecar changes, in that
// order of precedence (changes win).
//
// The source sidecar's map is updated in place and returned; callers that
// need the original content must copy it first.
//
// intendedForList[i] holds the IntendedFor paths of every acquisition whose
// IndexSidecar is i. It must be complete before any acquisition is composed.
func (a *Acquisition) ComposeSidecarData(version string, intendedForList [][]string) (map[string]interface{}, error) {
	if a.srcSidecar == nil {
		return nil, errors.NewDcm2bidsError(
			errors.SidecarMissing,
			fmt.Sprintf("%s has no source sidecar", a),
			nil, nil,
		)
	}

	data := a.srcSidecar.Data()
	if data == nil {
		return nil, errors.NewDcm2bidsError(
			errors.SidecarMissing,
			fmt.Sprintf("%s has an empty source sidecar", a),
			nil, nil,
		)
	}

	data[VersionKey] = version

	if a.intendedFor.Requested() {
		paths, err := a.resolveIntendedFor(intendedForList)
		if err != nil {
			return nil, err
		}
		if len(paths) == 1 {
			data[IntendedForKey] = paths[0]
		} else {
			data[IntendedForKey] = paths
		}
	}

	for key, value := range a.sidecarChanges {
		data[key] = value
	}

	return data, nil
}

func (a *Acquisition) resolveIntendedFor(intendedForList [][]string) ([]string, error) {
	paths := []string{}
	for _, index := range a.intendedFor.indices {
		if index < 0 || index >= len(intendedForList) {
			return nil, errors.NewDcm2bidsError(
				errors.IntendedForOutOfRange,
				fmt.Sprintf("intendedFor index %d of %s is out of range (%d descriptions)", index, a, len(intendedForList)),
				nil, nil,
			).WithDetails(map[string]interface{}{
				"index":       index,
				"acquisition": a.String(),
				"size":        len(intendedForList),
			})
		}
		paths = append(paths, intendedForList[index]...)
	}
	return paths, nil
}
