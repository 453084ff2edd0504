// Package participant derives BIDS identity fields from a participant ID and
// an optional session ID.
package participant

import (
	"path/filepath"
	"strings"
)

const (
	subjectPrefix = "sub-"
	sessionPrefix = "ses-"
)

// Participant is a subject/session pair. It is a comparable value so that
// acquisitions of the same participant compare equal.
type Participant struct {
	name    string
	session string
}

// New returns a Participant, adding the "sub-" and "ses-" prefixes when the
// caller omitted them. An empty session stays empty.
func New(name, session string) Participant {
	name = strings.TrimSpace(name)
	session = strings.TrimSpace(session)

	if !strings.HasPrefix(name, subjectPrefix) {
		name = subjectPrefix + name
	}
	if session != "" && !strings.HasPrefix(session, sessionPrefix) {
		session = sessionPrefix + session
	}

	return Participant{name: name, session: session}
}

// Name returns the subject label with its prefix, e.g. "sub-01".
func (p Participant) Name() string { return p.name }

// Session returns the session label with its prefix, or "".
func (p Participant) Session() string { return p.session }

// HasSession reports whether a session was given.
func (p Participant) HasSession() bool { return p.session != "" }

// Directory is the participant folder relative to the BIDS root.
func (p Participant) Directory() string {
	if !p.HasSession() {
		return p.name
	}
	return filepath.Join(p.name, p.session)
}

// Prefix is the filename prefix shared by every file of the participant.
func (p Participant) Prefix() string {
	if !p.HasSession() {
		return p.name
	}
	return p.name + "_" + p.session
}

func (p Participant) String() string {
	return p.Prefix()
}
