package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates the descriptions config could not be decoded or validated
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ConfigNotFound indicates the descriptions config file does not exist
	ConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	// IntendedForOutOfRange indicates an intendedFor index with no matching description
	IntendedForOutOfRange ErrorCode = "INTENDED_FOR_OUT_OF_RANGE"
	// DestinationNotComputed indicates a destination path was read before SetDstFile
	DestinationNotComputed ErrorCode = "DESTINATION_NOT_COMPUTED"
	// SidecarMissing indicates an acquisition has no source sidecar to compose from
	SidecarMissing ErrorCode = "SIDECAR_MISSING"
	// SidecarUnreadable indicates a sidecar JSON file could not be read or parsed
	SidecarUnreadable ErrorCode = "SIDECAR_UNREADABLE"
	// Dcm2niixNotFound indicates the dcm2niix binary is not on PATH
	Dcm2niixNotFound ErrorCode = "DCM2NIIX_NOT_FOUND"
	// Dcm2niixFailed indicates dcm2niix exited with an error
	Dcm2niixFailed ErrorCode = "DCM2NIIX_FAILED"
	// DestinationExists indicates a destination file exists and clobber is off
	DestinationExists ErrorCode = "DESTINATION_EXISTS"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
	// EditConfig suggests changing the descriptions config
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// Dcm2bidsError represents an error with code, message, and suggestions
type Dcm2bidsError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewDcm2bidsError creates a new Dcm2bidsError. When suggestedFixes is nil the
// default actions registered for code are attached.
func NewDcm2bidsError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *Dcm2bidsError {
	if suggestedFixes == nil {
		suggestedFixes = GetSuggestedFixes(code)
	}
	return &Dcm2bidsError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Error implements the error interface
func (e *Dcm2bidsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Dcm2bidsError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Dcm2bidsError) WithDetails(details interface{}) *Dcm2bidsError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	Dcm2niixNotFound: {
		{
			Type:        InstallTool,
			Tool:        "dcm2niix",
			URL:         "https://github.com/rordenlab/dcm2niix#install",
			Description: "Install dcm2niix or pass its location with --dcm2niix",
		},
	},
	Dcm2niixFailed: {
		{
			Type:        RunCommand,
			Command:     "dcm2bids helper -d ${dicom_dir}",
			Safe:        true,
			Description: "Run dcm2niix alone and inspect its output",
		},
	},
	IntendedForOutOfRange: {
		{
			Type:        EditConfig,
			Description: "intendedFor values are 0-based indices into the descriptions list",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "dcm2bids config show -c ${config}",
			Safe:        true,
			Description: "Show how the config file is parsed",
		},
	},
	DestinationExists: {
		{
			Type:        RunCommand,
			Command:     "dcm2bids ${args} --clobber",
			Description: "Overwrite existing files in the output directory",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// HasCode reports whether err, or any error it wraps, is a Dcm2bidsError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var de *Dcm2bidsError
	if !stderrors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// CodeOf returns the code of the first Dcm2bidsError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var de *Dcm2bidsError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}
