package facegroup

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload means the envelope could not be decoded. Terminal
	// for the invocation and reported to the transport as a client error.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupportedEvent marks a record or envelope this service ignores.
	ErrUnsupportedEvent = errors.New("unsupported event")
	// ErrDetectionFailed wraps matcher failures.
	ErrDetectionFailed = errors.New("detection failed")
	// ErrNoFaceDetected is a skip, not a failure.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrPersistenceFailed wraps store write failures.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrDuplicateImage is returned by a conditional Put when a record for
	// the same image already exists.
	ErrDuplicateImage = errors.New("image already processed")
	ErrNotFound       = errors.New("face not found")
	ErrInvalidName    = errors.New("name must not be empty")
	ErrPartialRename  = errors.New("rename partially applied")
)

// PartialRenameError reports a scatter-update that stopped after updating
// some group members. Updates already applied are kept.
type PartialRenameError struct {
	GroupID string
	Updated int
	Total   int
	Err     error
}

func (e *PartialRenameError) Error() string {
	return fmt.Sprintf("rename group %s: updated %d of %d faces: %v", e.GroupID, e.Updated, e.Total, e.Err)
}

func (e *PartialRenameError) Unwrap() []error {
	return []error{ErrPartialRename, e.Err}
}
