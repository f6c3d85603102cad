package codestream

import "errors"

// Sentinel errors for codestream parsing, so callers can branch on error
// class with errors.Is rather than string matching.
var (
	// ErrNotACodestream is returned when the stream does not begin with SOC.
	ErrNotACodestream = errors.New("codestream: missing SOC marker")
	// ErrInvalidMarkerSegment is returned when a marker segment's length
	// or contents fail Annex A's structural constraints.
	ErrInvalidMarkerSegment = errors.New("codestream: invalid marker segment")
	// ErrUnexpectedMarker is returned when a marker appears somewhere the
	// main/tile-part header grammar forbids it.
	ErrUnexpectedMarker = errors.New("codestream: unexpected marker")
	// ErrTruncated is returned when the stream ends before a marker
	// segment's declared length is satisfied.
	ErrTruncated = errors.New("codestream: truncated stream")
	// ErrUnsupportedFeature is returned for syntactically valid markers
	// describing a feature this decoder does not implement.
	ErrUnsupportedFeature = errors.New("codestream: unsupported feature")
)
