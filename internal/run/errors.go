package run

import (
	"errors"
	"fmt"
)

// ProtocolError represents a breach of the coordinator/worker contract.
//
// Protocol errors include:
//   - Duplicate index: a run index issued or collected twice
//   - Unknown index: a result for an index that was never dispatched
//   - Bad record name: a result whose label carries no parsable run index
//   - Unexpected ack: a shutdown acknowledgment before shutdown began
//
// These are coding errors, not data conditions: the run aborts rather than
// degrade silently.
type ProtocolError struct {
	// Code identifies the violation category.
	Code ProtocolErrorCode

	// Message is a human-readable description.
	Message string

	// RunIndex identifies the affected run, when one is known.
	RunIndex int

	// WorkerID identifies the posting worker, when one is known.
	WorkerID int
}

// ProtocolErrorCode categorizes protocol errors.
type ProtocolErrorCode string

const (
	// ErrCodeDuplicateIndex indicates a run index seen twice.
	ErrCodeDuplicateIndex ProtocolErrorCode = "DUPLICATE_INDEX"

	// ErrCodeUnknownIndex indicates a result for an index never dispatched.
	ErrCodeUnknownIndex ProtocolErrorCode = "UNKNOWN_INDEX"

	// ErrCodeBadRecordName indicates a result label without a run index.
	ErrCodeBadRecordName ProtocolErrorCode = "BAD_RECORD_NAME"

	// ErrCodeUnexpectedAck indicates an ack outside the shutdown phase.
	ErrCodeUnexpectedAck ProtocolErrorCode = "UNEXPECTED_ACK"

	// ErrCodeBadEnvelope indicates an envelope with a missing or wrong payload.
	ErrCodeBadEnvelope ProtocolErrorCode = "BAD_ENVELOPE"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.WorkerID != 0 {
		return fmt.Sprintf("%s: %s (run=%d, worker=%d)", e.Code, e.Message, e.RunIndex, e.WorkerID)
	}
	return fmt.Sprintf("%s: %s (run=%d)", e.Code, e.Message, e.RunIndex)
}

// IsProtocolError reports whether the error is a protocol violation.
// Uses errors.As to handle wrapped errors.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
