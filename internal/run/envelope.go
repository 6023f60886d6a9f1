package run

import "github.com/jeff-ws/temoa/internal/results"

// WorkKind distinguishes work channel payloads.
type WorkKind int

const (
	// WorkSolve carries an item to solve.
	WorkSolve WorkKind = iota + 1
	// WorkShutdown tells a worker to acknowledge and exit.
	WorkShutdown
)

// WorkEnvelope is the work channel's element type. A shutdown envelope
// carries no item; a solve envelope must.
type WorkEnvelope struct {
	Kind WorkKind
	Item *WorkItem
}

// ResultKind distinguishes results channel payloads.
type ResultKind int

const (
	// ResultRecord carries a solved run's compacted record.
	ResultRecord ResultKind = iota + 1
	// ResultShutdownAck confirms one worker received its shutdown envelope.
	ResultShutdownAck
)

// ResultEnvelope is the results channel's element type.
type ResultEnvelope struct {
	Kind     ResultKind
	WorkerID int
	Record   *results.Record
}
