package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jeff-ws/temoa/internal/results"
	"github.com/jeff-ws/temoa/internal/solve"
)

const (
	// workQueueCap keeps at most one undispatched item in flight, capping
	// the memory held by built-but-unsolved snapshots.
	workQueueCap = 1

	// logBufferCap bounds the relay channel. Workers block on a full
	// buffer until the next drain tick.
	logBufferCap = 50

	defaultPollInterval = 100 * time.Millisecond
)

// ResultSink receives everything a run persists: accepted records as they
// arrive, and each item's change records at dispatch time. The production
// sink is the store writer; only the coordinator ever calls it.
type ResultSink interface {
	HandleResult(rec *results.Record) error
	RecordChanges(runIndex int, changes []results.ChangeRecord) error
}

// RunStats counts a run's traffic. Dispatched minus Collected is the
// number of runs lost to solve failures.
type RunStats struct {
	Dispatched int
	Collected  int
}

// Config wires a Coordinator. Solvers sets the pool size: one worker per
// engine handle, each owned exclusively.
type Config struct {
	Solvers []solve.Solver
	Sink    ResultSink

	// Logger receives the coordinator's own lines and every relayed
	// worker line. Defaults to slog.Default().
	Logger *slog.Logger

	// Tokens labels the session in logs. Defaults to UUIDv7 tokens.
	Tokens TokenGenerator

	// Quiet suppresses the per-solve progress prints.
	Quiet bool

	// Stdout is where progress prints go. Defaults to os.Stdout.
	Stdout io.Writer

	// PollInterval is the loop's resting tick. Defaults to 100ms.
	PollInterval time.Duration
}

// Coordinator drives one parallel run: it pulls items from a generator one
// ahead, feeds the bounded work channel, collects records, relays worker
// logs, and runs the shutdown handshake. A Coordinator is single-use.
//
// All channel operations in the loop are non-blocking polls separated by a
// short sleep, so log drainage and result collection continue even while
// the work channel is full or every worker is mid-solve.
type Coordinator struct {
	solvers []solve.Solver
	sink    ResultSink
	log     *slog.Logger
	tokens  TokenGenerator
	quiet   bool
	stdout  io.Writer
	poll    time.Duration

	started   bool
	exhausted bool
	stats     RunStats
	issued    map[int]struct{}
	collected map[int]struct{}
}

// NewCoordinator validates the wiring and builds a Coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if len(cfg.Solvers) == 0 {
		return nil, errors.New("run: coordinator needs at least one solver")
	}
	if cfg.Sink == nil {
		return nil, errors.New("run: coordinator needs a result sink")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = V7Tokens{}
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Coordinator{
		solvers:   cfg.Solvers,
		sink:      cfg.Sink,
		log:       log,
		tokens:    tokens,
		quiet:     cfg.Quiet,
		stdout:    stdout,
		poll:      poll,
		issued:    map[int]struct{}{},
		collected: map[int]struct{}{},
	}, nil
}

// Stats reports the completed run's counts.
func (c *Coordinator) Stats() RunStats { return c.stats }

// Run executes the full sequence: start the pool, pump the generator dry,
// then hand every worker its shutdown envelope and drain until all have
// acknowledged. Errors from the generator, the sink, or the protocol stop
// dispatch but never skip the handshake; workers are always brought down
// cleanly before Run returns.
//
// Cancellation via ctx stops dispatch of new items; in-flight solves run
// to completion (or until the engine honors the context) and their results
// are still collected during the handshake.
func (c *Coordinator) Run(ctx context.Context, gen Generator) error {
	if c.started {
		return errors.New("run: coordinator is single-use")
	}
	c.started = true

	log := c.log.With("session", c.tokens.Token())

	work := make(chan WorkEnvelope, workQueueCap)
	resultsCh := make(chan ResultEnvelope, len(c.solvers)+1)
	logCh := make(chan LogEntry, logBufferCap)

	var wg sync.WaitGroup
	for i, s := range c.solvers {
		w := NewWorker(i+1, s, work, resultsCh, slog.New(NewRelayHandler(logCh, slog.LevelDebug)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	log.Info("worker pool started", "workers", len(c.solvers))

	pending, runErr := c.pullNext(gen, log)

	for runErr == nil && !(c.exhausted && pending == nil) {
		if pending != nil {
			select {
			case work <- WorkEnvelope{Kind: WorkSolve, Item: pending}:
				c.stats.Dispatched++
				log.Debug("dispatched work item", "run", pending.RunIndex)
				pending = nil
				if !c.exhausted {
					pending, runErr = c.pullNext(gen, log)
				}
			default:
			}
		}
		if runErr != nil {
			break
		}
		select {
		case env := <-resultsCh:
			runErr = c.collect(env, log)
		default:
		}
		c.relayLogs(logCh, log)
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			log.Warn("context canceled; stopping dispatch", "error", ctx.Err())
		case <-time.After(c.poll):
		}
	}

	ackErr := c.shutdown(work, resultsCh, logCh, log)
	wg.Wait()
	close(work)
	close(logCh)
	for e := range logCh {
		c.emit(log, e)
	}

	if runErr == nil {
		runErr = ackErr
	}
	log.Info("run complete",
		"dispatched", c.stats.Dispatched, "collected", c.stats.Collected)
	return runErr
}

// pullNext advances the generator by one item and captures its change
// records immediately, before the item is anywhere near a worker.
func (c *Coordinator) pullNext(gen Generator, log *slog.Logger) (*WorkItem, error) {
	item, err := gen.Next()
	if errors.Is(err, ErrExhausted) {
		c.exhausted = true
		log.Debug("pulled last run from generator")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run: generator: %w", err)
	}
	if item == nil {
		return nil, &ProtocolError{Code: ErrCodeBadEnvelope, Message: "generator returned a nil item"}
	}
	if _, dup := c.issued[item.RunIndex]; dup {
		return nil, &ProtocolError{
			Code:     ErrCodeDuplicateIndex,
			Message:  "generator issued a run index twice",
			RunIndex: item.RunIndex,
		}
	}
	c.issued[item.RunIndex] = struct{}{}
	if err := c.sink.RecordChanges(item.RunIndex, item.Changes); err != nil {
		return nil, fmt.Errorf("run: record changes for run %d: %w", item.RunIndex, err)
	}
	return item, nil
}

// collect handles one results-channel envelope during the pump phase,
// where an acknowledgment is a contract breach.
func (c *Coordinator) collect(env ResultEnvelope, log *slog.Logger) error {
	switch env.Kind {
	case ResultShutdownAck:
		return &ProtocolError{
			Code:     ErrCodeUnexpectedAck,
			Message:  "shutdown acknowledgment before shutdown phase",
			WorkerID: env.WorkerID,
		}
	case ResultRecord:
		return c.acceptRecord(env, log)
	default:
		return &ProtocolError{
			Code:     ErrCodeBadEnvelope,
			Message:  fmt.Sprintf("unknown result envelope kind %d", env.Kind),
			WorkerID: env.WorkerID,
		}
	}
}

// acceptRecord validates the run index bookkeeping and hands the record to
// the sink. The index rides in the record's label, suffix after the last
// dash.
func (c *Coordinator) acceptRecord(env ResultEnvelope, log *slog.Logger) error {
	if env.Record == nil {
		return &ProtocolError{
			Code:     ErrCodeBadEnvelope,
			Message:  "result envelope without a record",
			WorkerID: env.WorkerID,
		}
	}
	idx, err := ParseRunIndex(env.Record.Name)
	if err != nil {
		return &ProtocolError{Code: ErrCodeBadRecordName, Message: err.Error(), WorkerID: env.WorkerID}
	}
	if _, dup := c.collected[idx]; dup {
		return &ProtocolError{
			Code:     ErrCodeDuplicateIndex,
			Message:  "run index already collected",
			RunIndex: idx,
			WorkerID: env.WorkerID,
		}
	}
	if _, ok := c.issued[idx]; !ok {
		return &ProtocolError{
			Code:     ErrCodeUnknownIndex,
			Message:  "result for a run index that was never dispatched",
			RunIndex: idx,
			WorkerID: env.WorkerID,
		}
	}
	c.collected[idx] = struct{}{}
	if err := c.sink.HandleResult(env.Record); err != nil {
		return fmt.Errorf("run: persist result %d: %w", idx, err)
	}
	c.stats.Collected++
	log.Info("solve collected", "run", idx, "count", c.stats.Collected)
	if !c.quiet {
		fmt.Fprintf(c.stdout, "Solve count: %d\n", c.stats.Collected)
	}
	return nil
}

// shutdown delivers one shutdown envelope per worker and keeps draining
// results and logs until every worker has acknowledged. Late records are
// still collected. A violation during the drain is remembered, not acted
// on: the workers must be freed regardless, so the drain runs to
// completion and the first error comes back at the end.
func (c *Coordinator) shutdown(work chan<- WorkEnvelope, resultsCh <-chan ResultEnvelope, logCh <-chan LogEntry, log *slog.Logger) error {
	var firstErr error
	n := len(c.solvers)
	sent, acks := 0, 0
	for acks < n {
		if sent < n {
			select {
			case work <- WorkEnvelope{Kind: WorkShutdown}:
				sent++
				log.Debug("shutdown envelope sent", "sent", sent)
			default:
			}
		}
		select {
		case env := <-resultsCh:
			switch env.Kind {
			case ResultShutdownAck:
				acks++
				log.Debug("shutdown acknowledged", "worker", env.WorkerID, "acks", acks)
			case ResultRecord:
				log.Debug("bagged a result post-shutdown", "worker", env.WorkerID)
				if err := c.acceptRecord(env, log); err != nil && firstErr == nil {
					firstErr = err
				}
			default:
				if firstErr == nil {
					firstErr = &ProtocolError{
						Code:     ErrCodeBadEnvelope,
						Message:  fmt.Sprintf("unknown result envelope kind %d", env.Kind),
						WorkerID: env.WorkerID,
					}
				}
			}
		default:
		}
		c.relayLogs(logCh, log)
		time.Sleep(c.poll)
	}
	return firstErr
}

// relayLogs drains everything currently in the relay channel and re-emits
// it through the coordinator's handler.
func (c *Coordinator) relayLogs(logCh <-chan LogEntry, log *slog.Logger) {
	for {
		select {
		case e := <-logCh:
			c.emit(log, e)
		default:
			return
		}
	}
}

// emit republishes one worker record, preserving its original timestamp.
func (c *Coordinator) emit(log *slog.Logger, e LogEntry) {
	ctx := context.Background()
	if !log.Enabled(ctx, e.Level) {
		return
	}
	r := slog.NewRecord(e.Time, e.Level, e.Message, 0)
	r.AddAttrs(e.Attrs...)
	_ = log.Handler().Handle(ctx, r)
}
