package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/filekv/internal/kverr"
	"github.com/yndnr/filekv/internal/telemetry/metric"
)

// Source encodes the live document. It is called once per cycle.
type Source func() ([]byte, error)

// FlusherConfig configures a Flusher.
type FlusherConfig struct {
	// MinInterval is the minimum time between two cycles. Requests scheduled
	// in between are served by the next cycle. Zero disables throttling.
	MinInterval time.Duration

	// OnFatal is called once when a cycle fails. It runs on the worker
	// goroutine after the worker has stopped, so it may call Close.
	OnFatal func(error)

	// Metrics is optional.
	Metrics *metric.PersistMetrics

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Stats describes the flusher's progress.
type Stats struct {
	Scheduled uint64 // requests accepted by Schedule
	Completed uint64 // requests covered by a committed cycle
	Cycles    uint64 // committed cycles

	LastCycleID  string
	LastChecksum string
	LastSize     int
	LastDuration time.Duration
	LastCommit   time.Time
}

// Pending returns the number of requests not yet committed.
func (s Stats) Pending() uint64 {
	return s.Scheduled - s.Completed
}

type waiter struct {
	seq uint64
	ch  chan error
}

// Flusher serializes persistence requests onto a single worker.
//
// Requests carry no payload. A cycle encodes the document as it is when the
// cycle starts and covers every request scheduled before that moment, so
// bursts of mutations coalesce into fewer writes without losing any of them.
//
// A failed cycle is fatal: the worker stops, the error is reported through
// OnFatal, Errors and Err, and every later Schedule or Drain returns it.
type Flusher struct {
	cfg     FlusherConfig
	writer  *Writer
	source  Source
	logger  *slog.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	scheduled uint64
	completed uint64
	waiters   []waiter
	err       error
	closed    bool
	stats     Stats

	wakeCh    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	errCh     chan error
	closeOnce sync.Once
}

// NewFlusher starts a flusher committing source through writer.
func NewFlusher(writer *Writer, source Source, cfg FlusherConfig) *Flusher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Flusher{
		cfg:    cfg,
		writer: writer,
		source: source,
		logger: cfg.Logger.With("path", writer.Path()),
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		errCh:  make(chan error, 1),
	}
	if cfg.MinInterval > 0 {
		f.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	go f.loop()
	return f
}

// Schedule requests a cycle. It never blocks on I/O.
func (f *Flusher) Schedule() error {
	f.mu.Lock()
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return err
	}
	if f.closed {
		f.mu.Unlock()
		return kverr.ErrClosed
	}
	f.scheduled++
	f.stats.Scheduled = f.scheduled
	pending := f.scheduled - f.completed
	f.mu.Unlock()

	f.cfg.Metrics.ObserveScheduled(pending)

	select {
	case f.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// Drain waits until every request scheduled before the call is committed.
func (f *Flusher) Drain(ctx context.Context) error {
	f.mu.Lock()
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return err
	}
	if f.completed >= f.scheduled {
		f.mu.Unlock()
		return nil
	}
	w := waiter{seq: f.scheduled, ch: make(chan error, 1)}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close commits outstanding requests and stops the worker. It returns the
// fatal error, if any.
func (f *Flusher) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.stopCh)
	})
	<-f.doneCh

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Err returns the fatal error, or nil.
func (f *Flusher) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Errors delivers the fatal error once.
func (f *Flusher) Errors() <-chan error {
	return f.errCh
}

// Stats returns a copy of the current statistics.
func (f *Flusher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *Flusher) loop() {
	defer f.reportFatal()
	defer close(f.doneCh)

	for {
		stopping := false
		select {
		case <-f.wakeCh:
		case <-f.stopCh:
			stopping = true
		}

		if !f.drainPending() || stopping {
			return
		}
	}
}

// drainPending runs cycles until every scheduled request is committed. It
// returns false once a cycle has failed.
func (f *Flusher) drainPending() bool {
	for {
		f.mu.Lock()
		if f.err != nil {
			f.mu.Unlock()
			return false
		}
		if f.completed == f.scheduled {
			f.mu.Unlock()
			return true
		}
		target := f.scheduled
		f.mu.Unlock()

		if f.limiter != nil {
			// Background context: the wait is bounded by MinInterval.
			_ = f.limiter.Wait(context.Background())
		}

		if err := f.cycle(target); err != nil {
			f.fail(err)
			return false
		}
	}
}

// cycle commits the live document, covering requests up to target.
func (f *Flusher) cycle(target uint64) error {
	id := ulid.Make().String()
	start := time.Now()

	data, err := f.source()
	if err != nil {
		err = kverr.ErrPersistenceFailure.Wrapf(err, "encode document")
	} else {
		err = f.writer.Commit(data)
	}
	elapsed := time.Since(start)

	f.mu.Lock()
	coalesced := target - f.completed
	if err == nil {
		f.completed = target
		f.stats.Completed = target
		f.stats.Cycles++
		f.stats.LastCycleID = id
		f.stats.LastChecksum = Checksum(data)
		f.stats.LastSize = len(data)
		f.stats.LastDuration = elapsed
		f.stats.LastCommit = start.Add(elapsed)
		f.notifyLocked()
	}
	pending := f.scheduled - f.completed
	f.mu.Unlock()

	f.cfg.Metrics.ObserveCycle(elapsed, len(data), pending, err)

	if err == nil {
		f.logger.Debug("persistence cycle committed",
			"cycle", id,
			"requests", coalesced,
			"bytes", len(data),
			"checksum", Checksum(data),
			"elapsed", elapsed)
	}
	return err
}

// notifyLocked releases waiters whose requests are committed.
func (f *Flusher) notifyLocked() {
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.seq <= f.completed {
			w.ch <- nil
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

// fail records a fatal error and halts the engine.
func (f *Flusher) fail(err error) {
	f.mu.Lock()
	f.err = err
	for _, w := range f.waiters {
		w.ch <- err
	}
	f.waiters = nil
	pending := f.scheduled - f.completed
	f.mu.Unlock()

	f.logger.Error("persistence cycle failed, store halted",
		"error", err,
		"pending", pending)

	f.errCh <- err
}

// reportFatal hands the fatal error, if any, to OnFatal.
func (f *Flusher) reportFatal() {
	if err := f.Err(); err != nil && f.cfg.OnFatal != nil {
		f.cfg.OnFatal(err)
	}
}
