package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/feedquest-backend/internal/events"
	"github.com/yungbote/feedquest-backend/internal/firehose"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/utils"
)

// DispatcherConfig bounds the dispatcher's resource usage.
type DispatcherConfig struct {
	// MaxInFlight caps events being processed across all actors.
	MaxInFlight int64
	// QueueDepth caps buffered events per actor; Submit blocks past this.
	QueueDepth int
	// EventTimeout bounds one event's end-to-end handling.
	EventTimeout time.Duration
}

func DispatcherConfigFromEnv(log *logger.Logger) DispatcherConfig {
	return DispatcherConfig{
		MaxInFlight:  int64(utils.GetEnvAsInt("DISPATCHER_MAX_IN_FLIGHT", 100, log)),
		QueueDepth:   utils.GetEnvAsInt("DISPATCHER_QUEUE_DEPTH", 64, log),
		EventTimeout: time.Duration(utils.GetEnvAsInt("DISPATCHER_EVENT_TIMEOUT_SECONDS", 30, log)) * time.Second,
	}
}

// Dispatcher fans stream events out to the progression service. Each actor
// gets its own FIFO queue drained by a single goroutine, so one actor's
// events are processed in arrival order while distinct actors run in
// parallel. A shared permit pool bounds total in-flight work; Submit blocks
// for backpressure when an actor's queue is full.
type Dispatcher struct {
	cfg         DispatcherConfig
	log         *logger.Logger
	progression ProgressionService

	sem *semaphore.Weighted

	mu         sync.Mutex
	queues     map[string]chan *firehose.Event
	closed     bool
	submitters sync.WaitGroup
	wg         sync.WaitGroup

	dropped   atomic.Int64
	failed    atomic.Int64
	processed atomic.Int64
}

func NewDispatcher(baseLog *logger.Logger, cfg DispatcherConfig, progression ProgressionService) *Dispatcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 100
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 30 * time.Second
	}
	return &Dispatcher{
		cfg:         cfg,
		log:         baseLog.With("service", "Dispatcher"),
		progression: progression,
		sem:         semaphore.NewWeighted(cfg.MaxInFlight),
		queues:      make(map[string]chan *firehose.Event),
	}
}

var errDispatcherClosed = errors.New("dispatcher is shut down")

// Submit routes one event to its actor's queue, creating the queue on first
// sight. Blocks when the queue is full; that is the backpressure point for
// the stream reader.
func (d *Dispatcher) Submit(ctx context.Context, ev *firehose.Event) error {
	if ev == nil || ev.Kind != firehose.KindCommit || ev.Commit == nil {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errDispatcherClosed
	}
	q, ok := d.queues[ev.DID]
	if !ok {
		q = make(chan *firehose.Event, d.cfg.QueueDepth)
		d.queues[ev.DID] = q
		d.wg.Add(1)
		go d.drain(ev.DID, q)
	}
	// Keeps Shutdown from closing the queue mid-send.
	d.submitters.Add(1)
	d.mu.Unlock()
	defer d.submitters.Done()

	select {
	case q <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes one actor's events sequentially. Each event takes a permit
// from the shared pool before running, bounding total concurrency.
func (d *Dispatcher) drain(did string, q chan *firehose.Event) {
	defer d.wg.Done()
	for ev := range q {
		if err := d.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		d.processOne(ev)
		d.sem.Release(1)
	}
}

func (d *Dispatcher) processOne(ev *firehose.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.EventTimeout)
	defer cancel()

	switch ev.Commit.Operation {
	case firehose.OpCreate:
		c := events.Classify(ev.Commit.Collection, ev.Commit.Record)
		if c.Kind == events.KindUnknown {
			d.dropped.Add(1)
			d.log.Debug("Dropped unknown record kind", "collection", ev.Commit.Collection)
			return
		}
		res, err := d.progression.ApplyCreate(ctx, ev, c)
		if err != nil {
			d.failed.Add(1)
			d.log.Error("Failed to apply create event",
				"did", ev.DID,
				"collection", ev.Commit.Collection,
				"error", err,
			)
			return
		}
		d.processed.Add(1)
		if res.LeveledUp {
			d.log.Info("Level up",
				"did", ev.DID,
				"level", res.State.Level,
				"levels_gained", res.State.LevelsGained,
			)
		}
	case firehose.OpDelete:
		if events.KindForCollection(ev.Commit.Collection) == events.KindUnknown {
			d.dropped.Add(1)
			return
		}
		if err := d.progression.ApplyDelete(ctx, ev); err != nil {
			d.failed.Add(1)
			d.log.Error("Failed to apply delete event",
				"did", ev.DID,
				"collection", ev.Commit.Collection,
				"error", err,
			)
			return
		}
		d.processed.Add(1)
	default:
		// Update commits carry no progression semantics.
		d.dropped.Add(1)
	}
}

// Shutdown stops accepting new events, drains every actor queue, and waits
// for in-flight work to finish.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.submitters.Wait()
	d.mu.Lock()
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("Dispatcher drained",
		"processed", d.processed.Load(),
		"dropped", d.dropped.Load(),
		"failed", d.failed.Load(),
	)
}

// Stats reports lifetime counters, mainly for tests and the health endpoint.
func (d *Dispatcher) Stats() (processed, dropped, failed int64) {
	return d.processed.Load(), d.dropped.Load(), d.failed.Load()
}
