package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/audss/oncall/errors"
	"github.com/audss/oncall/roster"
	"github.com/audss/oncall/sbc"
)

// NumberApplier pushes a number to all gateway hosts and reports
// independent per-host outcomes.
type NumberApplier interface {
	ApplyNumber(ctx context.Context, number string) []sbc.Outcome
}

// PersonResolver resolves a job's person reference at dispatch time.
type PersonResolver interface {
	Get(ctx context.Context, id string) (*roster.Person, error)
}

// Broadcaster receives dispatcher lifecycle events for live operator
// displays. Implementations must not block.
type Broadcaster interface {
	BroadcastJobClaimed(job *Job)
	BroadcastJobApplied(job *Job, outcomes []sbc.Outcome)
	BroadcastJobFailed(job *Job, reason string, outcomes []sbc.Outcome)
	BroadcastJobCancelled(job *Job)
}

// DispatcherConfig contains configuration for the dispatcher loop.
type DispatcherConfig struct {
	// Interval is how often due jobs are checked for. On-call changes are
	// human-scale events; sub-second timing buys nothing here.
	Interval time.Duration
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Interval: 30 * time.Second,
	}
}

// Dispatcher periodically scans the schedule store for due jobs and
// applies each one to the gateway hosts. Jobs are processed serially
// within a tick; the per-host pushes of one job fan out concurrently
// inside the applier.
type Dispatcher struct {
	store       *Store
	people      PersonResolver
	applier     NumberApplier
	broadcaster Broadcaster
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	log         *zap.SugaredLogger

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
}

// NewDispatcher creates a dispatcher. broadcaster may be nil.
func NewDispatcher(store *Store, people PersonResolver, applier NumberApplier, broadcaster Broadcaster, cfg DispatcherConfig, log *zap.SugaredLogger) *Dispatcher {
	return NewDispatcherWithContext(context.Background(), store, people, applier, broadcaster, cfg, log)
}

// NewDispatcherWithContext creates a dispatcher with a parent context.
func NewDispatcherWithContext(ctx context.Context, store *Store, people PersonResolver, applier NumberApplier, broadcaster Broadcaster, cfg DispatcherConfig, log *zap.SugaredLogger) *Dispatcher {
	dispatchCtx, cancel := context.WithCancel(ctx)

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultDispatcherConfig().Interval
	}

	return &Dispatcher{
		store:       store,
		people:      people,
		applier:     applier,
		broadcaster: broadcaster,
		interval:    interval,
		ctx:         dispatchCtx,
		cancel:      cancel,
		log:         log,
	}
}

// SetBroadcaster attaches the event broadcaster. Must be called before
// Start.
func (d *Dispatcher) SetBroadcaster(b Broadcaster) {
	d.broadcaster = b
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
	d.log.Infow("Dispatcher started", "interval", d.interval)
}

// Stop gracefully stops the dispatch loop, waiting for an in-flight tick.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.log.Infow("Dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case tickTime := <-ticker.C:
			d.mu.Lock()
			d.lastTickAt = tickTime
			d.ticksSinceStart++
			tick := d.ticksSinceStart
			d.mu.Unlock()

			if err := d.tick(tickTime); err != nil {
				d.log.Warnw("Dispatch tick error", "error", err, "tick", tick)
			}
		}
	}
}

// tick processes all jobs due at the given time, in due order.
func (d *Dispatcher) tick(now time.Time) error {
	jobs, err := d.store.ListDue(d.ctx, now)
	if err != nil {
		return errors.Wrap(err, "failed to list due jobs")
	}

	for _, job := range jobs {
		select {
		case <-d.ctx.Done():
			return d.ctx.Err()
		default:
		}

		if err := d.dispatch(job); err != nil {
			d.log.Errorw("Failed to dispatch job",
				"job_id", job.ID,
				"person_id", job.PersonID,
				"error", err)
			// Continue with other jobs even if one fails
			continue
		}
	}

	return nil
}

// dispatch handles one due job: claim it, resolve the person, push the
// number, record the terminal status. Claiming first means a crash
// mid-dispatch can never fire the same job twice; the only retried case
// is a claim that itself never committed.
func (d *Dispatcher) dispatch(job *Job) error {
	if err := d.store.Claim(d.ctx, job.ID); err != nil {
		if errors.IsInvalidState(err) {
			// Lost the race to a concurrent tick or a cancellation.
			d.log.Debugw("Skipping job, no longer pending", "job_id", job.ID)
			return nil
		}
		return errors.Wrap(err, "failed to claim job")
	}
	job.Status = StatusDispatching
	if d.broadcaster != nil {
		d.broadcaster.BroadcastJobClaimed(job)
	}

	person, err := d.people.Get(d.ctx, job.PersonID)
	if err != nil {
		if errors.IsNotFound(err) {
			// Person deleted between scheduling and dispatch.
			d.log.Infow("Cancelling job, person no longer exists",
				"job_id", job.ID,
				"person_id", job.PersonID)
			if cancelErr := d.store.CancelClaimed(d.ctx, job.ID); cancelErr != nil {
				return errors.Wrap(cancelErr, "failed to cancel orphaned job")
			}
			job.Status = StatusCancelled
			if d.broadcaster != nil {
				d.broadcaster.BroadcastJobCancelled(job)
			}
			return nil
		}
		return errors.Wrap(err, "failed to resolve person")
	}

	startTime := time.Now()
	outcomes := d.applier.ApplyNumber(d.ctx, person.Mobile)
	durationMs := int(time.Since(startTime).Milliseconds())

	if sbc.AllSuccessful(outcomes) {
		if err := d.store.MarkApplied(d.ctx, job.ID); err != nil {
			return errors.Wrap(err, "failed to mark job applied")
		}
		job.Status = StatusApplied
		d.log.Infow("Job applied",
			"job_id", job.ID,
			"person", person.Name,
			"mobile", person.Mobile,
			"duration_ms", durationMs)
		if d.broadcaster != nil {
			d.broadcaster.BroadcastJobApplied(job, outcomes)
		}
		return nil
	}

	reason := failureReason(outcomes)
	if err := d.store.MarkFailed(d.ctx, job.ID, reason); err != nil {
		return errors.Wrap(err, "failed to mark job failed")
	}
	job.Status = StatusFailed
	job.FailureReason = reason
	d.log.Errorw("Job failed",
		"job_id", job.ID,
		"person", person.Name,
		"mobile", person.Mobile,
		"failed_hosts", sbc.FailedHosts(outcomes),
		"duration_ms", durationMs)
	if d.broadcaster != nil {
		d.broadcaster.BroadcastJobFailed(job, reason, outcomes)
	}
	return nil
}

// Stats returns dispatcher loop statistics.
func (d *Dispatcher) Stats() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	return map[string]interface{}{
		"last_tick_at":      d.lastTickAt,
		"ticks_since_start": d.ticksSinceStart,
		"interval":          d.interval,
	}
}

// failureReason summarizes error outcomes for the job's history record.
func failureReason(outcomes []sbc.Outcome) string {
	var parts []string
	for _, o := range outcomes {
		if !o.OK() {
			parts = append(parts, fmt.Sprintf("%s: %s", o.Host, o.Message))
		}
	}
	if len(parts) == 0 {
		return "no gateway targets configured"
	}
	return strings.Join(parts, "; ")
}
