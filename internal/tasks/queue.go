package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/shared"
)

const (
	defaultMaxRetries = 3
	defaultSyncDelay  = time.Second
	defaultMaxJitter  = time.Second
)

// SyncRunner performs the work behind one dequeued sync job.
type SyncRunner interface {
	RunSync(ctx context.Context, userID, service string) (*models.SyncStats, error)
}

// AuditStore records the outcome of every sync attempt, including jobs
// dropped after exhausting retries. Nothing leaves the queue silently.
type AuditStore interface {
	RecordSync(entry *models.SyncAuditEntry) error
}

// queueEntry is one pending sync job. At most one entry exists per
// (user, service) pair; enqueues and retries for a pair that is already
// queued fold into the existing entry under the scheduler lock.
type queueEntry struct {
	userID     string
	service    string
	priority   int
	retryCount int
	enqueuedAt time.Time
	readyAt    time.Time
}

func (e *queueEntry) key() string { return e.userID + "/" + e.service }

// QueueItemView is a read-only snapshot of one pending entry.
type QueueItemView struct {
	UserID     string
	Service    string
	Priority   int
	RetryCount int
	ReadyAt    time.Time
}

// Scheduler is the sync work queue. It drains highest-priority-first and
// runs at most one sync at a time process-wide, bounding load on remote
// services. At most one entry exists per (user, service) pair; enqueueing
// a duplicate merges by raising the priority to the max of the two.
type Scheduler struct {
	runner SyncRunner
	audit  AuditStore
	logger *log.Logger

	maxRetries int
	baseDelay  time.Duration
	maxJitter  time.Duration

	mu      sync.Mutex
	entries []*queueEntry
	running bool

	wake   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// SchedulerOpts configures a [Scheduler]. Zero values fall back to defaults.
type SchedulerOpts struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxJitter  time.Duration
	Logger     *log.Logger
}

func NewScheduler(runner SyncRunner, audit AuditStore, opts SchedulerOpts) *Scheduler {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultSyncDelay
	}
	if opts.MaxJitter <= 0 {
		opts.MaxJitter = defaultMaxJitter
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	opts.Logger = shared.WithLogger(opts.Logger, "component", "sync-queue")

	return &Scheduler{
		runner:     runner,
		audit:      audit,
		logger:     opts.Logger,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		maxJitter:  opts.MaxJitter,
		wake:       make(chan struct{}, 1),
	}
}

// Enqueue adds a sync job. Jobs may be enqueued before Start; they drain
// once the scheduler runs.
func (s *Scheduler) Enqueue(userID, service string, priority int) error {
	if userID == "" || service == "" {
		return fmt.Errorf("%w: user id and service", shared.ErrMissingArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, entry := range s.entries {
		if entry.userID == userID && entry.service == service {
			if priority > entry.priority {
				entry.priority = priority
			}
			s.logger.Debug("merged sync job", "key", entry.key(), "priority", entry.priority)
			return nil
		}
	}

	s.entries = append(s.entries, &queueEntry{
		userID:     userID,
		service:    service,
		priority:   priority,
		enqueuedAt: now,
		readyAt:    now,
	})
	s.logger.Debug("enqueued sync job", "user", userID, "service", service, "priority", priority)

	s.signal()
	return nil
}

// Pending returns a snapshot of queued jobs, highest priority first.
func (s *Scheduler) Pending() []QueueItemView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]QueueItemView, 0, len(s.entries))
	for _, entry := range s.entries {
		views = append(views, QueueItemView{
			UserID:     entry.userID,
			Service:    entry.service,
			Priority:   entry.priority,
			RetryCount: entry.retryCount,
			ReadyAt:    entry.readyAt,
		})
	}
	for i := 1; i < len(views); i++ {
		for j := i; j > 0 && views[j].Priority > views[j-1].Priority; j-- {
			views[j], views[j-1] = views[j-1], views[j]
		}
	}
	return views
}

// Start launches the drain loop. It returns immediately; Stop shuts the
// loop down and waits for an in-flight job to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.drain(ctx)
	return nil
}

// Stop cancels the drain loop and blocks until it exits.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) drain(ctx context.Context) {
	defer close(s.done)

	for {
		entry, wait := s.next()
		if entry == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			case <-time.After(wait):
				continue
			}
		}

		s.process(ctx, entry)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// next pops the highest-priority entry that is ready to run, or returns
// how long to sleep before one becomes ready.
func (s *Scheduler) next() (*queueEntry, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return nil, time.Hour
	}

	now := time.Now()
	best := -1
	soonest := time.Hour
	for i, entry := range s.entries {
		if entry.readyAt.After(now) {
			if until := time.Until(entry.readyAt); until < soonest {
				soonest = until
			}
			continue
		}
		if best == -1 || entry.priority > s.entries[best].priority {
			best = i
		}
	}

	if best == -1 {
		return nil, soonest
	}

	entry := s.entries[best]
	s.entries = append(s.entries[:best], s.entries[best+1:]...)
	return entry, 0
}

// process runs one sync job and handles its retry or audit bookkeeping.
func (s *Scheduler) process(ctx context.Context, entry *queueEntry) {
	s.logger.Info("sync started", "user", entry.userID, "service", entry.service, "attempt", entry.retryCount+1)

	stats, err := s.runner.RunSync(ctx, entry.userID, entry.service)
	if err == nil {
		s.recordOutcome(entry, models.SyncOutcomeSuccess, "", stats)
		s.logger.Info("sync complete", "user", entry.userID, "service", entry.service,
			"added", stats.Added, "removed", stats.Removed, "updated", stats.Updated)
		return
	}

	if ctx.Err() != nil {
		// Shutting down; requeue untouched so a restart can pick it up.
		s.requeue(entry, entry.retryCount, time.Now())
		return
	}

	retryCount := entry.retryCount + 1
	if retryCount >= s.maxRetries {
		cause := fmt.Errorf("%w: %v", shared.ErrQueueExhausted, err)
		s.recordOutcome(entry, models.SyncOutcomeExhausted, cause.Error(), nil)
		s.logger.Error("sync dropped after max retries", "user", entry.userID, "service", entry.service, "error", err)
		return
	}

	delay := RetryDelay(s.baseDelay, retryCount, s.maxJitter)
	s.recordOutcome(entry, models.SyncOutcomeFailed, err.Error(), nil)
	s.requeue(entry, retryCount, time.Now().Add(delay))
	s.logger.Warn("sync failed, scheduled retry",
		"user", entry.userID, "service", entry.service, "retry", retryCount, "delay", delay)
}

// requeue puts a failed job back on the queue. The pair may have been
// re-enqueued while the job was in flight, so merge with any queued entry
// for the same key instead of appending a second one.
func (s *Scheduler) requeue(entry *queueEntry, retryCount int, readyAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, queued := range s.entries {
		if queued.key() == entry.key() {
			if entry.priority > queued.priority {
				queued.priority = entry.priority
			}
			queued.retryCount = retryCount
			queued.readyAt = readyAt
			s.signal()
			return
		}
	}

	s.entries = append(s.entries, &queueEntry{
		userID:     entry.userID,
		service:    entry.service,
		priority:   entry.priority,
		retryCount: retryCount,
		enqueuedAt: entry.enqueuedAt,
		readyAt:    readyAt,
	})
	s.signal()
}

func (s *Scheduler) recordOutcome(entry *queueEntry, outcome models.SyncOutcome, detail string, stats *models.SyncStats) {
	if s.audit == nil {
		return
	}

	audit := &models.SyncAuditEntry{
		ID:        shared.GenerateID(),
		UserID:    entry.userID,
		Service:   entry.service,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if stats != nil {
		audit.Stats = *stats
	}

	if err := s.audit.RecordSync(audit); err != nil {
		s.logger.Error("failed to record sync outcome", "user", entry.userID, "error", err)
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// RetryDelay computes the backoff before retry n (1-based): the base delay
// doubled per prior failure, plus random jitter to spread simultaneous
// retries apart.
func RetryDelay(baseDelay time.Duration, retryCount int, maxJitter time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	delay := baseDelay << (retryCount - 1)
	if maxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(maxJitter)))
	}
	return delay
}
