// Package poller drives the assignment-request cycle: it checks the
// outstanding request, the rate limit and the monitored repositories, and
// posts at most one request per cycle.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/danielolaszy/issuebot/internal/eligibility"
	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/internal/ports"
	"github.com/danielolaszy/issuebot/internal/request"
	"github.com/danielolaszy/issuebot/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrNotInitialized is returned when a cycle is attempted before state was loaded.
	ErrNotInitialized = errors.New("poller not initialized: state must be loaded first")
	// ErrPersist marks a cycle that could not make its state change durable.
	ErrPersist = errors.New("failed to persist request state")
)

// Outcome summarizes what a cycle did.
type Outcome string

const (
	// OutcomeWaiting means a request is outstanding and has not expired.
	OutcomeWaiting Outcome = "waiting"
	// OutcomeThrottled means the rate-limit headroom was below the floor.
	OutcomeThrottled Outcome = "throttled"
	// OutcomeRequested means a comment was posted and recorded.
	OutcomeRequested Outcome = "requested"
	// OutcomeNoCandidate means no repository had an eligible issue.
	OutcomeNoCandidate Outcome = "no_candidate"
	// OutcomePersistRetry means a posted request is still waiting to be persisted.
	OutcomePersistRetry Outcome = "persist_retry"
)

// CycleResult describes one completed cycle.
type CycleResult struct {
	CycleID string
	Outcome Outcome
	// Released is the request whose cooldown expired during this cycle.
	Released *models.ActiveRequest
	// Request is the request posted during this cycle.
	Request *models.ActiveRequest
	// Remaining is the rate-limit headroom observed, when queried.
	Remaining int
}

// Options carries the poller settings taken from configuration.
type Options struct {
	Repositories     []models.RepositoryRule
	PollInterval     time.Duration
	MaxJitter        time.Duration
	Cooldown         time.Duration
	RateLimitFloor   int
	CommentTemplates []string
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(clock ports.Clock) Option {
	return func(p *Poller) { p.clock = clock }
}

// WithIntn replaces the random source used to pick comment templates.
func WithIntn(intn func(n int) int) Option {
	return func(p *Poller) { p.intn = intn }
}

// WithJitter replaces the per-tick delay function.
func WithJitter(jitter func(limit time.Duration) time.Duration) Option {
	return func(p *Poller) { p.jitter = jitter }
}

type inspectRequest struct {
	reply chan request.Snapshot
}

// Poller owns the request tracker. Only the goroutine running Run (or the
// caller of RunCycle) touches it; Snapshot reaches it through a channel.
type Poller struct {
	opts    Options
	source  ports.IssueSource
	store   ports.StateStore
	tracker *request.Tracker
	filters []*eligibility.Filter
	clock   ports.Clock
	intn    func(n int) int
	jitter  func(limit time.Duration) time.Duration

	initialized bool
	// uncommitted holds a posted request whose persistence failed.
	uncommitted *request.Transition

	mu sync.Mutex
	// loopDone is non-nil while Run is active and closed when it returns.
	loopDone chan struct{}
	inspect  chan inspectRequest
}

// New creates a Poller. Initialize must succeed before any cycle runs.
func New(opts Options, source ports.IssueSource, store ports.StateStore, options ...Option) *Poller {
	p := &Poller{
		opts:    opts,
		source:  source,
		store:   store,
		tracker: request.NewTracker(),
		clock:   ports.SystemClock{},
		intn:    rand.IntN,
		jitter:  randomJitter,
		inspect: make(chan inspectRequest),
	}
	for _, option := range options {
		option(p)
	}
	for _, rule := range opts.Repositories {
		p.filters = append(p.filters, eligibility.NewFilter(rule))
	}
	return p
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

// Initialize loads the persisted request and processed set.
func (p *Poller) Initialize(ctx context.Context) error {
	active, err := p.store.LoadActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active request: %w", err)
	}

	processed, err := p.store.LoadProcessed(ctx)
	if err != nil {
		return fmt.Errorf("failed to load processed issues: %w", err)
	}

	p.tracker.Restore(active, processed)
	p.initialized = true

	if active != nil {
		logging.Info("restored outstanding request",
			"repository", active.Repository(),
			"issue_number", active.IssueNumber,
			"expires_at", active.ExpiresAt)
	}
	logging.Info("state loaded",
		"phase", p.tracker.Phase(),
		"processed_count", processed.Len())

	return nil
}

// Run executes one cycle per poll interval, each delayed by a random jitter,
// until ctx is cancelled. The first cycle starts right away.
func (p *Poller) Run(ctx context.Context) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if p.opts.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.opts.PollInterval)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.loopDone = done
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.loopDone = nil
		p.mu.Unlock()
		close(done)
	}()

	logging.Info("starting issue assignment poller",
		"repositories", len(p.opts.Repositories),
		"poll_interval", p.opts.PollInterval,
		"cooldown", p.opts.Cooldown)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		timer := time.NewTimer(p.jitter(p.opts.MaxJitter))
		ok := p.waitFor(ctx, timer.C)
		timer.Stop()
		if !ok {
			break
		}

		if _, err := p.RunCycle(ctx); err != nil {
			logging.Warn("error during polling", "error", err)
		}

		if !p.waitFor(ctx, ticker.C) {
			break
		}
	}

	logging.Info("poller stopped")
	return nil
}

// waitFor blocks until ch fires or ctx is done, serving inspection requests
// in the meantime. It reports false when ctx ended the wait.
func (p *Poller) waitFor(ctx context.Context, ch <-chan time.Time) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ch:
			return true
		case req := <-p.inspect:
			req.reply <- p.tracker.Snapshot()
		}
	}
}

// Snapshot returns a copy of the tracker state. While Run is active the copy
// is taken by the Run goroutine between cycles.
func (p *Poller) Snapshot(ctx context.Context) (request.Snapshot, error) {
	done := p.running()
	if done == nil {
		return p.tracker.Snapshot(), nil
	}

	req := inspectRequest{reply: make(chan request.Snapshot, 1)}
	select {
	case p.inspect <- req:
	case <-done:
		return p.tracker.Snapshot(), nil
	case <-ctx.Done():
		return request.Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return request.Snapshot{}, ctx.Err()
	}
}

// running returns the done channel of the active Run, or nil.
func (p *Poller) running() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopDone
}

// RunCycle performs a single decision cycle.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{CycleID: uuid.NewString()[:8]}
	if !p.initialized {
		return result, ErrNotInitialized
	}

	log := logging.With("cycle_id", result.CycleID)

	if p.uncommitted != nil {
		if err := p.commit(ctx, *p.uncommitted); err != nil {
			result.Outcome = OutcomePersistRetry
			return result, err
		}
		log.Info("persisted previously posted request", "issue_number", p.uncommitted.Active.IssueNumber)
		p.uncommitted = nil
	}

	now := p.clock.Now()
	if active := p.tracker.Active(); active != nil {
		if !active.Expired(now) {
			log.Debug("waiting for assignment",
				"repository", active.Repository(),
				"issue_number", active.IssueNumber,
				"expires_at", active.ExpiresAt)
			result.Outcome = OutcomeWaiting
			return result, nil
		}

		released, _ := p.tracker.Expire(now)
		result.Released = &released
		log.Info("assignment request has timed out",
			"repository", released.Repository(),
			"issue_number", released.IssueNumber)

		if err := p.store.SaveActive(ctx, nil); err != nil {
			// the persisted request is expired as well, so a reload still yields Idle
			log.Warn("failed to clear persisted request", "error", err)
		}
	}

	remaining, err := p.source.RateLimitRemaining(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to check rate limit: %w", err)
	}
	result.Remaining = remaining
	log.Debug("github api rate limit", "remaining", remaining)

	if remaining < p.opts.RateLimitFloor {
		log.Info("rate limit headroom below floor, skipping scan",
			"remaining", remaining,
			"floor", p.opts.RateLimitFloor)
		result.Outcome = OutcomeThrottled
		return result, nil
	}

	for _, filter := range p.filters {
		rule := filter.Rule()
		posted, err := p.processRepository(ctx, log, filter)
		if errors.Is(err, ErrPersist) {
			result.Outcome = OutcomePersistRetry
			return result, err
		}
		if err != nil {
			log.Warn("error processing repository",
				"repository", rule.FullName(),
				"error", err)
			continue
		}
		if posted != nil {
			result.Outcome = OutcomeRequested
			result.Request = posted
			return result, nil
		}
	}

	log.Debug("no eligible issues found in this cycle")
	result.Outcome = OutcomeNoCandidate
	return result, nil
}

// processRepository posts a request on the oldest eligible issue of the rule, if
// any. It returns the recorded request, or nil when nothing was posted.
func (p *Poller) processRepository(ctx context.Context, log *slog.Logger, filter *eligibility.Filter) (*models.ActiveRequest, error) {
	rule := filter.Rule()
	log.Info("checking for issues", "repository", rule.FullName())

	issues, err := p.source.ListOpenIssues(ctx, rule.Owner, rule.Name)
	if err != nil {
		return nil, err
	}
	log.Debug("found issues", "repository", rule.FullName(), "count", len(issues))

	issue, ok := filter.Select(issues, p.tracker.Processed())
	if !ok {
		return nil, nil
	}

	log.Info("found eligible issue",
		"repository", rule.FullName(),
		"issue_number", issue.Number,
		"title", issue.Title)

	body := PickComment(p.opts.CommentTemplates, p.intn)
	if err := p.source.PostComment(ctx, rule.Owner, rule.Name, issue.Number, body); err != nil {
		return nil, fmt.Errorf("failed to request assignment: %w", err)
	}

	tr := p.tracker.Record(rule, issue, p.clock.Now(), p.opts.Cooldown)
	if err := p.commit(ctx, tr); err != nil {
		// the comment is out; keep the transition so the next cycle persists
		// it instead of scanning again
		p.uncommitted = &tr
		return nil, err
	}

	log.Info("issue marked as active",
		"repository", rule.FullName(),
		"issue_number", issue.Number,
		"expires_at", tr.Active.ExpiresAt)

	active := tr.Active
	return &active, nil
}

// commit persists tr and applies it to the tracker only on success.
func (p *Poller) commit(ctx context.Context, tr request.Transition) error {
	active := tr.Active
	if err := p.store.Commit(ctx, &active, tr.Processed); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	p.tracker.Commit(tr)
	return nil
}
