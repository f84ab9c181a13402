// Package request tracks the single outstanding assignment request and the
// set of issues a request has ever been posted on.
//
// A Tracker has exactly one owner, the poller's cycle executor, and is not
// safe for concurrent use.
package request

import (
	"time"

	"github.com/danielolaszy/issuebot/pkg/models"
)

// Phase is the state of the request lifecycle.
type Phase int

const (
	// Idle means no request is outstanding and a new one may be attempted.
	Idle Phase = iota
	// Pending means a request was posted and its cooldown has not been observed as elapsed.
	Pending
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// Tracker holds the active request and the processed set.
type Tracker struct {
	active    *models.ActiveRequest
	processed models.ProcessedSet
}

// NewTracker returns an idle tracker with an empty processed set.
func NewTracker() *Tracker {
	return &Tracker{processed: models.NewProcessedSet()}
}

// Restore replaces the tracker state with values loaded from storage.
func (t *Tracker) Restore(active *models.ActiveRequest, processed models.ProcessedSet) {
	if active != nil {
		copied := *active
		active = &copied
	}
	if processed == nil {
		processed = models.NewProcessedSet()
	}
	t.active = active
	t.processed = processed.Clone()
}

// Phase returns Pending while a request is held, Idle otherwise. Expiry is
// not evaluated here; see Expire.
func (t *Tracker) Phase() Phase {
	if t.active == nil {
		return Idle
	}
	return Pending
}

// Active returns a copy of the outstanding request, or nil.
func (t *Tracker) Active() *models.ActiveRequest {
	if t.active == nil {
		return nil
	}
	copied := *t.active
	return &copied
}

// Expire releases the outstanding request if now is at or past its expiry.
// It returns the released request and true when the transition happened.
func (t *Tracker) Expire(now time.Time) (models.ActiveRequest, bool) {
	if t.active == nil || !t.active.Expired(now) {
		return models.ActiveRequest{}, false
	}
	released := *t.active
	t.active = nil
	return released, true
}

// IsProcessed reports whether a request was ever posted on the issue.
func (t *Tracker) IsProcessed(id int64) bool {
	return t.processed.Contains(id)
}

// Processed returns a copy of the processed set.
func (t *Tracker) Processed() models.ProcessedSet {
	return t.processed.Clone()
}

// Transition is a prepared Idle to Pending move. It is applied with Commit
// once the new state has been persisted; discarding it leaves the tracker
// untouched.
type Transition struct {
	IssueID   int64
	Active    models.ActiveRequest
	Processed models.ProcessedSet
}

// Record prepares the transition for a request successfully posted on issue
// at now. The tracker itself is not modified.
func (t *Tracker) Record(rule models.RepositoryRule, issue models.IssueSnapshot, now time.Time, cooldown time.Duration) Transition {
	processed := t.processed.Clone()
	processed.Add(issue.ID)

	return Transition{
		IssueID: issue.ID,
		Active: models.ActiveRequest{
			RepoOwner:   rule.Owner,
			RepoName:    rule.Name,
			IssueNumber: issue.Number,
			IssueURL:    issue.URL,
			RequestedAt: now,
			ExpiresAt:   now.Add(cooldown),
		},
		Processed: processed,
	}
}

// Commit applies a transition prepared by Record.
func (t *Tracker) Commit(tr Transition) {
	active := tr.Active
	t.active = &active
	t.processed = tr.Processed.Clone()
}

// Snapshot is a read-only copy of the tracker state.
type Snapshot struct {
	Phase     Phase
	Active    *models.ActiveRequest
	Processed models.ProcessedSet
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Phase:     t.Phase(),
		Active:    t.Active(),
		Processed: t.Processed(),
	}
}
