// Package models defines data structures shared across the application.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// IssueSnapshot is a point-in-time view of an open GitHub issue. It is built
// once per decision cycle and never mutated afterwards.
type IssueSnapshot struct {
	// ID is the global GitHub identifier; unlike Number it is never reused
	ID int64

	// Number is the issue number in its repository (e.g., 42)
	Number int

	// Title is the issue's title or summary
	Title string

	// URL is the HTML URL of the issue
	URL string

	// State is the current state of the issue
	State string

	// CreatedAt is the timestamp when the issue was created
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the issue was last updated
	UpdatedAt time.Time

	// Assigned reports whether the issue has an assignee or a non-empty assignee list
	Assigned bool

	// Labels is a slice of label names attached to the issue
	Labels []string
}

// RepositoryRule describes a monitored repository and which of its issues qualify.
type RepositoryRule struct {
	Owner         string   `mapstructure:"owner" toml:"owner" yaml:"owner"`
	Name          string   `mapstructure:"repo" toml:"repo" yaml:"repo"`
	Labels        []string `mapstructure:"labels" toml:"labels" yaml:"labels"`
	ExcludeLabels []string `mapstructure:"exclude_labels" toml:"exclude_labels,omitempty" yaml:"exclude_labels,omitempty"`
	TitlePattern  string   `mapstructure:"title_regex" toml:"title_regex,omitempty" yaml:"title_regex,omitempty"`
}

// FullName returns the repository in "owner/repo" form.
func (r RepositoryRule) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// ActiveRequest is the single outstanding assignment request.
type ActiveRequest struct {
	RepoOwner   string    `json:"repo_owner"`
	RepoName    string    `json:"repo_name"`
	IssueNumber int       `json:"issue_number"`
	IssueURL    string    `json:"issue_url"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"timeout"`
}

// Expired reports whether the cooldown has elapsed at now.
func (a ActiveRequest) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Repository returns the owning repository in "owner/repo" form.
func (a ActiveRequest) Repository() string {
	return fmt.Sprintf("%s/%s", a.RepoOwner, a.RepoName)
}

// ProcessedSet holds the identifiers of every issue a request was ever posted on.
// Entries are never removed.
type ProcessedSet map[int64]struct{}

// NewProcessedSet builds a set from the given identifiers.
func NewProcessedSet(ids ...int64) ProcessedSet {
	set := make(ProcessedSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id has been processed.
func (s ProcessedSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Add records id as processed.
func (s ProcessedSet) Add(id int64) {
	s[id] = struct{}{}
}

// Len returns the number of processed identifiers.
func (s ProcessedSet) Len() int {
	return len(s)
}

// Clone returns an independent copy of the set.
func (s ProcessedSet) Clone() ProcessedSet {
	out := make(ProcessedSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the identifiers in ascending order.
func (s ProcessedSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarshalJSON encodes the set as a sorted array of integers.
func (s ProcessedSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of integers into the set.
func (s *ProcessedSet) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewProcessedSet(ids...)
	return nil
}
