package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/d60-Lab/post-scheduler/internal/model"
	"github.com/d60-Lab/post-scheduler/internal/repository"
)

// Errors carried by skipped outcomes and returned by RunCycle.
var (
	ErrNoCredential     = errors.New("no credential available")
	ErrPostNotFound     = repository.ErrPostNotFound
	ErrAlreadyPublished = repository.ErrPostPublished
	ErrPostLocked       = errors.New("post is being published by another attempt")
	ErrCycleInFlight    = errors.New("publish cycle already in flight")
	ErrRetryExhausted   = errors.New("automatic retries exhausted")
	ErrOutcomeUnknown   = errors.New("previous publish outcome unknown")
	ErrNotDue           = errors.New("post is no longer due")
)

// TransportFailure the remote rejected the post or could not be reached; nothing was published.
type TransportFailure struct {
	PostID string
	Cause  error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("publish post %s: %v", e.PostID, e.Cause)
}

func (e *TransportFailure) Unwrap() error { return e.Cause }

// PartialSuccess the remote side effect happened (or may have happened) but the
// local state does not reflect it. RemoteID is empty when the remote outcome is unknown.
type PartialSuccess struct {
	PostID   string
	RemoteID string
	Cause    error
}

func (e *PartialSuccess) Error() string {
	if e.RemoteID == "" {
		return fmt.Sprintf("publish post %s: remote outcome unknown: %v", e.PostID, e.Cause)
	}
	return fmt.Sprintf("publish post %s: published remotely as %s but not recorded: %v", e.PostID, e.RemoteID, e.Cause)
}

func (e *PartialSuccess) Unwrap() error { return e.Cause }

// OutcomeKind classifies a publish attempt.
type OutcomeKind string

const (
	OutcomePublished OutcomeKind = "published"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomePartial   OutcomeKind = "partial"
	OutcomeSkipped   OutcomeKind = "skipped"
)

// SkipReason why an attempt did not reach the transport.
type SkipReason string

const (
	SkipNoCredential     SkipReason = "no_credential"
	SkipPostNotFound     SkipReason = "post_not_found"
	SkipAlreadyPublished SkipReason = "already_published"
	SkipLocked           SkipReason = "locked"
	SkipNotDue           SkipReason = "not_due"
	SkipRetryExhausted   SkipReason = "retry_exhausted"
	SkipOutcomeUnknown   SkipReason = "outcome_unknown"
)

// Outcome result of one publish attempt.
type Outcome struct {
	PostID         string           `json:"post_id"`
	Kind           OutcomeKind      `json:"kind"`
	Reason         SkipReason       `json:"reason,omitempty"`
	PreviousStatus model.PostStatus `json:"previous_status"`
	NewStatus      model.PostStatus `json:"new_status"`
	RemoteID       string           `json:"remote_id,omitempty"`
	Error          string           `json:"error,omitempty"`
	// Retryable false for partial outcomes: the post may already be live.
	Retryable bool  `json:"retryable"`
	Err       error `json:"-"`
}

func published(p *model.Post, prev model.PostStatus, remoteID string) Outcome {
	return Outcome{
		PostID:         p.ID,
		Kind:           OutcomePublished,
		PreviousStatus: prev,
		NewStatus:      model.PostStatusPublished,
		RemoteID:       remoteID,
	}
}

func failed(id string, prev model.PostStatus, err error) Outcome {
	return Outcome{
		PostID:         id,
		Kind:           OutcomeFailed,
		PreviousStatus: prev,
		NewStatus:      prev,
		Retryable:      true,
		Err:            err,
		Error:          err.Error(),
	}
}

func partial(id string, prev model.PostStatus, err *PartialSuccess) Outcome {
	return Outcome{
		PostID:         id,
		Kind:           OutcomePartial,
		PreviousStatus: prev,
		NewStatus:      prev,
		RemoteID:       err.RemoteID,
		Err:            err,
		Error:          err.Error(),
	}
}

func skipped(id string, prev model.PostStatus, reason SkipReason, err error) Outcome {
	o := Outcome{
		PostID:         id,
		Kind:           OutcomeSkipped,
		Reason:         reason,
		PreviousStatus: prev,
		NewStatus:      prev,
		Err:            err,
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// BatchResult aggregated result of one scan-and-publish cycle.
type BatchResult struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Due          int           `json:"due"`
	Published    int           `json:"published"`
	Failed       int           `json:"failed"`
	Partial      int           `json:"partial"`
	Skipped      int           `json:"skipped"`
	NoCredential int           `json:"skipped_no_credential"`
	Outcomes     []Outcome     `json:"outcomes"`
}

func (r *BatchResult) add(o Outcome) {
	switch o.Kind {
	case OutcomePublished:
		r.Published++
	case OutcomeFailed:
		r.Failed++
	case OutcomePartial:
		r.Partial++
	case OutcomeSkipped:
		r.Skipped++
		if o.Reason == SkipNoCredential {
			r.NoCredential++
		}
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Empty no post was due.
func (r *BatchResult) Empty() bool { return len(r.Outcomes) == 0 }
