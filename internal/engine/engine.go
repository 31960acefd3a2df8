package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/post-scheduler/internal/model"
	"github.com/d60-Lab/post-scheduler/pkg/errtrack"
	"github.com/d60-Lab/post-scheduler/pkg/logger"
)

// Store is the slice of the post store the engine needs.
type Store interface {
	List(ctx context.Context) ([]*model.Post, error)
	Get(ctx context.Context, id string) (*model.Post, error)
	MarkPublished(ctx context.Context, id, remoteID string, at time.Time) (*model.Post, error)
}

// Transport publishes text on behalf of the token owner and returns the remote id.
// Errors implementing Ambiguous() bool (returning true) mean the request may have
// reached the remote side; they are never treated as plain failures.
type Transport interface {
	CreatePost(ctx context.Context, token, text string) (string, error)
}

type ambiguous interface{ Ambiguous() bool }

type remoteIDHint interface{ RemoteIDHint() string }

// Option configures an Engine.
type Option func(*Engine)

// WithLocker replaces the in-process per-post locker, e.g. with a RedisLocker
// shared by several instances.
func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }

// WithClock overrides the time source used for due checks and publish timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithMaxFailures stops automatic retries of a post after n consecutive transport
// failures. 0 means retry on every cycle.
func WithMaxFailures(n int) Option { return func(e *Engine) { e.maxFailures = n } }

type mode int

const (
	modeAuto mode = iota
	modeManual
)

// Engine decides which posts are due and drives each through the publish transition.
type Engine struct {
	store       Store
	transport   Transport
	locker      Locker
	now         func() time.Time
	maxFailures int
	tracer      trace.Tracer

	running atomic.Bool

	mu       sync.Mutex
	failures map[string]int
	// unsettled posts whose remote publish happened or may have happened without
	// a local record; value is the remote id, empty when unknown.
	unsettled map[string]string
}

// New builds an engine over the store and transport. Without options it uses an
// in-process locker, time.Now and unlimited retries.
func New(store Store, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		transport: transport,
		locker:    NewMemoryLocker(),
		now:       time.Now,
		tracer:    otel.Tracer("github.com/d60-Lab/post-scheduler/internal/engine"),
		failures:  make(map[string]int),
		unsettled: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DuePosts filters the snapshot to scheduled posts whose time has come, deduplicated
// by id and ordered by scheduled time then id.
func DuePosts(posts []*model.Post, now time.Time) []*model.Post {
	seen := make(map[string]struct{}, len(posts))
	due := make([]*model.Post, 0)
	for _, p := range posts {
		if p == nil || !p.IsDue(now) {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		due = append(due, p)
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].ScheduledAt, due[j].ScheduledAt
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return due[i].ID < due[j].ID
	})
	return due
}

// RunCycle loads the current posts, publishes every due one and reports per-post
// outcomes. A store failure while loading the snapshot aborts the whole cycle.
func (e *Engine) RunCycle(ctx context.Context, now time.Time, token string) (res BatchResult, err error) {
	if !e.running.CompareAndSwap(false, true) {
		return BatchResult{}, ErrCycleInFlight
	}
	defer e.running.Store(false)

	ctx, span := e.tracer.Start(ctx, "engine.RunCycle")
	defer span.End()

	res.StartedAt = now
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	posts, err := e.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load snapshot")
		logger.Error("publish cycle aborted: cannot load posts", zap.Error(err))
		errtrack.Capture(err, map[string]string{"component": "engine", "stage": "load"})
		return res, err
	}

	due := DuePosts(posts, now)
	res.Due = len(due)
	span.SetAttributes(attribute.Int("posts.total", len(posts)), attribute.Int("posts.due", len(due)))
	if len(due) == 0 {
		return res, nil
	}

	for _, p := range due {
		res.add(e.attempt(ctx, p.ID, p.Status, token, now, modeAuto))
	}

	span.SetAttributes(
		attribute.Int("outcome.published", res.Published),
		attribute.Int("outcome.failed", res.Failed),
		attribute.Int("outcome.partial", res.Partial),
		attribute.Int("outcome.skipped", res.Skipped),
	)
	logger.Info("publish cycle finished",
		zap.Int("due", res.Due),
		zap.Int("published", res.Published),
		zap.Int("failed", res.Failed),
		zap.Int("partial", res.Partial),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// AttemptPublish runs the automatic publish transition for one post.
func (e *Engine) AttemptPublish(ctx context.Context, post *model.Post, token string) Outcome {
	return e.attempt(ctx, post.ID, post.Status, token, e.now(), modeAuto)
}

// PublishNow force-publishes a draft or scheduled post regardless of its schedule.
// The returned error is the outcome's error, if any.
func (e *Engine) PublishNow(ctx context.Context, id, token string) (Outcome, error) {
	e.mu.Lock()
	delete(e.failures, id)
	e.mu.Unlock()

	o := e.attempt(ctx, id, "", token, e.now(), modeManual)
	return o, o.Err
}

// Reset forgets the failure streak and an unknown publish outcome of a post. Called
// when the user edits or reschedules it. A known remote id is kept: the post is
// already live and only the local record is missing.
func (e *Engine) Reset(id string) {
	e.mu.Lock()
	delete(e.failures, id)
	if remoteID, ok := e.unsettled[id]; ok && remoteID == "" {
		delete(e.unsettled, id)
	}
	e.mu.Unlock()
}

// Unsettled reports whether the post has a remote publish without a local record.
func (e *Engine) Unsettled(id string) (remoteID string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	remoteID, ok = e.unsettled[id]
	return remoteID, ok
}

func (e *Engine) attempt(ctx context.Context, id string, prev model.PostStatus, token string, now time.Time, m mode) Outcome {
	ctx, span := e.tracer.Start(ctx, "engine.attempt", trace.WithAttributes(attribute.String("post.id", id)))
	defer span.End()

	o := e.transition(ctx, id, prev, token, now, m)
	span.SetAttributes(attribute.String("outcome.kind", string(o.Kind)))
	if o.Reason != "" {
		span.SetAttributes(attribute.String("outcome.reason", string(o.Reason)))
	}
	if o.Err != nil && o.Kind != OutcomeSkipped {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, string(o.Kind))
	}
	return o
}

func (e *Engine) transition(ctx context.Context, id string, prev model.PostStatus, token string, now time.Time, m mode) Outcome {
	if token == "" {
		return skipped(id, prev, SkipNoCredential, ErrNoCredential)
	}

	release, err := e.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return skipped(id, prev, SkipLocked, ErrPostLocked)
		}
		return failed(id, prev, err)
	}
	defer release()

	post, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return skipped(id, prev, SkipPostNotFound, ErrPostNotFound)
		}
		return failed(id, prev, err)
	}
	prev = post.Status

	if post.IsPublished() {
		e.settle(id)
		return skipped(id, prev, SkipAlreadyPublished, ErrAlreadyPublished)
	}
	if m == modeAuto && !post.IsDue(now) {
		return skipped(id, prev, SkipNotDue, ErrNotDue)
	}

	if remoteID, ok := e.Unsettled(id); ok {
		if remoteID == "" {
			return skipped(id, prev, SkipOutcomeUnknown, ErrOutcomeUnknown)
		}
		// 远端已发布，只补写本地状态
		return e.record(ctx, post, prev, remoteID, now)
	}

	if m == modeAuto && e.exhausted(id) {
		return skipped(id, prev, SkipRetryExhausted, ErrRetryExhausted)
	}

	remoteID, err := e.transport.CreatePost(ctx, token, post.Content)
	if err != nil {
		if isAmbiguous(err) {
			hint := ""
			var h remoteIDHint
			if errors.As(err, &h) {
				hint = h.RemoteIDHint()
			}
			e.markUnsettled(id, hint)
			ps := &PartialSuccess{PostID: id, RemoteID: hint, Cause: err}
			logger.Error("publish outcome unknown", zap.String("post_id", id), zap.Error(err))
			errtrack.Capture(ps, map[string]string{"post_id": id, "kind": string(OutcomePartial)})
			return partial(id, prev, ps)
		}
		n := e.recordFailure(id)
		logger.Warn("publish failed", zap.String("post_id", id), zap.Int("consecutive_failures", n), zap.Error(err))
		return failed(id, prev, &TransportFailure{PostID: id, Cause: err})
	}

	return e.record(ctx, post, prev, remoteID, now)
}

// record persists a remote publish. The write is detached from ctx cancellation
// because the remote side effect has already happened.
func (e *Engine) record(ctx context.Context, post *model.Post, prev model.PostStatus, remoteID string, now time.Time) Outcome {
	wctx := context.WithoutCancel(ctx)
	if _, err := e.store.MarkPublished(wctx, post.ID, remoteID, now); err != nil {
		e.markUnsettled(post.ID, remoteID)
		ps := &PartialSuccess{PostID: post.ID, RemoteID: remoteID, Cause: err}
		logger.Error("published remotely but not recorded",
			zap.String("post_id", post.ID), zap.String("remote_id", remoteID), zap.Error(err))
		errtrack.Capture(ps, map[string]string{"post_id": post.ID, "kind": string(OutcomePartial)})
		return partial(post.ID, prev, ps)
	}
	e.settle(post.ID)
	logger.Info("post published", zap.String("post_id", post.ID), zap.String("remote_id", remoteID))
	return published(post, prev, remoteID)
}

func (e *Engine) settle(id string) {
	e.mu.Lock()
	delete(e.failures, id)
	delete(e.unsettled, id)
	e.mu.Unlock()
}

func (e *Engine) markUnsettled(id, remoteID string) {
	e.mu.Lock()
	e.unsettled[id] = remoteID
	e.mu.Unlock()
}

func (e *Engine) recordFailure(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[id]++
	return e.failures[id]
}

func (e *Engine) exhausted(id string) bool {
	if e.maxFailures <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures[id] >= e.maxFailures
}

// isAmbiguous an explicit Ambiguous() answer wins over the deadline check.
func isAmbiguous(err error) bool {
	var a ambiguous
	if errors.As(err, &a) {
		return a.Ambiguous()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
