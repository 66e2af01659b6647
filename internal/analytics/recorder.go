// Package analytics records one row per pipeline run and one row per red-flag
// alert, without ever holding message text.
//
// Writes are queued on a single FIFO worker so a session's create, detection
// and outcome updates reach the store in order, and a slow database never
// delays a response.
package analytics

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/pipeline"
	"github.com/nmiskell11/reframe-app/internal/store"
)

const (
	// DefaultQueueSize bounds the number of pending writes.
	DefaultQueueSize = 256
	// DefaultWriteTimeout bounds a single store write.
	DefaultWriteTimeout = 5 * time.Second
)

type write struct {
	kind string
	id   string
	run  func(ctx context.Context) error
}

// Recorder implements pipeline.Tracker on top of a store.Store.
type Recorder struct {
	store        store.Store
	queue        chan write
	writeTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ pipeline.Tracker = (*Recorder)(nil)

// Option configures a Recorder.
type Option func(*Recorder)

// WithQueueSize sets the pending-write capacity.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan write, n)
		}
	}
}

// WithWriteTimeout sets the per-write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRecorder starts the background writer. Call Close to drain and stop it.
func NewRecorder(s store.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        s,
		queue:        make(chan write, DefaultQueueSize),
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	slog.Debug("Recorder.NewRecorder: analytics worker started", "queue_size", cap(r.queue))
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for w := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		if err := w.run(ctx); err != nil {
			slog.Error("Recorder.run: analytics write failed", "kind", w.kind, "session_id", w.id, "error", err)
		}
		cancel()
	}
	slog.Debug("Recorder.run: analytics worker stopped")
}

// enqueue never blocks; a full queue drops the write.
func (r *Recorder) enqueue(w write) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		slog.Warn("Recorder.enqueue: recorder closed, dropping write", "kind", w.kind, "session_id", w.id)
		return
	}
	select {
	case r.queue <- w:
	default:
		slog.Warn("Recorder.enqueue: queue full, dropping write", "kind", w.kind, "session_id", w.id)
	}
}

// Begin creates the session row and returns its id.
func (r *Recorder) Begin(req models.PipelineRequest, hc *models.HealthCheckResult) string {
	id := uuid.NewString()
	rec := store.SessionRecord{
		ID:               id,
		SessionToken:     req.SessionToken,
		RelationshipType: req.RelationshipType,
		HadContext:       req.HasContext(),
		ContextLength:    utf8.RuneCountInString(strings.TrimSpace(req.Context)),
		MessageLength:    utf8.RuneCountInString(req.Message),
		Stage:            req.Stage,
		QuestionRound:    req.QuestionRound,
		CreatedAt:        r.now(),
	}
	if hc != nil {
		rec.HealthCheckType = hc.Type
	}
	r.enqueue(write{kind: "create_session", id: id, run: func(ctx context.Context) error {
		return r.store.CreateSession(ctx, rec)
	}})
	return id
}

// Detection records a red-flag alert the user is about to see.
func (r *Recorder) Detection(sessionID string, result models.DetectionResult) {
	if sessionID == "" || !result.HasRedFlags {
		return
	}
	rec := store.DetectionRecord{
		SessionID:      sessionID,
		DetectionType:  result.Source,
		Patterns:       append([]string(nil), result.Patterns...),
		Severity:       result.Severity,
		Explanation:    result.Explanation,
		Suggestion:     result.Suggestion,
		UserSawWarning: true,
		CreatedAt:      r.now(),
	}
	r.enqueue(write{kind: "add_detection", id: sessionID, run: func(ctx context.Context) error {
		return r.store.AddDetection(ctx, rec)
	}})
}

// Finish stamps the session's outcome.
func (r *Recorder) Finish(sessionID string, outcome models.Outcome, questionsAsked int) {
	if sessionID == "" {
		return
	}
	out := store.SessionOutcome{
		ID:             sessionID,
		Outcome:        outcome,
		QuestionsAsked: questionsAsked,
		UpdatedAt:      r.now(),
	}
	r.enqueue(write{kind: "update_session", id: sessionID, run: func(ctx context.Context) error {
		return r.store.UpdateSession(ctx, out)
	}})
}

// Close stops accepting writes and waits until the queue is drained or ctx
// is done.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		slog.Warn("Recorder.Close: drain interrupted", "pending", len(r.queue))
		return ctx.Err()
	}
}
