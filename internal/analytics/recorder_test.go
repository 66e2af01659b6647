package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/store"
)

func TestMain(m *testing.M) {
	// The Gemini SDK starts an opencensus stats worker from init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func closeRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
}

func TestRecorder_SessionLifecycle(t *testing.T) {
	s := store.NewInMemoryStore()
	r := NewRecorder(s)

	req := models.PipelineRequest{
		Message:          "you never listen",
		Context:          "  we argued  ",
		RelationshipType: models.RelationshipFriend,
		SessionToken:     "tok",
		Stage:            models.StageInitial,
	}
	id := r.Begin(req, &models.HealthCheckResult{Type: models.HealthCheckControlling})
	require.NotEmpty(t, id)

	r.Detection(id, models.DetectionResult{
		HasRedFlags: true,
		Source:      models.DirectionOutbound,
		Severity:    models.SeverityMedium,
		Patterns:    []string{"CRITICISM"},
		Explanation: "generalizes",
	})
	r.Finish(id, models.OutcomeOutboundAlert, 0)
	closeRecorder(t, r)

	sess, err := s.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "tok", sess.SessionToken)
	assert.True(t, sess.HadContext)
	assert.Equal(t, len("we argued"), sess.ContextLength)
	assert.Equal(t, len("you never listen"), sess.MessageLength)
	assert.Equal(t, models.HealthCheckControlling, sess.HealthCheckType)
	assert.True(t, sess.OutboundTriggered)
	assert.Equal(t, []string{"CRITICISM"}, sess.OutboundPatterns)
	assert.Equal(t, models.OutcomeOutboundAlert, sess.Outcome)

	dets, err := s.ListDetections(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.True(t, dets[0].UserSawWarning)
	assert.Equal(t, models.DirectionOutbound, dets[0].DetectionType)
}

func TestRecorder_IgnoresCleanDetectionsAndEmptyIDs(t *testing.T) {
	s := store.NewInMemoryStore()
	r := NewRecorder(s)

	id := r.Begin(models.PipelineRequest{Message: "hi"}, nil)
	r.Detection(id, models.NoRedFlags(models.DirectionInbound))
	r.Detection("", models.DetectionResult{HasRedFlags: true})
	r.Finish("", models.OutcomeReframe, 0)
	closeRecorder(t, r)

	dets, err := s.ListDetections(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

// blockingStore holds every CreateSession until release is closed.
type blockingStore struct {
	*store.InMemoryStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) CreateSession(ctx context.Context, rec store.SessionRecord) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.InMemoryStore.CreateSession(ctx, rec)
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	bs := &blockingStore{
		InMemoryStore: store.NewInMemoryStore(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	r := NewRecorder(bs, WithQueueSize(1))

	first := r.Begin(models.PipelineRequest{Message: "one"}, nil)
	<-bs.started // worker is now stuck on the first write

	second := r.Begin(models.PipelineRequest{Message: "two"}, nil) // fills the queue
	third := r.Begin(models.PipelineRequest{Message: "three"}, nil) // dropped

	done := make(chan struct{})
	go func() {
		r.Finish(third, models.OutcomeReframe, 0) // must not block either
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Finish blocked on a full queue")
	}

	close(bs.release)
	closeRecorder(t, r)

	ctx := context.Background()
	for _, id := range []string{first, second} {
		sess, err := bs.GetSession(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, sess, "session %s should have been written", id)
	}
	sess, err := bs.GetSession(ctx, third)
	require.NoError(t, err)
	assert.Nil(t, sess, "third session should have been dropped")
}

type failingStore struct {
	*store.InMemoryStore
}

func (failingStore) CreateSession(context.Context, store.SessionRecord) error {
	return errors.New("disk full")
}

func TestRecorder_StoreErrorsAreAbsorbed(t *testing.T) {
	s := failingStore{store.NewInMemoryStore()}
	r := NewRecorder(s)
	id := r.Begin(models.PipelineRequest{Message: "hello"}, nil)
	r.Finish(id, models.OutcomeReframe, 0)
	closeRecorder(t, r)
}

func TestRecorder_WritesAfterCloseAreDropped(t *testing.T) {
	s := store.NewInMemoryStore()
	r := NewRecorder(s)
	closeRecorder(t, r)

	id := r.Begin(models.PipelineRequest{Message: "late"}, nil)
	sess, err := s.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, sess)

	// A second Close is harmless.
	closeRecorder(t, r)
}
