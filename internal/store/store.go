// Package store provides storage backends for reframe analytics.
//
// Every pipeline run produces one session row; each red-flag alert shown to
// the user adds a detection row and marks the session. Three backends share
// the Store interface: in-memory (tests, analytics disabled), SQLite and
// PostgreSQL.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/nmiskell11/reframe-app/internal/models"
)

// SessionRecord is one analytics row per pipeline run. It never holds the
// message or context text, only their lengths.
type SessionRecord struct {
	ID                string
	SessionToken      string
	RelationshipType  models.RelationshipType
	HadContext        bool
	ContextLength     int
	MessageLength     int
	Stage             models.Stage
	QuestionRound     int
	HealthCheckType   models.HealthCheckType
	InboundTriggered  bool
	InboundPatterns   []string
	InboundSeverity   models.Severity
	OutboundTriggered bool
	OutboundPatterns  []string
	OutboundSeverity  models.Severity
	QuestionsAsked    int
	Outcome           models.Outcome
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DetectionRecord is one red-flag alert shown to the user.
type DetectionRecord struct {
	ID             int64
	SessionID      string
	DetectionType  models.Direction
	Patterns       []string
	Severity       models.Severity
	Explanation    string
	Suggestion     string
	UserSawWarning bool
	CreatedAt      time.Time
}

// SessionOutcome is the final update applied to a session row.
type SessionOutcome struct {
	ID             string
	Outcome        models.Outcome
	QuestionsAsked int
	UpdatedAt      time.Time
}

// Store defines the analytics persistence operations.
type Store interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	// AddDetection inserts the detection row and marks the session's
	// triggered columns for the detection's direction.
	AddDetection(ctx context.Context, rec DetectionRecord) error
	UpdateSession(ctx context.Context, out SessionOutcome) error
	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListDetections(ctx context.Context, sessionID string) ([]DetectionRecord, error)
	Close() error
}

// InMemoryStore is a simple in-memory store for analytics rows.
type InMemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]SessionRecord
	detections []DetectionRecord
	nextID     int64
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]SessionRecord)}
}

func (s *InMemoryStore) CreateSession(ctx context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.InboundPatterns = cloneStrings(rec.InboundPatterns)
	rec.OutboundPatterns = cloneStrings(rec.OutboundPatterns)
	s.sessions[rec.ID] = rec
	return nil
}

func (s *InMemoryStore) AddDetection(ctx context.Context, rec DetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	rec.Patterns = cloneStrings(rec.Patterns)
	s.detections = append(s.detections, rec)

	if sess, ok := s.sessions[rec.SessionID]; ok {
		if rec.DetectionType == models.DirectionInbound {
			sess.InboundTriggered = true
			sess.InboundPatterns = cloneStrings(rec.Patterns)
			sess.InboundSeverity = rec.Severity
		} else {
			sess.OutboundTriggered = true
			sess.OutboundPatterns = cloneStrings(rec.Patterns)
			sess.OutboundSeverity = rec.Severity
		}
		sess.UpdatedAt = rec.CreatedAt
		s.sessions[rec.SessionID] = sess
	}
	return nil
}

func (s *InMemoryStore) UpdateSession(ctx context.Context, out SessionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[out.ID]
	if !ok {
		return nil
	}
	sess.Outcome = out.Outcome
	sess.QuestionsAsked = out.QuestionsAsked
	sess.UpdatedAt = out.UpdatedAt
	s.sessions[out.ID] = sess
	return nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	sess.InboundPatterns = cloneStrings(sess.InboundPatterns)
	sess.OutboundPatterns = cloneStrings(sess.OutboundPatterns)
	return &sess, nil
}

func (s *InMemoryStore) ListDetections(ctx context.Context, sessionID string) ([]DetectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DetectionRecord
	for _, d := range s.detections {
		if d.SessionID == sessionID {
			d.Patterns = cloneStrings(d.Patterns)
			out = append(out, d)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
