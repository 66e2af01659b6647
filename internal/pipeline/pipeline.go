// Package pipeline runs one round of the stateless reframe state machine.
//
// Each call validates the request, attaches the relationship-health result,
// and ends in exactly one terminal outcome: a red-flag alert, a set of
// clarifying questions, or a rewritten message. Everything needed to resume
// a multi-round exchange travels in the request; the pipeline keeps no state
// between calls.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nmiskell11/reframe-app/internal/clarify"
	"github.com/nmiskell11/reframe-app/internal/contextparse"
	"github.com/nmiskell11/reframe-app/internal/genai"
	"github.com/nmiskell11/reframe-app/internal/health"
	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/reframe"
	"github.com/nmiskell11/reframe-app/internal/rfd"
)

// MinInboundMessageLength is the length a quoted received message must
// exceed before inbound detection runs on it.
const MinInboundMessageLength = 10

// ErrReframeFailed is returned when the final rewrite cannot be produced.
var ErrReframeFailed = errors.New("failed to reframe message")

// ValidationError wraps a request validation failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Tracker receives analytics about each run. Implementations must not block
// and must tolerate an empty session id.
type Tracker interface {
	Begin(req models.PipelineRequest, hc *models.HealthCheckResult) string
	Detection(sessionID string, result models.DetectionResult)
	Finish(sessionID string, outcome models.Outcome, questionsAsked int)
}

type noopTracker struct{}

func (noopTracker) Begin(models.PipelineRequest, *models.HealthCheckResult) string { return "" }
func (noopTracker) Detection(string, models.DetectionResult)                      {}
func (noopTracker) Finish(string, models.Outcome, int)                            {}

// Result is the terminal emission of one run. Body is one of
// models.RFDAlertResponse, models.QuestionsResponse or models.ReframeResponse.
type Result struct {
	Outcome   models.Outcome
	Body      interface{}
	SessionID string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTracker sets the analytics tracker.
func WithTracker(t Tracker) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracker = t
		}
	}
}

// WithCatalog replaces the embedded question catalog.
func WithCatalog(c *clarify.Catalog) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.catalog = c
		}
	}
}

// WithMaxRounds overrides the number of clarifying rounds.
func WithMaxRounds(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 && n <= models.MaxQuestionRounds {
			p.maxRounds = n
		}
	}
}

// Pipeline wires the detector, assessor, negotiator and reframer together.
// It is safe for concurrent use.
type Pipeline struct {
	catalog   *clarify.Catalog
	detector  *rfd.Detector
	assessor  *clarify.Assessor
	reframer  *reframe.Reframer
	tracker   Tracker
	maxRounds int
}

// New creates a Pipeline around a shared oracle client.
func New(oracle genai.Oracle, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:   clarify.DefaultCatalog(),
		tracker:   noopTracker{},
		maxRounds: models.MaxQuestionRounds,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.detector = rfd.NewDetector(oracle, p.catalog)
	p.assessor = clarify.NewAssessor(oracle, p.catalog)
	p.reframer = reframe.NewReframer(oracle)
	return p
}

// Run executes one round. Validation failures return a *ValidationError and
// make no oracle calls; a failed rewrite returns ErrReframeFailed.
func (p *Pipeline) Run(ctx context.Context, raw models.ReframeRequest) (Result, error) {
	start := time.Now()
	req, err := raw.Normalize()
	if err != nil {
		slog.Info("Pipeline.Run: request rejected", "error", err)
		return Result{}, &ValidationError{Err: err}
	}

	hc := health.Check(req.Context, req.Message, req.RelationshipType)
	if hc != nil {
		slog.Info("Pipeline.Run: health concern detected", "type", hc.Type, "relationship_type", req.RelationshipType)
	}

	sessionID := p.tracker.Begin(req, hc)
	var res Result
	if req.Stage == models.StageReframeWithAnswers {
		res, err = p.runFollowUp(ctx, req, hc, sessionID)
	} else {
		res, err = p.runInitial(ctx, req, hc, sessionID)
	}
	res.SessionID = sessionID

	outcome := res.Outcome
	if err != nil {
		outcome = models.OutcomeFailed
	}
	asked := 0
	if q, ok := res.Body.(models.QuestionsResponse); ok {
		asked = len(q.Questions)
	}
	p.tracker.Finish(sessionID, outcome, asked)

	slog.Info("Pipeline.Run: completed",
		"session_id", sessionID,
		"stage", req.Stage,
		"question_round", req.QuestionRound,
		"relationship_type", req.RelationshipType,
		"outcome", outcome,
		"message_length", len(req.Message),
		"context_length", len(req.Context),
		"duration_ms", time.Since(start).Milliseconds())
	return res, err
}

func (p *Pipeline) runInitial(ctx context.Context, req models.PipelineRequest, hc *models.HealthCheckResult, sessionID string) (Result, error) {
	answered := models.AnsweredIDs(req.Answers)
	checkedInbound := req.CheckedInbound

	if !req.SkipRFD && !req.CheckedInbound {
		parsed := contextparse.Parse(req.Context)
		if parsed.HasInboundMessage(MinInboundMessageLength) {
			inbound := p.detector.Detect(ctx, parsed.TheirMessage, models.DirectionInbound, req.RelationshipType, req.Context)
			checkedInbound = true
			if inbound.HasRedFlags {
				p.tracker.Detection(sessionID, inbound)
				return alert(models.OutcomeInboundAlert, inbound, true, hc), nil
			}
		}
	}

	canAsk := !req.SkipQuestions && req.QuestionRound < p.maxRounds
	assessment := clarify.SufficientAssessment()

	if !req.SkipRFD {
		var outbound models.DetectionResult
		if canAsk {
			outbound, assessment = p.detector.DetectWithAssessment(ctx, req.Message, req.RelationshipType, req.Context, answered)
		} else {
			outbound = p.detector.Detect(ctx, req.Message, models.DirectionOutbound, req.RelationshipType, req.Context)
		}
		if outbound.HasRedFlags {
			p.tracker.Detection(sessionID, outbound)
			return alert(models.OutcomeOutboundAlert, outbound, checkedInbound, hc), nil
		}
	} else if canAsk {
		assessment = p.assessor.Assess(ctx, req.Message, req.Context, req.RelationshipType, answered)
	}

	if canAsk {
		if q := p.catalog.Negotiate(assessment, answered, 0); q != nil {
			q.HealthCheck = hc
			return Result{Outcome: models.OutcomeQuestions, Body: *q}, nil
		}
	}

	return p.reframe(ctx, req, req.Context, hc)
}

func (p *Pipeline) runFollowUp(ctx context.Context, req models.PipelineRequest, hc *models.HealthCheckResult, sessionID string) (Result, error) {
	answered := models.AnsweredIDs(req.Answers)
	enriched := p.catalog.BuildEnrichedContext(req.Context, req.Answers)

	if req.QuestionRound < p.maxRounds && len(req.Answers) > 0 && !req.SkipQuestions {
		assessment := p.assessor.Assess(ctx, req.Message, enriched, req.RelationshipType, answered)
		if q := p.catalog.Negotiate(assessment, answered, req.QuestionRound); q != nil {
			q.HealthCheck = hc
			return Result{Outcome: models.OutcomeQuestions, Body: *q}, nil
		}
	}

	return p.reframe(ctx, req, enriched, hc)
}

func (p *Pipeline) reframe(ctx context.Context, req models.PipelineRequest, rawContext string, hc *models.HealthCheckResult) (Result, error) {
	answers := p.catalog.ResolveAnswers(req.Answers)
	reframed, err := p.reframer.Reframe(ctx, req.Message, rawContext, req.RelationshipType, answers)
	if err != nil {
		slog.Error("Pipeline.reframe: rewrite failed", "relationship_type", req.RelationshipType, "error", err)
		return Result{Outcome: models.OutcomeFailed}, ErrReframeFailed
	}
	return Result{
		Outcome: models.OutcomeReframe,
		Body: models.ReframeResponse{
			Type:             models.ResponseTypeReframe,
			Reframed:         reframed,
			RelationshipType: req.RelationshipType,
			UsedContext:      strings.TrimSpace(rawContext) != "",
			HealthCheck:      hc,
			SafetyResources:  health.SafetyResources(hc),
		},
	}, nil
}

func alert(outcome models.Outcome, result models.DetectionResult, checkedInbound bool, hc *models.HealthCheckResult) Result {
	slog.Info("Pipeline.Run: red flags detected", "source", result.Source, "severity", result.Severity, "patterns", result.Patterns)
	return Result{
		Outcome: outcome,
		Body: models.RFDAlertResponse{
			RFDAlert:       true,
			RFDResult:      result,
			CheckedInbound: checkedInbound,
			HealthCheck:    hc,
		},
	}
}
