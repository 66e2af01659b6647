// Package testutil provides common test fixtures and helpers for reframe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nmiskell11/reframe-app/internal/genai"
	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/store"
)

// Canned oracle answers in the shapes the detector and reframer parse.
const (
	CleanOutbound   = `{"hasRedFlags": false, "contextAssessment": {"sufficient": true}}`
	CleanInbound    = `{"hasRedFlags": false}`
	FlaggedOutbound = `{"hasRedFlags": true, "severity": "high", "patterns": ["CRITICISM", "CONTEMPT"], "explanation": "Attacks character", "suggestion": "Describe the behavior"}`
	FlaggedInbound  = `{"hasRedFlags": true, "severity": "high", "patterns": ["MANIPULATION"], "explanation": "Keeps you as a backup", "suggestion": "Name what you need", "validation": "Your feelings are valid."}`
	Reframed        = "I feel unheard lately. Could we find time tonight to talk?"
)

// NewReframeOracle returns a mock whose outbound check is clean and whose
// rewrite is Reframed, so a plain request ends in a reframe.
func NewReframeOracle() *genai.MockOracle {
	return genai.NewMockOracle().
		On(genai.PurposeDetectOutbound, CleanOutbound).
		On(genai.PurposeReframe, Reframed)
}

// NewAlertOracle returns a mock whose outbound check flags the draft.
func NewAlertOracle() *genai.MockOracle {
	return genai.NewMockOracle().On(genai.PurposeDetectOutbound, FlaggedOutbound)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeJSONBody decodes a recorded response body into a generic map.
func DecodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
	return response
}

// AssertErrorBody checks that the response carries {"error": want}.
func AssertErrorBody(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got, ok := DecodeJSONBody(t, rr)["error"].(string)
	if !ok {
		t.Fatalf("response missing 'error' field: %s", rr.Body.String())
	}
	if got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

// CreateJSONRequest builds a request with a marshaled body and a JSON content type.
// A string or []byte body is sent verbatim.
func CreateJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	case []byte:
		data = b
	default:
		data = MustMarshalJSON(t, body)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// SeedSession writes one session row and returns its id.
func SeedSession(t *testing.T, st store.Store, rt models.RelationshipType) string {
	t.Helper()
	id := uuid.NewString()
	err := st.CreateSession(context.Background(), store.SessionRecord{
		ID:               id,
		RelationshipType: rt,
		Stage:            models.StageInitial,
		MessageLength:    12,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return id
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
