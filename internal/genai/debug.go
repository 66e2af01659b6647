package genai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// debugEntry is the on-disk shape of a single debug dump.
type debugEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Method    string      `json:"method"`
	Model     string      `json:"model"`
	Params    interface{} `json:"params"`
	Response  interface{} `json:"response"`
}

// writeDebugEntry writes one call dump to <stateDir>/debug. Failures are logged
// and swallowed so debug mode can never break a request.
func writeDebugEntry(stateDir, method, model string, params, response interface{}) {
	debugDir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		slog.Warn("genai.writeDebugEntry: failed to create debug dir", "dir", debugDir, "error", err)
		return
	}

	entry := debugEntry{
		Timestamp: time.Now().UTC(),
		Method:    method,
		Model:     model,
		Params:    params,
		Response:  response,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.writeDebugEntry: failed to marshal entry", "method", method, "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s_%s.json", time.Now().UTC().Format("20060102T150405"), method, strings.SplitN(uuid.NewString(), "-", 2)[0])
	path := filepath.Join(debugDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		slog.Warn("genai.writeDebugEntry: failed to write entry", "path", path, "error", err)
		return
	}
	slog.Debug("genai.writeDebugEntry: wrote debug entry", "path", path)
}

func (c *Client) writeDebugLog(purpose Purpose, params, response interface{}) {
	if !c.debugMode {
		return
	}
	writeDebugEntry(c.stateDir, string(purpose), c.model, params, response)
}
