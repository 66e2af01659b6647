package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmiskell11/reframe-app/internal/analytics"
	"github.com/nmiskell11/reframe-app/internal/api"
	"github.com/nmiskell11/reframe-app/internal/health"
	"github.com/nmiskell11/reframe-app/internal/lockfile"
	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/pipeline"
	"github.com/nmiskell11/reframe-app/internal/store"
)

// analyticsDrainTimeout bounds how long shutdown waits for queued writes.
const analyticsDrainTimeout = 5 * time.Second

// newOracle is swapped out by tests.
var newOracle = buildOracle

func newServeCmd(config Config, flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reframe HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.dbDSN, "db-dsn", config.DatabaseURL, "analytics database DSN, SQLite file in the state dir when empty (overrides $DATABASE_URL)")
	f.StringVar(&flags.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	f.StringVar(&flags.corsOrigin, "cors-origin", config.CORSOrigin, "Access-Control-Allow-Origin value (overrides $REFRAME_CORS_ORIGIN)")
	f.BoolVar(&flags.analytics, "analytics", config.Analytics, "record anonymous session analytics (overrides $REFRAME_ANALYTICS)")
	return cmd
}

func runServe(ctx context.Context, flags *Flags) error {
	initializeLogger(os.Stdout, logLevelOr(flags.logLevel, "info"))
	printBanner(os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	oracle, provider, err := newOracle(ctx, flags)
	if err != nil {
		return fmt.Errorf("failed to initialize %s oracle: %w", flags.oracle, err)
	}

	var pipeOpts []pipeline.Option
	if flags.analytics {
		dsn := resolveDSN(flags.dbDSN, flags.stateDir)
		if store.DetectDSNType(dsn) == "sqlite3" {
			lock, err := lockfile.AcquireLock(filepath.Dir(dsn), flags.apiAddr)
			if err != nil {
				return err
			}
			defer lock.Release()
		}

		st, err := openStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to open analytics store: %w", err)
		}
		defer st.Close()

		rec := analytics.NewRecorder(st)
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), analyticsDrainTimeout)
			defer cancel()
			if err := rec.Close(drainCtx); err != nil {
				slog.Warn("Analytics queue not fully drained", "error", err)
			}
		}()
		pipeOpts = append(pipeOpts, pipeline.WithTracker(rec))
	} else {
		slog.Info("Analytics disabled, sessions are not recorded")
	}

	server := api.NewServer(pipeline.New(oracle, pipeOpts...), buildAPIOptions(flags, provider)...)
	slog.Info("Bootstrapping reframe", "provider", provider, "addr", server.Addr(), "analytics", flags.analytics)
	if err := server.Run(ctx); err != nil {
		return err
	}
	slog.Info("reframe exited successfully")
	return nil
}

type runOptions struct {
	message       string
	context       string
	relationship  string
	file          string
	skipRFD       bool
	skipQuestions bool
}

func newRunCmd(flags *Flags) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run one pipeline round and print the JSON response",
		Long: `Runs a single round against the configured oracle without starting a server.

The request comes from --file (a JSON request body, "-" for stdin) or from the
message argument and flags. The response body is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			initializeLogger(cmd.ErrOrStderr(), logLevelOr(flags.logLevel, "debug"))
			req, err := buildRunRequest(opts, args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			oracle, _, err := newOracle(cmd.Context(), flags)
			if err != nil {
				return fmt.Errorf("failed to initialize %s oracle: %w", flags.oracle, err)
			}
			res, err := pipeline.New(oracle).Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res.Body)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.message, "message", "", "draft message to reframe")
	f.StringVar(&opts.context, "context", "", "conversation context, optionally with a quoted received message")
	f.StringVar(&opts.relationship, "relationship", "", "relationship type, general when unknown")
	f.StringVar(&opts.file, "file", "", `JSON request body to send, "-" for stdin`)
	f.BoolVar(&opts.skipRFD, "skip-rfd", false, "skip red-flag detection")
	f.BoolVar(&opts.skipQuestions, "skip-questions", false, "never ask clarifying questions")
	return cmd
}

func buildRunRequest(opts runOptions, args []string, stdin io.Reader) (models.ReframeRequest, error) {
	var req models.ReframeRequest
	if opts.file != "" {
		var r io.Reader
		if opts.file == "-" {
			r = stdin
		} else {
			f, err := os.Open(opts.file)
			if err != nil {
				return req, fmt.Errorf("failed to open request file: %w", err)
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&req); err != nil {
			return req, fmt.Errorf("failed to decode request file: %w", err)
		}
		return req, nil
	}

	req.Message = opts.message
	if req.Message == "" && len(args) > 0 {
		req.Message = strings.Join(args, " ")
	}
	if strings.TrimSpace(req.Message) == "" {
		return req, errMissingMessage
	}
	req.Context = opts.context
	req.RelationshipType = opts.relationship
	req.SkipRFD = opts.skipRFD
	req.SkipQuestions = opts.skipQuestions
	return req, nil
}

func newHealthCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "health [message]",
		Short: "Run the relationship-health heuristic offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			message := opts.message
			if message == "" {
				message = strings.Join(args, " ")
			}
			if strings.TrimSpace(message) == "" && strings.TrimSpace(opts.context) == "" {
				return errMissingMessage
			}
			rt := models.NormalizeRelationshipType(opts.relationship)
			hc := health.Check(opts.context, message, rt)
			out := struct {
				RelationshipType models.RelationshipType   `json:"relationshipType"`
				HealthCheck      *models.HealthCheckResult `json:"healthCheck"`
				SafetyResources  []models.SafetyResource    `json:"safetyResources,omitempty"`
			}{rt, hc, health.SafetyResources(hc)}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.message, "message", "", "draft message")
	f.StringVar(&opts.context, "context", "", "conversation context")
	f.StringVar(&opts.relationship, "relationship", "", "relationship type")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// exitError maps a pipeline error to a short user-facing message.
func exitError(err error) string {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, pipeline.ErrReframeFailed):
		return "Failed to reframe message"
	default:
		return err.Error()
	}
}
