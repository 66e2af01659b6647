package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nmiskell11/reframe-app/internal/api"
	"github.com/nmiskell11/reframe-app/internal/genai"
	"github.com/nmiskell11/reframe-app/internal/store"
	"github.com/nmiskell11/reframe-app/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for reframe state data
	DefaultStateDir = "/var/lib/reframe"
	// DefaultDBFileName is the default SQLite analytics database filename
	DefaultDBFileName = "reframe.db"
	// Version is reported by the banner and --version
	Version = "dev"
)

func main() {
	initializeLogger(os.Stdout, "info")

	config := loadEnvironmentConfig()
	root := newRootCmd(config)
	if err := root.Execute(); err != nil {
		slog.Error("reframe failed", "error", exitError(err))
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	OracleProvider string
	OpenAIKey      string
	GeminiKey      string
	Model          string
	Temperature    float64
	MaxTokens      int
	StateDir       string
	DatabaseURL    string
	APIAddr        string
	CORSOrigin     string
	Analytics      bool
	Debug          bool
	LogLevel       string
}

// Flags holds command line flag values; defaults come from Config.
type Flags struct {
	oracle      string
	openaiKey   string
	geminiKey   string
	model       string
	temperature float64
	maxTokens   int
	stateDir    string
	dbDSN       string
	apiAddr     string
	corsOrigin  string
	analytics   bool
	debug       bool
	logLevel    string
}

// initializeLogger installs a text handler at the given level.
func initializeLogger(w io.Writer, level string) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		OracleProvider: util.GetEnvDefault("REFRAME_ORACLE", string(genai.ProviderOpenAI)),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		Model:          os.Getenv("REFRAME_MODEL"),
		Temperature:    util.ParseFloatEnv("REFRAME_TEMPERATURE", genai.DefaultTemperature),
		MaxTokens:      util.ParseIntEnv("REFRAME_MAX_TOKENS", genai.DefaultMaxTokens),
		StateDir:       os.Getenv("REFRAME_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIAddr:        util.GetEnvDefault("API_ADDR", api.DefaultServerAddress),
		CORSOrigin:     util.GetEnvDefault("REFRAME_CORS_ORIGIN", api.DefaultCORSOrigin),
		Analytics:      util.ParseBoolEnv("REFRAME_ANALYTICS", true),
		Debug:          util.ParseBoolEnv("REFRAME_DEBUG", false),
		LogLevel:       os.Getenv("REFRAME_LOG_LEVEL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No REFRAME_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"REFRAME_ORACLE", config.OracleProvider,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"REFRAME_MODEL", config.Model,
		"REFRAME_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"REFRAME_ANALYTICS", config.Analytics,
		"REFRAME_DEBUG", config.Debug)

	return config
}

func newRootCmd(config Config) *cobra.Command {
	flags := &Flags{}
	root := &cobra.Command{
		Use:           "reframe",
		Short:         "reframe rewrites heated messages into calm, respectful ones",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.oracle, "oracle", config.OracleProvider, "oracle provider: openai or gemini (overrides $REFRAME_ORACLE)")
	pf.StringVar(&flags.openaiKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	pf.StringVar(&flags.geminiKey, "gemini-api-key", config.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)")
	pf.StringVar(&flags.model, "model", config.Model, "model name, provider default when empty (overrides $REFRAME_MODEL)")
	pf.Float64Var(&flags.temperature, "temperature", config.Temperature, "sampling temperature (overrides $REFRAME_TEMPERATURE)")
	pf.IntVar(&flags.maxTokens, "max-tokens", config.MaxTokens, "default completion token budget (overrides $REFRAME_MAX_TOKENS)")
	pf.StringVar(&flags.stateDir, "state-dir", config.StateDir, "state directory for reframe data (overrides $REFRAME_STATE_DIR)")
	pf.BoolVar(&flags.debug, "debug", config.Debug, "write oracle debug dumps under <state-dir>/debug (overrides $REFRAME_DEBUG)")
	pf.StringVar(&flags.logLevel, "log-level", config.LogLevel, "log level: debug, info, warn or error (overrides $REFRAME_LOG_LEVEL)")

	root.AddCommand(newServeCmd(config, flags), newRunCmd(flags), newHealthCmd())
	return root
}

// buildOracle constructs the configured oracle client.
func buildOracle(ctx context.Context, flags *Flags) (genai.Oracle, genai.Provider, error) {
	provider, err := genai.ParseProvider(flags.oracle)
	if err != nil {
		return nil, "", err
	}
	opts := buildGenAIOptions(flags, provider)
	slog.Debug("Building oracle", "provider", provider, "options", len(opts))

	switch provider {
	case genai.ProviderGemini:
		client, err := genai.NewGeminiClient(ctx, opts...)
		if err != nil {
			return nil, provider, err
		}
		return client, provider, nil
	default:
		client, err := genai.NewClient(opts...)
		if err != nil {
			return nil, provider, err
		}
		return client, provider, nil
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags *Flags, provider genai.Provider) []genai.Option {
	var genaiOpts []genai.Option
	key := flags.openaiKey
	if provider == genai.ProviderGemini {
		key = flags.geminiKey
	}
	if key != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(key))
	}
	if flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(flags.model))
	}
	genaiOpts = append(genaiOpts,
		genai.WithTemperature(flags.temperature),
		genai.WithMaxTokens(flags.maxTokens),
	)
	if flags.debug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true), genai.WithStateDir(flags.stateDir))
	}
	return genaiOpts
}

// resolveDSN falls back to an SQLite file in the state directory.
func resolveDSN(dsn, stateDir string) string {
	if strings.TrimSpace(dsn) != "" {
		return dsn
	}
	return filepath.Join(stateDir, DefaultDBFileName)
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(dsn string) []store.Option {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return []store.Option{store.WithPostgresDSN(dsn)}
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	return []store.Option{store.WithSQLiteDSN(dsn)}
}

// openStore opens the analytics backend for dsn.
func openStore(dsn string) (store.Store, error) {
	opts := buildStoreOptions(dsn)
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewPostgresStore(opts...)
	}
	return store.NewSQLiteStore(opts...)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags *Flags, provider genai.Provider) []api.Option {
	var apiOpts []api.Option
	if flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(flags.apiAddr))
	}
	if flags.corsOrigin != "" {
		apiOpts = append(apiOpts, api.WithCORSOrigin(flags.corsOrigin))
	}
	apiOpts = append(apiOpts, api.WithProvider(string(provider)))
	return apiOpts
}

func printBanner(w io.Writer) {
	tpl := "{{ .Title \"reframe\" \"\" 0 }}\nVersion: " + Version + "\n\n"
	banner.Init(w, true, false, bytes.NewBufferString(tpl))
}

func logLevelOr(level, fallback string) string {
	if strings.TrimSpace(level) == "" {
		return fallback
	}
	return level
}

var errMissingMessage = fmt.Errorf("a message is required (--message, --file or stdin)")
