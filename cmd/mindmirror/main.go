package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mindmirror/mindmirror/internal/api"
	"github.com/mindmirror/mindmirror/internal/flow"
	"github.com/mindmirror/mindmirror/internal/genai"
	"github.com/mindmirror/mindmirror/internal/lockfile"
	"github.com/mindmirror/mindmirror/internal/messaging"
	"github.com/mindmirror/mindmirror/internal/session"
	"github.com/mindmirror/mindmirror/internal/store"
	"github.com/mindmirror/mindmirror/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for MindMirror state data
	DefaultStateDir = "/var/lib/mindmirror"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "mindmirror.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("MindMirror failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("MindMirror exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	LineChannelToken string
	RedisAddr        string
	APIAddr          string
	SessionTTL       time.Duration
	DailyLimit       int
}

// Flags holds command line flag values
type Flags struct {
	dbDSN      *string
	openaiKey  *string
	lineToken  *string
	redisAddr  *string
	apiAddr    *string
	sessionTTL *time.Duration
	dailyLimit *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         util.GetEnvDefault("MINDMIRROR_STATE_DIR", DefaultStateDir),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		LineChannelToken: os.Getenv("LINE_CHANNEL_TOKEN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		APIAddr:          os.Getenv("API_ADDR"),
		SessionTTL:       util.ParseDurationEnv("SESSION_TTL", flow.DefaultSessionTTL),
		DailyLimit:       flow.DefaultDailyLimit,
	}

	if v := os.Getenv("DAILY_SESSION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.DailyLimit = n
		} else {
			slog.Warn("Invalid DAILY_SESSION_LIMIT, using default", "value", v)
		}
	}

	// Default to SQLite in the state directory when no database URL is set
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MINDMIRROR_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"LINE_CHANNEL_TOKEN_SET", config.LineChannelToken != "",
		"REDIS_ADDR", config.RedisAddr,
		"API_ADDR", config.APIAddr,
		"SESSION_TTL", config.SessionTTL,
		"DAILY_SESSION_LIMIT", config.DailyLimit)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the reflection store (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		lineToken:  flag.String("line-channel-token", config.LineChannelToken, "LINE channel access token (overrides $LINE_CHANNEL_TOKEN)"),
		redisAddr:  flag.String("redis-addr", config.RedisAddr, "Redis address for the session store; empty uses in-memory sessions (overrides $REDIS_ADDR)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sessionTTL: flag.Duration("session-ttl", config.SessionTTL, "idle session timeout (overrides $SESSION_TTL)"),
		dailyLimit: flag.Int("daily-limit", config.DailyLimit, "completed sessions per user per day, 0 disables (overrides $DAILY_SESSION_LIMIT)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"lineTokenSet", *flags.lineToken != "",
		"redisAddr", *flags.redisAddr,
		"apiAddr", *flags.apiAddr,
		"sessionTTL", *flags.sessionTTL,
		"dailyLimit", *flags.dailyLimit)

	return flags
}

// run wires the modules together and serves until a shutdown signal.
func run(flags Flags) error {
	// File-based storage cannot survive two concurrent instances.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.Acquire(filepath.Dir(*flags.dbDSN))
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	reflections, err := buildReflectionStore(flags)
	if err != nil {
		return err
	}
	defer reflections.Close()

	genaiClient, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		return err
	}

	messenger, err := buildMessenger(flags)
	if err != nil {
		return err
	}

	sessions := buildSessionStore(flags)
	timers := session.NewExpiryTimer()
	defer timers.Stop()

	classifier := flow.NewClassifier(genaiClient)
	pipeline := flow.NewPipeline(genaiClient, reflections, messenger)
	orchestrator := flow.NewOrchestrator(
		sessions, timers, classifier, genaiClient, pipeline, messenger, reflections,
		flow.WithSessionTTL(*flags.sessionTTL),
		flow.WithDailyLimit(*flags.dailyLimit),
	)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(orchestrator, messenger, apiOpts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
		return server.Shutdown(context.Background())
	}
}

// buildReflectionStore selects the persistence backend from the DSN.
func buildReflectionStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildSessionStore selects Redis-backed or in-memory sessions.
func buildSessionStore(flags Flags) session.Store {
	if *flags.redisAddr == "" {
		slog.Debug("No Redis address provided, using in-memory session store")
		return session.NewInMemoryStore()
	}
	client := redis.NewClient(&redis.Options{Addr: *flags.redisAddr})
	slog.Debug("Using Redis session store", "addr", *flags.redisAddr)
	return session.NewRedisStore(client, session.WithSessionTTL(*flags.sessionTTL))
}

// buildMessenger selects the outbound transport. LINE is the primary
// channel; Twilio serves deployments without a LINE channel token.
func buildMessenger(flags Flags) (messaging.Service, error) {
	if *flags.lineToken != "" {
		return messaging.NewLineService(messaging.WithChannelToken(*flags.lineToken))
	}
	slog.Info("No LINE channel token set, falling back to Twilio transport")
	return messaging.NewTwilioService()
}
