package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/KalebJG/fathom-to-slacklist/internal/config"
	"github.com/KalebJG/fathom-to-slacklist/internal/doctor"
	"github.com/KalebJG/fathom-to-slacklist/internal/lock"
	"github.com/KalebJG/fathom-to-slacklist/internal/log"
	"github.com/KalebJG/fathom-to-slacklist/internal/relay"
	"github.com/KalebJG/fathom-to-slacklist/internal/server"
	"github.com/KalebJG/fathom-to-slacklist/internal/slack"
	"github.com/KalebJG/fathom-to-slacklist/internal/storage"
	"github.com/KalebJG/fathom-to-slacklist/internal/store"
	"github.com/KalebJG/fathom-to-slacklist/internal/tui/watch"
)

const version = "0.1.0"

const defaultConfigPath = "config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe(args))
	case "system":
		// "system start" is an alias for serve.
		if len(args) < 1 || args[0] != "start" {
			fmt.Fprintln(os.Stderr, "Usage: fathom-to-slacklist system start [flags]")
			os.Exit(1)
		}
		os.Exit(runServe(args[1:]))
	case "config":
		os.Exit(runConfigNoun(args))
	case "connection":
		os.Exit(runConnectionNoun(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "watch":
		os.Exit(runWatch(args))
	case "version":
		fmt.Printf("fathom-to-slacklist version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`fathom-to-slacklist - Fathom action items to Slack webhook relay

Usage:
  fathom-to-slacklist <command> [flags]

Commands:
  serve             Start the relay service in foreground
  connection add    Create a connection from the command line
  config check      Validate config syntax and integrity
  config lock       Authorize current config state (update integrity hash)
  config show       Print the effective configuration
  doctor            Validate config and stored connections
  watch             Live delivery-log view
  version           Show version information
  help              Show this help message

Most commands accept --config <path> (default: config.yaml).
`)
}

// --- serve ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	// Optional .env for local development; env vars win over config.yaml.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("serve")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		connStore store.ConnectionStore
		dlog      store.DeliveryLog
	)

	switch cfg.State.Backend {
	case "redis":
		rs, err := store.NewRedisStore(ctx, cfg.State.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer rs.Close()
		connStore = rs
		// No delivery log on redis deployments; watch needs sqlite.
	default:
		if cfg.State.LockPath != "" {
			pidLock, err := lock.AcquirePIDLock(cfg.State.LockPath)
			if err != nil {
				logger.Error("failed to acquire pid lock", "path", cfg.State.LockPath, "error", err)
				return 1
			}
			defer func() { _ = pidLock.Release() }()
		}

		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Error("failed to open state database", "path", cfg.State.Path, "error", err)
			return 1
		}
		defer db.Close()

		sqlStore := store.NewSQLiteStore(db)
		connStore = sqlStore
		dlog = sqlStore
	}

	sender := slack.NewClient(log.WithComponent("slack"))
	pipeline := relay.New(connStore, sender, dlog, log.WithComponent("relay"))

	srv := server.New(server.Config{
		Listen:        cfg.Server.Listen,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		APIKey:        cfg.Server.APIKey,
	}, pipeline, connStore, dlog, log.WithComponent("server"))

	logger.Info("starting", "name", cfg.Service.Name, "version", version, "backend", cfg.State.Backend)

	if err := srv.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("server exited", "error", err)
		return 1
	}
	return 0
}

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: fathom-to-slacklist config <check|lock|show> [--config <path>]")
		return 1
	}

	action := args[0]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	switch action {
	case "check":
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Config invalid: %v\n", err)
			return 1
		}
		if err := config.Check(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Integrity check failed: %v\n", err)
			return 1
		}
		fmt.Println("Status: Configuration check PASSED.")
		return 0

	case "lock":
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Config invalid, refusing to lock: %v\n", err)
			return 1
		}
		if err := config.Lock(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
			return 1
		}
		fmt.Println("Config integrity hash updated.")
		return 0

	case "show":
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
			return 1
		}
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// --- connection ---

func runConnectionNoun(args []string) int {
	if len(args) < 1 || args[0] != "add" {
		fmt.Fprintln(os.Stderr, "Usage: fathom-to-slacklist connection add --slack-url <url> [flags]")
		return 1
	}

	fs := flag.NewFlagSet("connection add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	slackURL := fs.String("slack-url", "", "Slack incoming webhook URL (required)")
	secret := fs.String("secret", "", "Fathom webhook secret (enables signature verification)")
	emailFilter := fs.String("email-filter", "", "Only forward items assigned to this email")
	nameFilter := fs.String("name-filter", "", "Only forward items assigned to this name")
	mode := fs.String("mode", store.ModeMessage, "Delivery mode: message or workflow")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	normalized, ok := slack.NormalizeWebhookURL(*slackURL)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: --slack-url must be a https://hooks.slack.com/services/ URL")
		return 1
	}
	if *mode != store.ModeMessage && *mode != store.ModeWorkflow {
		fmt.Fprintf(os.Stderr, "Error: --mode must be %q or %q\n", store.ModeMessage, store.ModeWorkflow)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	connStore, cleanup, err := openConnectionStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Store error: %v\n", err)
		return 1
	}
	defer cleanup()

	id, err := connStore.Create(ctx, store.Connection{
		SlackWebhookURL:     normalized,
		FathomWebhookSecret: strings.TrimSpace(*secret),
		AssigneeEmailFilter: strings.TrimSpace(*emailFilter),
		AssigneeNameFilter:  strings.TrimSpace(*nameFilter),
		DeliveryMode:        *mode,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Create failed: %v\n", err)
		return 1
	}

	fmt.Printf("Connection created: %s\n", id)
	if base := strings.TrimRight(cfg.Server.PublicBaseURL, "/"); base != "" {
		fmt.Printf("Fathom destination URL: %s/api/webhook/%s\n", base, id)
	} else {
		fmt.Printf("Fathom destination URL path: /api/webhook/%s\n", id)
	}
	return 0
}

// --- doctor ---

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	ctx := context.Background()

	// Connection checks need the sqlite store; redis deployments get
	// config checks only.
	var lister doctor.ConnectionLister
	if cfg.State.Backend == "" || cfg.State.Backend == "sqlite" {
		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err == nil {
			defer db.Close()
			lister = store.NewSQLiteStore(db)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: cannot open state database: %v\n", err)
		}
	}

	result := doctor.New(cfg, lister).Validate(ctx)

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		for _, issue := range result.Errors {
			fmt.Printf("ERROR   [%s] %s %s\n", issue.Category, issue.Field, issue.Message)
		}
		for _, issue := range result.Warnings {
			fmt.Printf("WARNING [%s] %s %s\n", issue.Category, issue.Field, issue.Message)
		}
		if result.Valid {
			fmt.Println("Status: doctor checks PASSED.")
		} else {
			fmt.Println("Status: doctor checks FAILED.")
		}
	}

	if !result.Valid {
		return 1
	}
	return 0
}

// --- watch ---

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	if cfg.State.Backend == "redis" {
		fmt.Fprintln(os.Stderr, "watch requires the sqlite backend (the delivery log lives there)")
		return 1
	}

	db, err := storage.OpenSQLite(context.Background(), cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "State database error: %v\n", err)
		return 1
	}
	defer db.Close()

	if err := watch.Run(store.NewSQLiteStore(db)); err != nil {
		fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		return 1
	}
	return 0
}

func openConnectionStore(ctx context.Context, cfg *config.Config) (store.ConnectionStore, func(), error) {
	if cfg.State.Backend == "redis" {
		rs, err := store.NewRedisStore(ctx, cfg.State.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	}

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	return store.NewSQLiteStore(db), func() { _ = db.Close() }, nil
}
