// Menuagent answers questions about today's menu through a tool-calling
// language model, and relays chat messages between websocket clients.
//
// Configuration is loaded from a YAML file discovered automatically (see
// [config.DefaultSearchPaths]). Without a file, defaults plus the PORT and
// GEMINI_KEY environment variables are used.
//
// Usage:
//
//	menuagent serve              Start the query API and the relay
//	menuagent init [dir]         Write an example config.yaml
//	menuagent ask <question>     Resolve a single question and print the answer
//	menuagent version            Print version and build information
//	menuagent -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/agent"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/api"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/buildinfo"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/config"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/connwatch"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/httpkit"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/llm"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/mqtt"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/relay"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/tools"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/usage"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/web"
)

// main builds the OS-level environment (context, stdio, argv) and hands
// off to [run], so the whole lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Structured logs go to stdout; the caller
// prints the returned error. Arguments are parsed by hand because the
// flag package's globals get in the way of calling run from parallel
// tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return errors.New("usage: menuagent ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "menuagent - menu question answering and chat relay")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: menuagent [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the query API and the message relay")
	fmt.Fprintln(w, "  init [dir]   Write an example config.yaml (default: .)")
	fmt.Fprintln(w, "  ask          Resolve a single question")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/menuagent/config.yaml, /etc/menuagent/config.yaml")
	fmt.Fprintln(w, "  Without a file: defaults plus PORT and GEMINI_KEY from the environment.")
	return nil
}

// askResult is the JSON form of an ask answer.
type askResult struct {
	RequestID  string `json:"request_id"`
	Outcome    string `json:"outcome"`
	Message    string `json:"message"`
	Iterations int    `json:"iterations"`
	Transcript string `json:"transcript,omitempty"`
}

// runAsk resolves one question without starting any server. Logs go to
// stderr so stdout carries only the answer.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath, outputFmt string, args []string) error {
	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg)

	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	loop, err := newLoop(cfg, generator, logger)
	if err != nil {
		return err
	}

	rz, err := loop.Resolve(ctx, "", question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	message := rz.Outcome.Text
	if !rz.Outcome.IsAnswer() {
		message = cfg.Chat.FailureMessage
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(askResult{
			RequestID:  rz.RequestID,
			Outcome:    string(rz.Outcome.Kind),
			Message:    message,
			Iterations: rz.Result.Iterations,
			Transcript: rz.Result.Transcript(),
		})
	}
	fmt.Fprintln(stdout, message)
	return nil
}

// runServe starts the query API, the relay and the optional MQTT
// publisher, and blocks until SIGINT or SIGTERM. Shutdown publishes MQTT
// "offline", then drains both HTTP servers.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, cfg)
	logger.Info("starting menuagent", "build", buildinfo.String())
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"provider", cfg.Generator.Provider,
		"model", cfg.Generator.Model,
		"max_iterations", cfg.Agent.MaxIterations,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// --- Resolution observers ---
	var observers []agent.Observer

	var store *usage.Store
	if cfg.Usage.Enabled {
		store, err = usage.Open(cfg.Usage.Path, logger)
		if err != nil {
			return fmt.Errorf("open usage ledger %s: %w", cfg.Usage.Path, err)
		}
		defer store.Close()
		observers = append(observers, store)
		logger.Info("usage ledger enabled", "path", cfg.Usage.Path)
	}

	var counters *mqtt.DailyCounters
	if cfg.MQTT.Configured() {
		counters = mqtt.NewDailyCounters(nil)
		observers = append(observers, counters)
	}

	loop, err := newLoop(cfg, generator, logger, observers...)
	if err != nil {
		return err
	}

	// --- Relay ---
	hub := relay.NewHub(logger)
	var relayServer *api.RelayServer
	if cfg.Relay.Enabled {
		page, err := web.NewPage(logger, web.PageRelay)
		if err != nil {
			return err
		}
		relayServer = api.NewRelayServer(cfg.Relay.Address, cfg.Relay.Port, hub, page, logger)
		go func() {
			if err := relayServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("relay server failed", "error", err)
			}
		}()
	}

	// --- MQTT ---
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Configured() {
		stats := &mqttStatsAdapter{model: cfg.Generator.Model, hub: hub}
		mqttPub = mqtt.New(cfg.MQTT, counters, stats, logger)
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		logger.Info("mqtt publishing enabled",
			"broker", cfg.MQTT.Broker,
			"device_name", cfg.MQTT.DeviceName,
			"interval", cfg.MQTT.PublishIntervalSec,
		)
	} else {
		logger.Info("mqtt publishing disabled (not configured)")
	}

	// --- Query API ---
	landing, err := web.NewPage(logger, web.PageLanding)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, loop, cfg.Chat, landing, logger)
	if store != nil {
		server.SetUsage(store)
	}

	if cfg.Generator.HealthIntervalSec > 0 {
		watch := connwatch.Start(ctx, cfg.Generator.Provider, generator.Ping, connwatch.Schedule{
			PollInterval: time.Duration(cfg.Generator.HealthIntervalSec) * time.Second,
		}, logger)
		defer watch.Stop()
		server.SetGeneratorWatch(watch)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if mqttPub != nil {
			if err := mqttPub.Stop(shutdownCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}
		if relayServer != nil {
			_ = relayServer.Shutdown(shutdownCtx)
		}
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("menuagent stopped")
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	// Validate has already accepted both values.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	format, _ := config.ParseLogFormat(cfg.LogFormat)

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig finds and loads the config file. When no path is given and
// no file exists in the search paths, it falls back to the environment.
func loadConfig(explicit string) (*config.Config, string, error) {
	var cfg *config.Config

	cfgPath, err := config.FindConfig(explicit)
	switch {
	case err == nil:
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
	case explicit == "":
		cfgPath = "(environment)"
		cfg, err = config.FromEnv()
		if err != nil {
			return nil, cfgPath, fmt.Errorf("load config from environment: %w", err)
		}
	default:
		return nil, "", err
	}

	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// newGenerator builds the generator client for the configured provider,
// behind a MultiClient so the configured model routes to it.
func newGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	g := cfg.Generator

	var opts []httpkit.ClientOption
	if g.TimeoutSec > 0 {
		opts = append(opts, httpkit.WithTimeout(time.Duration(g.TimeoutSec)*time.Second))
	}
	httpClient := httpkit.NewClient(opts...)

	var client llm.Client
	switch g.Provider {
	case config.ProviderGemini:
		gc, err := llm.NewGeminiClient(ctx, g.APIKey, g.Model, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		client = gc
	case config.ProviderOpenAI:
		client = llm.NewOpenAIClient(g.APIKey, g.BaseURL, httpClient, logger)
	case config.ProviderOllama:
		client = llm.NewOllamaClient(g.BaseURL, httpClient, logger)
	default:
		return nil, fmt.Errorf("unsupported generator provider %q", g.Provider)
	}

	multi := llm.NewMultiClient(g.Provider)
	multi.AddProvider(g.Provider, client)
	multi.AddModel(g.Model, g.Provider)

	logger.Info("generator initialized", "provider", g.Provider, "model", g.Model)
	return multi, nil
}

func newLoop(cfg *config.Config, generator llm.Client, logger *slog.Logger, observers ...agent.Observer) (*agent.Loop, error) {
	registry, err := tools.NewDefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return agent.NewLoop(logger, generator, registry, agent.Config{
		Model:         cfg.Generator.Model,
		Provider:      cfg.Generator.Provider,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxIterations: cfg.Agent.MaxIterations,
		Options: llm.Options{
			Temperature:     cfg.Generator.Temperature,
			MaxOutputTokens: cfg.Generator.MaxOutputTokens,
		},
	}, observers...), nil
}

type mqttStatsAdapter struct {
	model string
	hub   *relay.Hub
}

func (a *mqttStatsAdapter) Uptime() time.Duration { return buildinfo.Uptime() }
func (a *mqttStatsAdapter) Version() string       { return buildinfo.Version }
func (a *mqttStatsAdapter) Model() string         { return a.model }
func (a *mqttStatsAdapter) RelayPeers() int       { return a.hub.Count() }
