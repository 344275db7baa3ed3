// Package main is the entry point for the context engine CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/compresr/context-engine/internal/monitoring"
)

// Version is set at build time via ldflags.
var Version = "v0.1.0"

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/context-engine/.env first
	configEnv := filepath.Join(homeDir, ".config", "context-engine", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) < 2 {
		printHelp(os.Stderr)
		os.Exit(2)
	}

	loadEnvFiles()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "process":
		err = runProcess(ctx, os.Args[2:], os.Stdout)
	case "tools":
		err = runTools(ctx, os.Args[2:], os.Stdout)
	case "resolve":
		err = runResolve(os.Args[2:], os.Stdout)
	case "configs":
		err = runConfigs(os.Stdout)
	case "version", "-v", "--version":
		fmt.Println("context-engine", Version)
	case "help", "-h", "--help":
		printHelp(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging installs the global logger and returns it. stdout carries
// command output, so logs default to stderr. An unset format picks console
// output on a terminal and JSON otherwise.
func setupLogging(cfg monitoring.LoggerConfig, debug bool) *monitoring.Logger {
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
		if cfg.Output == "stderr" && term.IsTerminal(int(os.Stderr.Fd())) {
			cfg.Format = "console"
		}
	}
	if debug {
		cfg.Level = "debug"
	}

	logger := monitoring.New(cfg)
	log.Logger = logger.Zerolog()
	return logger
}

// runConfigs lists the embedded configs usable with -config.
func runConfigs(w io.Writer) error {
	names, err := listEmbeddedConfigs()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintf(w, "(embedded) %s\n", name)
	}
	return nil
}

// printHelp prints usage information
func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Context Engine - LLM message pipeline")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  context-engine <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  process      Run the message pipeline over a request file")
	fmt.Fprintln(w, "  tools        Generate function tools from plugin manifests")
	fmt.Fprintln(w, "  resolve      Decode wire tool names back to plugin operations")
	fmt.Fprintln(w, "  configs      List embedded configs")
	fmt.Fprintln(w, "  version      Print version information")
	fmt.Fprintln(w, "  help         Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Process Options:")
	fmt.Fprintln(w, "  context-engine process -input req.json [-config FILE] [-manifests DIR] [-adapter NAME] [-debug]")
	fmt.Fprintln(w, "    -config     YAML or TOML config (default: embedded default)")
	fmt.Fprintln(w, "    -input      Request JSON file, - for stdin")
	fmt.Fprintln(w, "    -manifests  Plugin manifest directory (overrides tools.manifest_dir)")
	fmt.Fprintln(w, "    -adapter    Render a provider request body: openai, anthropic, gemini, ollama")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tools Options:")
	fmt.Fprintln(w, "  context-engine tools -manifests DIR -ids a,b [-model M] [-provider P] [-watch]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Resolve Options:")
	fmt.Fprintln(w, "  context-engine resolve [-manifests DIR] NAME...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  .env files are read from ~/.config/context-engine/.env and the working directory.")
	fmt.Fprintln(w, "  CONTEXT_ENGINE_LOG_LEVEL, CONTEXT_ENGINE_LOG_FORMAT, CONTEXT_ENGINE_LOG_OUTPUT,")
	fmt.Fprintln(w, "  CONTEXT_ENGINE_MANIFESTS override the config file.")
}
