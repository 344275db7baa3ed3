package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/monitoring"
	"github.com/compresr/context-engine/internal/toolengine"
	"github.com/compresr/context-engine/internal/toolname"
)

// runTools prints the tool classification for a set of plugin ids. With
// -watch it prints again every time the manifest directory changes, until
// ctx is cancelled.
func runTools(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	manifestDir := fs.String("manifests", os.Getenv("CONTEXT_ENGINE_MANIFESTS"), "plugin manifest directory")
	ids := fs.String("ids", "", "comma-separated plugin ids")
	defaults := fs.String("defaults", "", "comma-separated default plugin ids")
	model := fs.String("model", "", "target model")
	provider := fs.String("provider", "", "target provider")
	noFC := fs.Bool("no-function-calling", false, "treat the model as lacking function calling")
	watch := fs.Bool("watch", false, "regenerate when manifests change")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *manifestDir == "" {
		return errors.New("-manifests is required")
	}
	setupLogging(monitoring.LoggerConfig{}, *debug)

	opts := toolengine.Options{DefaultToolIDs: splitList(*defaults)}
	if *noFC {
		opts.FunctionCallChecker = func(string, string) bool { return false }
	}
	engine := toolengine.NewEngine(opts)
	requested := splitList(*ids)

	// Reloads arrive on the watcher goroutine.
	var mu sync.Mutex
	render := func() error {
		mu.Lock()
		defer mu.Unlock()
		return writeJSON(stdout, engine.GenerateToolsDetailed(requested, *model, *provider, nil))
	}

	if !*watch {
		manifests, err := toolengine.LoadManifests(*manifestDir)
		if err != nil {
			return err
		}
		engine.UpdateManifestSchemas(manifests)
		return render()
	}

	w, err := toolengine.NewWatcher(*manifestDir,
		toolengine.OnChange(func(manifests []toolengine.PluginManifest) {
			mu.Lock()
			engine.UpdateManifestSchemas(manifests)
			mu.Unlock()
			log.Info().Int("manifests", len(manifests)).Msg("manifests reloaded")
			if err := render(); err != nil {
				log.Error().Err(err).Msg("failed to write tools")
			}
		}),
		toolengine.OnError(func(err error) {
			log.Warn().Err(err).Str("dir", *manifestDir).Msg("manifest reload failed")
		}),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// runResolve decodes wire tool names against the manifests in a directory.
// Without manifests, hashed segments stay hashed.
func runResolve(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	manifestDir := fs.String("manifests", os.Getenv("CONTEXT_ENGINE_MANIFESTS"), "plugin manifest directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		return errors.New("at least one tool name is required")
	}

	registry := toolengine.NewRegistry()
	if *manifestDir != "" {
		manifests, err := toolengine.LoadManifests(*manifestDir)
		if err != nil {
			return err
		}
		registry.Replace(manifests)
	}

	calls := make([]toolname.ToolCall, len(names))
	for i, name := range names {
		calls[i] = toolname.ToolCall{ID: fmt.Sprintf("call_%d", i), Name: name, Arguments: "{}"}
	}
	return writeJSON(stdout, toolname.Resolve(calls, registry))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
