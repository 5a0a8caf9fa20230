package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/backend/script"
	"github.com/joeycumines/turnbench/internal/benchmark"
	"github.com/joeycumines/turnbench/internal/command"
	"github.com/joeycumines/turnbench/internal/config"
	"github.com/joeycumines/turnbench/internal/console"
	"github.com/joeycumines/turnbench/internal/games/firstlast"
	"github.com/joeycumines/turnbench/internal/games/verdict"
	"github.com/joeycumines/turnbench/internal/logging"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return err
	}
	envVars, err := config.LoadEnvironment()
	if err != nil {
		return err
	}
	cfg.ApplyEnvironment(envVars)

	logOpts, err := logging.ResolveOptions("", "", cfg)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(logOpts, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	registry, err := initialize(cfg, configPath, logger)
	if err != nil {
		return err
	}
	helpCmd, _ := registry.Get("help")

	if len(os.Args) < 2 {
		return helpCmd.Execute(ctx, nil, os.Stdout, os.Stderr)
	}

	cmdName := os.Args[1]
	if cmdName == "-h" || cmdName == "--help" {
		return helpCmd.Execute(ctx, nil, os.Stdout, os.Stderr)
	}

	cmd, err := registry.Get(cmdName)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmdName)
		_, _ = fmt.Fprintln(os.Stderr, "Use 'turnbench help' to see available commands.")
		return err
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ExitOnError)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: turnbench %s\n", cmd.Usage())
		_, _ = fmt.Fprintf(os.Stderr, "\n%s\n\n", cmd.Description())
		_, _ = fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
	}
	cmd.SetupFlags(fs)
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	return cmd.Execute(ctx, fs.Args(), os.Stdout, os.Stderr)
}

// initialize builds the backend and game registries and the commands that
// use them. Nothing is registered at import time.
func initialize(cfg *config.Config, configPath string, logger *slog.Logger) (*command.Registry, error) {
	models := backend.NewRegistry(logger)
	registryPath := cfg.GetString(config.KeyModelRegistry)
	scripts := script.NewBackend(
		script.WithBaseDir(filepath.Dir(registryPath)),
		script.WithCallTimeout(cfg.GetDuration(config.KeyScriptTimeout)),
		script.WithLogger(logger),
	)
	if err := models.RegisterBackend(script.Name, scripts); err != nil {
		return nil, err
	}
	if err := models.LoadModelRegistry(registryPath, false); err != nil {
		return nil, err
	}

	games := benchmark.NewRegistry()
	for _, f := range []benchmark.Factory{firstlast.Game{}, verdict.Game{}} {
		if err := games.Register(f); err != nil {
			return nil, err
		}
	}

	registry := command.NewRegistry()
	registry.Register(command.NewHelpCommand(registry))
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, configPath))
	registry.Register(command.NewInitCommand(configPath))
	registry.Register(command.NewListCommand(games, models))
	registry.Register(command.NewGenerateCommand(games))
	registry.Register(command.NewRunCommand(cfg, games, models, console.Stdio(), logger))
	registry.Register(command.NewLogCommand(cfg))
	return registry, nil
}
