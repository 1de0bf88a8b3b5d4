package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/meigma/mcworld"
	"github.com/meigma/mcworld/cache/disk"
	"github.com/meigma/mcworld/internal/config"
	"github.com/meigma/mcworld/registry"
)

// app carries state shared by every subcommand. The root Before hook fills
// cfg and logger.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	logger *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "mcworld",
		Usage:     "inspect Minecraft Bedrock world archives",
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file (YAML or JSON)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text, json, or logfmt"},
			&cli.StringFlag{Name: "temp-dir", Usage: "root for scratch directories"},
			&cli.StringFlag{Name: "cache-dir", Usage: "cache extraction results in `DIR`"},
			&cli.StringFlag{Name: "cache-max-size", Usage: "bound the result cache (e.g. 512MB)"},
			&cli.BoolFlag{Name: "plain-http", Usage: "talk to registries without TLS"},
			&cli.BoolFlag{Name: "anonymous", Usage: "do not send registry credentials"},
			&cli.BoolFlag{Name: "ignore-checksums", Usage: "skip store checksum verification"},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			a.inspectCommand(),
			a.inspectDirCommand(),
			a.pullCommand(),
			a.pushCommand(),
		},
	}
}

// setup layers the configuration file, MCWORLD_* variables, and flags, then
// builds the logger.
func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return ctx, err
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return ctx, err
	}

	strs := map[string]*string{
		"log-level":      &cfg.Log.Level,
		"log-format":     &cfg.Log.Format,
		"temp-dir":       &cfg.TempDir,
		"cache-dir":      &cfg.Cache.Dir,
		"cache-max-size": &cfg.Cache.MaxSize,
	}
	for name, dst := range strs {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	bools := map[string]*bool{
		"plain-http":       &cfg.Registry.PlainHTTP,
		"anonymous":        &cfg.Registry.Anonymous,
		"ignore-checksums": &cfg.IgnoreChecksums,
	}
	for name, dst := range bools {
		if cmd.IsSet(name) {
			*dst = cmd.Bool(name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return ctx, fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(a.stderr, cfg.Log)
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg
	a.logger = logger
	return ctx, nil
}

// newLogger returns a slog.Logger writing through a charmbracelet/log
// handler.
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := charmlog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	formatter := charmlog.TextFormatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = charmlog.JSONFormatter
	case "logfmt":
		formatter = charmlog.LogfmtFormatter
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          "mcworld",
	})
	return slog.New(handler), nil
}

func (a *app) extractor() (*mcworld.Extractor, error) {
	opts := []mcworld.Option{
		mcworld.WithTempDir(a.cfg.TempDir),
		mcworld.WithLogger(a.logger),
		mcworld.WithIgnoreChecksums(a.cfg.IgnoreChecksums),
		mcworld.WithProgress(func(e mcworld.Entry) {
			a.logger.Debug("extracted", slog.String("path", e.Path), slog.Uint64("size", e.Size))
		}),
	}
	if a.cfg.Cache.Dir != "" {
		c, err := disk.New(a.cfg.Cache.Dir, disk.WithMaxBytes(a.cfg.CacheMaxBytes()))
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		opts = append(opts, mcworld.WithCache(c))
	}
	return mcworld.New(opts...), nil
}

func (a *app) registryClient() *registry.Client {
	opts := []registry.Option{
		registry.WithPlainHTTP(a.cfg.Registry.PlainHTTP),
		registry.WithMaxWorldSize(a.cfg.MaxWorldBytes()),
		registry.WithLogger(a.logger),
	}
	if a.cfg.Registry.Anonymous {
		opts = append(opts, registry.WithAnonymous())
	} else {
		opts = append(opts, registry.WithDockerConfig())
	}
	return registry.New(opts...)
}
