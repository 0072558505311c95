// masterchat - A streaming chat client for Gemini, OpenRouter and Ollama.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/masterchat/internal/attachment"
	"github.com/jeranaias/masterchat/internal/chat"
	"github.com/jeranaias/masterchat/internal/cli"
	"github.com/jeranaias/masterchat/internal/config"
	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/prompt"
	"github.com/jeranaias/masterchat/internal/session"
	"github.com/jeranaias/masterchat/internal/storage"
	"github.com/jeranaias/masterchat/internal/store"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// historyFileName lives in the config directory.
const historyFileName = "chat_history"

// flags are the command line overrides applied on top of the config file.
type flags struct {
	configPath string
	provider   string
	model      string
	storage    string
	logLevel   string
	exportDir  string
	markdown   bool
	noColor    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "masterchat [FILE...]",
		Short: "Chat with a language model from the terminal",
		Long: `masterchat streams replies from Gemini, OpenRouter or Ollama.

Run without input for an interactive session. Pipe a message on stdin to
send it once and print the reply; FILE arguments are attached to it.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), f, args, os.Stdin, cmd.OutOrStdout(), cli.IsTTY())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			return err
		},
	}

	fl := root.PersistentFlags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (default ~/.masterchat/config.toml)")
	fl.StringVarP(&f.provider, "provider", "p", "", "model backend: gemini, openrouter, ollama, echo")
	fl.StringVarP(&f.model, "model", "m", "", "model name")
	fl.StringVar(&f.storage, "storage", "", "storage backend: file, sqlite, memory")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.Flags().StringVar(&f.exportDir, "export-dir", ".", "directory for /export")
	root.Flags().BoolVar(&f.markdown, "markdown", true, "render replies as markdown once complete")
	root.Flags().BoolVar(&f.noColor, "no-color", false, "disable colors")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	})
	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.provider != "" {
		cfg.Provider.Name = f.provider
	}
	if f.model != "" {
		cfg.Provider.Model = f.model
	}
	if f.storage != "" {
		cfg.Storage.Backend = f.storage
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogging routes the JSON log to the configured file so it does not
// interleave with the conversation on screen.
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	path, err := cfg.LogPath()
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return logging.Setup(os.Stderr, level), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logging.Setup(file, level), func() { file.Close() }, nil
}

// run wires config, storage, provider and session, then starts the REPL or
// handles a single piped message.
func run(ctx context.Context, f *flags, files []string, stdin io.Reader, stdout io.Writer, interactive bool) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	backend, err := storage.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return err
	}
	kv, err := storage.Open(backend, dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer kv.Close()

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("starting", "version", Version, "provider", provider.Name(),
		"model", cfg.EffectiveModel(), "storage", backend)

	st := store.Open(kv, logger)
	client := chat.NewClient(provider,
		prompt.NewAssembler(cfg.EffectiveModel(), cfg.Provider.SystemInstruction),
		chat.WithLogger(logger))
	sess := session.New(st, client,
		session.WithLogger(logger),
		session.WithEncoder(attachment.NewEncoder(attachment.Options{
			MaxBytes:    cfg.Attachments.MaxBytes,
			Concurrency: cfg.Attachments.Concurrency,
			Logger:      logger,
		})))

	if !interactive {
		return cli.RunPipe(ctx, sess, stdin, stdout, files)
	}

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, historyFileName)
	}
	reader := cli.NewLinerReader(historyFile)
	defer reader.Close()

	app := cli.NewApp(sess, reader, stdout, cli.Options{
		ExportDir: f.exportDir,
		Markdown:  f.markdown,
		Color:     !f.noColor && cli.ColorsEnabled(),
		Provider:  provider.Name(),
		Model:     cfg.EffectiveModel(),
		Logger:    logger,
	})
	if err := cli.AttachFiles(ctx, sess, files); err != nil {
		return err
	}
	return app.Run(ctx)
}
