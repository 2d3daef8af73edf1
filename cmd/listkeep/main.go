package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pbaille/listkeep/internal/config"
	"github.com/pbaille/listkeep/internal/kv"
	"github.com/pbaille/listkeep/internal/kv/file"
	"github.com/pbaille/listkeep/internal/kv/memory"
	"github.com/pbaille/listkeep/internal/kv/sqlite"
	"github.com/pbaille/listkeep/internal/logging"
	"github.com/pbaille/listkeep/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every subcommand works with once flags are resolved
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *store.Store
	close func() error
}

func newRootCmd() *cobra.Command {
	var envFile string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "listkeep",
		Short:        "A small list that remembers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cfg.LogLevel, cmd.ErrOrStderr())

			backend, closer, err := openBackend(cfg)
			if err != nil {
				return err
			}
			a.close = closer
			a.store = store.New(backend, store.WithKey(cfg.Key), store.WithLogger(a.log))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.close != nil {
				return a.close()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to read")
	flags.String(config.FlagName("backend"), config.BackendSQLite, "storage backend: sqlite, file or memory")
	flags.String(config.FlagName("path"), config.DefaultPath(), "database file (sqlite) or directory (file)")
	flags.String(config.FlagName("key"), store.DefaultKey, "storage key of the list")
	flags.Int64(config.FlagName("quota_bytes"), 5*1024*1024, "storage quota in bytes, 0 for none")
	flags.String(config.FlagName("log_level"), "warn", "log level")
	flags.Duration(config.FlagName("poll_interval"), sqlite.DefaultPollInterval, "how often to check for changes")

	rootCmd.AddCommand(addCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(doneCmd(a))
	rootCmd.AddCommand(editCmd(a))
	rootCmd.AddCommand(rmCmd(a))
	rootCmd.AddCommand(clearCmd(a))
	rootCmd.AddCommand(exportCmd(a))
	rootCmd.AddCommand(importCmd(a))
	rootCmd.AddCommand(checkCmd(a))
	rootCmd.AddCommand(watchCmd(a))
	rootCmd.AddCommand(serveCmd(a))

	return rootCmd
}

func openBackend(cfg *config.Config) (kv.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(cfg.QuotaBytes), noop, nil

	case config.BackendFile:
		dir := cfg.Path
		if filepath.Ext(dir) != "" {
			dir = filepath.Dir(dir)
		}
		s, err := file.New(dir, cfg.QuotaBytes, cfg.PollInterval)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	default:
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
		s, err := sqlite.New(cfg.Path,
			sqlite.WithQuota(cfg.QuotaBytes),
			sqlite.WithPollInterval(cfg.PollInterval),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
