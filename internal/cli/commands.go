package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrisle/serato-connect/internal/cache"
	"github.com/chrisle/serato-connect/internal/database"
	"github.com/chrisle/serato-connect/internal/metadata"
	"github.com/chrisle/serato-connect/internal/player"
	"github.com/chrisle/serato-connect/internal/watcher"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Decode the Serato tags of audio files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analysisCache := cache.NewAnalysisCache(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
		defer analysisCache.Close()
		extractor := metadata.NewExtractor(cfg.Serato.SupportedFormats, logger, analysisCache)

		for _, path := range args {
			if !extractor.IsAudioFile(path) {
				logger.WithField("file_path", path).Warn("Unsupported audio format")
				continue
			}
			analysis, err := extractor.Analyze(path)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), analysis); err != nil {
				return err
			}
		}
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Import the library, crates and history into the SQLite index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := loadLibrary(cfg.Serato, logger)
		if err != nil {
			return err
		}

		return withIndex(func(db *database.Database) error {
			if _, err := db.ImportLibrary(cmd.Context(), lib); err != nil {
				return err
			}
			run, err := db.GetLastImport(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read back import run: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), run)
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live history session and print deck events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Watch.Enabled {
			return errors.New("history watching is disabled in the configuration")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var store watcher.SessionStore
		if watchStore {
			db, err := database.NewDatabase(cfg.Index.Path, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			store = db
		}

		state := player.NewStateManager()
		events := state.Subscribe()
		defer state.Unsubscribe(events)

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					if err := printJSON(cmd.OutOrStdout(), ev); err != nil {
						logger.WithError(err).Warn("Failed to print event")
					}
				}
			}
		}()

		debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
		return watcher.New(cfg.Serato.SessionsDir(), debounce, state, store, logger).Run(ctx)
	},
}

var watchStore bool

func init() {
	watchCmd.Flags().BoolVar(&watchStore, "store", true, "store session songs in the index while watching")
	rootCmd.AddCommand(inspectCmd, indexCmd, watchCmd)
}

// executeContext runs the root command with ctx, for callers that own
// cancellation.
func executeContext(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
