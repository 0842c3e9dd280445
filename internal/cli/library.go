package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/chrisle/serato-connect/internal/config"
	"github.com/chrisle/serato-connect/internal/database"
	"github.com/chrisle/serato-connect/internal/history"
	"github.com/chrisle/serato-connect/internal/library"
	"github.com/chrisle/serato-connect/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cratesCmd = &cobra.Command{
	Use:   "crates [name]",
	Short: "List crates, or the tracks of one crate",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if useIndex {
			return indexedCrates(cmd, args)
		}
		crates, err := readCrates(cfg.Serato, logger)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return printJSON(cmd.OutOrStdout(), crates)
		}
		for _, c := range crates {
			if c.Name == args[0] {
				return printJSON(cmd.OutOrStdout(), c)
			}
		}
		return errors.New("crate not found: " + args[0])
	},
}

var tracksCmd = &cobra.Command{
	Use:   "tracks [query]",
	Short: "List tracks of the library database, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if useIndex {
			return indexedTracks(cmd, args)
		}
		version, tracks, err := library.ReadDatabaseFile(cfg.Serato.DatabasePath())
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"version": version,
			"tracks":  len(tracks),
		}).Debug("Library database decoded")

		if len(args) == 1 {
			tracks = filterTracks(tracks, args[0])
		}
		return printJSON(cmd.OutOrStdout(), tracks)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect play history",
}

var historySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List history sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if useIndex {
			return withIndex(func(db *database.Database) error {
				sessions, err := db.GetSessions(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sessions)
			})
		}
		sessions, err := history.ReadSessionsFile(cfg.Serato.HistoryPath())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sessions)
	},
}

var historySongsCmd = &cobra.Command{
	Use:   "songs <session>",
	Short: "List the songs of one history session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, ok := history.ParseSessionFileName(args[0] + ".session")
		if !ok {
			return errors.New("invalid session index: " + args[0])
		}
		if useIndex {
			return withIndex(func(db *database.Database) error {
				songs, err := db.GetSessionSongs(cmd.Context(), index)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), songs)
			})
		}
		buf, err := os.ReadFile(cfg.Serato.SessionPath(index))
		if err != nil {
			return fmt.Errorf("failed to read session %d: %w", index, err)
		}
		return printJSON(cmd.OutOrStdout(), history.ListSongs(buf))
	},
}

var useIndex bool

func init() {
	for _, c := range []*cobra.Command{cratesCmd, tracksCmd} {
		c.Flags().BoolVar(&useIndex, "index", false, "read from the SQLite index instead of the library files")
	}
	historyCmd.PersistentFlags().BoolVar(&useIndex, "index", false, "read from the SQLite index instead of the library files")
	historyCmd.AddCommand(historySessionsCmd, historySongsCmd)
	rootCmd.AddCommand(cratesCmd, tracksCmd, historyCmd)
}

func filterTracks(tracks []models.DatabaseTrack, query string) []models.DatabaseTrack {
	query = strings.ToLower(query)
	matched := []models.DatabaseTrack{}
	for _, t := range tracks {
		if strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Artist), query) ||
			strings.Contains(strings.ToLower(t.Album), query) {
			matched = append(matched, t)
		}
	}
	return matched
}

// readCrates decodes every crate file, skipping the ones that fail.
func readCrates(serato config.SeratoConfig, logger *logrus.Logger) ([]models.Crate, error) {
	paths, err := library.ListCrates(serato.CratesDir())
	if err != nil {
		return nil, err
	}
	crates := []models.Crate{}
	for _, p := range paths {
		c, err := library.ReadCrateFile(p)
		if err != nil {
			logger.WithError(err).WithField("file_path", p).Warn("Skipping crate")
			continue
		}
		crates = append(crates, c)
	}
	return crates, nil
}

// loadLibrary decodes everything an index import needs. Missing parts of the
// library are logged and left empty.
func loadLibrary(serato config.SeratoConfig, logger *logrus.Logger) (database.Library, error) {
	var lib database.Library

	version, tracks, err := library.ReadDatabaseFile(serato.DatabasePath())
	switch {
	case err == nil:
		lib.Version = version
		lib.Tracks = tracks
	case errors.Is(err, fs.ErrNotExist):
		logger.WithField("file_path", serato.DatabasePath()).Warn("Library database not found")
	default:
		return lib, err
	}

	crates, err := readCrates(serato, logger)
	switch {
	case err == nil:
		lib.Crates = crates
	case errors.Is(err, fs.ErrNotExist):
		logger.WithField("dir", serato.CratesDir()).Warn("Crates directory not found")
	default:
		return lib, err
	}

	sessions, err := history.ReadSessionsFile(serato.HistoryPath())
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		logger.WithField("file_path", serato.HistoryPath()).Warn("History index not found")
	default:
		return lib, err
	}
	for i := range sessions {
		songs, err := history.ReadSessionFile(serato.SessionsDir(), sessions[i].Index)
		if err != nil {
			logger.WithError(err).WithField("session", sessions[i].Index).Debug("Session file unavailable")
			continue
		}
		sessions[i].Songs = songs
	}
	lib.Sessions = sessions

	return lib, nil
}

// withIndex opens the configured index for the duration of fn.
func withIndex(fn func(db *database.Database) error) error {
	db, err := database.NewDatabase(cfg.Index.Path, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func indexedTracks(cmd *cobra.Command, args []string) error {
	return withIndex(func(db *database.Database) error {
		var (
			tracks []models.DatabaseTrack
			err    error
		)
		if len(args) == 1 {
			tracks, err = db.SearchTracks(cmd.Context(), args[0])
		} else {
			tracks, err = db.GetAllTracks(cmd.Context())
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), tracks)
	})
}

func indexedCrates(cmd *cobra.Command, args []string) error {
	return withIndex(func(db *database.Database) error {
		crates, err := db.GetCrates(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return printJSON(cmd.OutOrStdout(), crates)
		}
		for _, c := range crates {
			if c.Name != args[0] {
				continue
			}
			paths, err := db.GetCrateTracks(cmd.Context(), c.Name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.Crate{
				Name:       c.Name,
				SourcePath: c.SourcePath,
				TrackPaths: paths,
			})
		}
		return errors.New("crate not found: " + args[0])
	})
}
