package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chrisle/serato-connect/pkg/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database wraps a *sql.DB holding a searchable index of a decoded Serato
// library. It is safe for concurrent use because the underlying *sql.DB is
// concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	searchTracksStmt *sql.Stmt
	sessionSongsStmt *sql.Stmt
}

// Library is one full snapshot of decoded library files to import
type Library struct {
	Version  string
	Tracks   []models.DatabaseTrack
	Crates   []models.Crate
	Sessions []models.HistorySession
}

// ImportRun describes a completed import
type ImportRun struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	TrackCount   int       `json:"trackCount"`
	CrateCount   int       `json:"crateCount"`
	SessionCount int       `json:"sessionCount"`
	CompletedAt  time.Time `json:"completedAt"`
}

// CrateSummary is a crate with its track count
type CrateSummary struct {
	Name       string `json:"name"`
	SourcePath string `json:"sourcePath"`
	TrackCount int    `json:"trackCount"`
}

// NewDatabase opens (or creates) the index at dbPath and ensures the schema
// exists. Caller should Close() it when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with few connections
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Index initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist. This
// is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	tables := []string{`
	CREATE TABLE IF NOT EXISTS tracks (
		file_path TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		song_key TEXT NOT NULL DEFAULT '',
		bpm REAL,
		length REAL,
		bitrate INTEGER,
		sample_rate INTEGER,
		file_type TEXT NOT NULL DEFAULT '',
		beatgrid_locked BOOLEAN,
		missing BOOLEAN,
		date_added INTEGER,
		comment TEXT NOT NULL DEFAULT '',
		grouping TEXT NOT NULL DEFAULT '',
		composer TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT '',
		year INTEGER
	);`, `
	CREATE TABLE IF NOT EXISTS crates (
		name TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT ''
	);`, `
	CREATE TABLE IF NOT EXISTS crate_tracks (
		crate_name TEXT NOT NULL,
		position INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		FOREIGN KEY (crate_name) REFERENCES crates(name) ON DELETE CASCADE,
		PRIMARY KEY (crate_name, position)
	);`, `
	CREATE TABLE IF NOT EXISTS history_sessions (
		session_index INTEGER PRIMARY KEY,
		date TEXT NOT NULL DEFAULT ''
	);`, `
	CREATE TABLE IF NOT EXISTS history_songs (
		session_index INTEGER NOT NULL,
		entry_index INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		bpm INTEGER,
		start_time INTEGER,
		end_time INTEGER,
		play_time INTEGER,
		played BOOLEAN NOT NULL DEFAULT FALSE,
		playing BOOLEAN NOT NULL DEFAULT FALSE,
		deck INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_index, entry_index)
	);`, `
	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		version TEXT NOT NULL DEFAULT '',
		track_count INTEGER NOT NULL,
		crate_count INTEGER NOT NULL,
		session_count INTEGER NOT NULL,
		completed_at DATETIME NOT NULL
	);`}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_tracks_search ON tracks(title, artist, album);",
		"CREATE INDEX IF NOT EXISTS idx_crate_tracks_path ON crate_tracks(file_path);",
		"CREATE INDEX IF NOT EXISTS idx_history_songs_path ON history_songs(file_path);",
		"CREATE INDEX IF NOT EXISTS idx_import_runs_completed ON import_runs(completed_at);",
	}

	for _, stmt := range append(tables, indices...) {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// prepareStatements prepares commonly used SQL statements
func (db *Database) prepareStatements() error {
	var err error

	db.searchTracksStmt, err = db.conn.Prepare(`
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE title LIKE ? OR artist LIKE ? OR album LIKE ?
		ORDER BY artist, album, title`)
	if err != nil {
		return fmt.Errorf("failed to prepare search tracks statement: %w", err)
	}

	db.sessionSongsStmt, err = db.conn.Prepare(`
		SELECT ` + songColumns + `
		FROM history_songs WHERE session_index = ?
		ORDER BY entry_index`)
	if err != nil {
		return fmt.Errorf("failed to prepare session songs statement: %w", err)
	}

	return nil
}

// ImportLibrary replaces the indexed library with lib in one transaction and
// records the run.
func (db *Database) ImportLibrary(ctx context.Context, lib Library) (ImportRun, error) {
	run := ImportRun{
		ID:           uuid.New().String(),
		Version:      lib.Version,
		TrackCount:   len(lib.Tracks),
		CrateCount:   len(lib.Crates),
		SessionCount: len(lib.Sessions),
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return ImportRun{}, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"crate_tracks", "crates", "tracks", "history_songs", "history_sessions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return ImportRun{}, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertTracks(ctx, tx, lib.Tracks); err != nil {
		return ImportRun{}, err
	}
	if err := insertCrates(ctx, tx, lib.Crates); err != nil {
		return ImportRun{}, err
	}
	for _, s := range lib.Sessions {
		if err := upsertSession(ctx, tx, s); err != nil {
			return ImportRun{}, err
		}
	}

	run.CompletedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO import_runs (id, version, track_count, crate_count, session_count, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Version, run.TrackCount, run.CrateCount, run.SessionCount, run.CompletedAt); err != nil {
		return ImportRun{}, fmt.Errorf("failed to record import run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ImportRun{}, fmt.Errorf("failed to commit import: %w", err)
	}

	db.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"tracks":   run.TrackCount,
		"crates":   run.CrateCount,
		"sessions": run.SessionCount,
	}).Info("Library imported")
	return run, nil
}

func insertTracks(ctx context.Context, tx *sql.Tx, tracks []models.DatabaseTrack) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO tracks (file_path, title, artist, album, genre, song_key, bpm, length,
			bitrate, sample_rate, file_type, beatgrid_locked, missing, date_added, comment, grouping,
			composer, label, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		_, err := stmt.ExecContext(ctx,
			t.FilePath, t.Title, t.Artist, t.Album, t.Genre, t.Key, t.BPM, t.Length,
			nullUint32(t.Bitrate), nullUint32(t.SampleRate), t.FileType, t.BeatgridLocked, t.Missing,
			nullUnix(t.DateAdded), t.Comment, t.Grouping, t.Composer, t.Label, nullUint32(t.Year))
		if err != nil {
			return fmt.Errorf("failed to insert track %s: %w", t.FilePath, err)
		}
	}
	return nil
}

func insertCrates(ctx context.Context, tx *sql.Tx, crates []models.Crate) error {
	for _, c := range crates {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO crates (name, source_path, version) VALUES (?, ?, ?)",
			c.Name, c.SourcePath, c.Version); err != nil {
			return fmt.Errorf("failed to insert crate %s: %w", c.Name, err)
		}
		for i, p := range c.TrackPaths {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO crate_tracks (crate_name, position, file_path) VALUES (?, ?, ?)",
				c.Name, i, p); err != nil {
				return fmt.Errorf("failed to insert crate track: %w", err)
			}
		}
	}
	return nil
}

func upsertSession(ctx context.Context, tx *sql.Tx, s models.HistorySession) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO history_sessions (session_index, date) VALUES (?, ?)",
		s.Index, s.Date); err != nil {
		return fmt.Errorf("failed to insert session %d: %w", s.Index, err)
	}
	return replaceSongs(ctx, tx, s.Index, s.Songs)
}

func replaceSongs(ctx context.Context, tx *sql.Tx, session uint32, songs []models.HistorySong) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM history_songs WHERE session_index = ?", session); err != nil {
		return fmt.Errorf("failed to clear songs of session %d: %w", session, err)
	}
	for _, s := range songs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO history_songs (session_index, entry_index, title, artist, file_path,
				bpm, start_time, end_time, play_time, played, playing, deck)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session, s.Index, s.Title, s.Artist, s.FilePath, nullUint32(s.BPM),
			nullUnix(s.StartTime), nullUnix(s.EndTime), nullUint32(s.PlayTime), s.Played, s.Playing, s.Deck)
		if err != nil {
			return fmt.Errorf("failed to insert song %d of session %d: %w", s.Index, session, err)
		}
	}
	return nil
}

// ReplaceSessionSongs stores the current songs of one session, creating the
// session row if needed.
func (db *Database) ReplaceSessionSongs(ctx context.Context, session models.HistorySession) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO history_sessions (session_index, date) VALUES (?, ?)",
		session.Index, session.Date); err != nil {
		return fmt.Errorf("failed to insert session %d: %w", session.Index, err)
	}
	if err := replaceSongs(ctx, tx, session.Index, session.Songs); err != nil {
		return err
	}
	return tx.Commit()
}

const trackColumns = `file_path, title, artist, album, genre, song_key, bpm, length, bitrate,
	sample_rate, file_type, beatgrid_locked, missing, date_added, comment, grouping, composer, label, year`

const songColumns = `entry_index, title, artist, file_path, bpm, start_time, end_time, play_time,
	played, playing, deck`

// GetAllTracks returns all tracks ordered by artist/album/title.
func (db *Database) GetAllTracks(ctx context.Context) ([]models.DatabaseTrack, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+trackColumns+" FROM tracks ORDER BY artist, album, title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// SearchTracks matches query against title, artist and album.
func (db *Database) SearchTracks(ctx context.Context, query string) ([]models.DatabaseTrack, error) {
	pattern := "%" + query + "%"
	rows, err := db.searchTracksStmt.QueryContext(ctx, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// GetCrates lists crates with their track counts.
func (db *Database) GetCrates(ctx context.Context) ([]CrateSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.name, c.source_path, COUNT(ct.file_path)
		FROM crates c LEFT JOIN crate_tracks ct ON ct.crate_name = c.name
		GROUP BY c.name ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	crates := []CrateSummary{}
	for rows.Next() {
		var c CrateSummary
		if err := rows.Scan(&c.Name, &c.SourcePath, &c.TrackCount); err != nil {
			return nil, err
		}
		crates = append(crates, c)
	}
	return crates, rows.Err()
}

// GetCrateTracks returns the track paths of a crate in crate order.
func (db *Database) GetCrateTracks(ctx context.Context, name string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT file_path FROM crate_tracks WHERE crate_name = ? ORDER BY position", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetSessions lists history sessions, newest first.
func (db *Database) GetSessions(ctx context.Context) ([]models.HistorySession, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT session_index, date FROM history_sessions ORDER BY session_index DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.HistorySession{}
	for rows.Next() {
		var s models.HistorySession
		if err := rows.Scan(&s.Index, &s.Date); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSessionSongs returns the songs of one session in entry order.
func (db *Database) GetSessionSongs(ctx context.Context, session uint32) ([]models.HistorySong, error) {
	rows, err := db.sessionSongsStmt.QueryContext(ctx, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	songs := []models.HistorySong{}
	for rows.Next() {
		var (
			s                  models.HistorySong
			bpm, playTime      sql.NullInt64
			startTime, endTime sql.NullInt64
		)
		if err := rows.Scan(&s.Index, &s.Title, &s.Artist, &s.FilePath, &bpm, &startTime, &endTime,
			&playTime, &s.Played, &s.Playing, &s.Deck); err != nil {
			return nil, err
		}
		s.BPM = uint32Ptr(bpm)
		s.PlayTime = uint32Ptr(playTime)
		s.StartTime = timePtr(startTime)
		s.EndTime = timePtr(endTime)
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

// GetLastImport returns the most recent import run.
func (db *Database) GetLastImport(ctx context.Context) (ImportRun, error) {
	var run ImportRun
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, version, track_count, crate_count, session_count, completed_at
		FROM import_runs ORDER BY completed_at DESC LIMIT 1`).
		Scan(&run.ID, &run.Version, &run.TrackCount, &run.CrateCount, &run.SessionCount, &run.CompletedAt)
	if err != nil {
		return ImportRun{}, err
	}
	return run, nil
}

// Close releases prepared statements and the connection.
func (db *Database) Close() error {
	for _, stmt := range []*sql.Stmt{db.searchTracksStmt, db.sessionSongsStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return db.conn.Close()
}

func scanTrackRows(rows *sql.Rows) ([]models.DatabaseTrack, error) {
	tracks := []models.DatabaseTrack{}
	for rows.Next() {
		var (
			t                         models.DatabaseTrack
			bpm, length               sql.NullFloat64
			bitrate, sampleRate, year sql.NullInt64
			dateAdded                 sql.NullInt64
			beatgridLocked, missing   sql.NullBool
		)
		if err := rows.Scan(&t.FilePath, &t.Title, &t.Artist, &t.Album, &t.Genre, &t.Key, &bpm, &length,
			&bitrate, &sampleRate, &t.FileType, &beatgridLocked, &missing, &dateAdded, &t.Comment,
			&t.Grouping, &t.Composer, &t.Label, &year); err != nil {
			return nil, err
		}
		if bpm.Valid {
			t.BPM = &bpm.Float64
		}
		if length.Valid {
			t.Length = &length.Float64
		}
		if beatgridLocked.Valid {
			t.BeatgridLocked = &beatgridLocked.Bool
		}
		if missing.Valid {
			t.Missing = &missing.Bool
		}
		t.Bitrate = uint32Ptr(bitrate)
		t.SampleRate = uint32Ptr(sampleRate)
		t.Year = uint32Ptr(year)
		t.DateAdded = timePtr(dateAdded)
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func nullUint32(v *uint32) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func uint32Ptr(v sql.NullInt64) *uint32 {
	if !v.Valid {
		return nil
	}
	n := uint32(v.Int64)
	return &n
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
