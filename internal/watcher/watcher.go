// Package watcher follows the live history session and reports songs starting
// and finishing on each deck.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chrisle/serato-connect/internal/history"
	"github.com/chrisle/serato-connect/internal/player"
	"github.com/chrisle/serato-connect/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// SessionStore persists the songs of a session as they change
type SessionStore interface {
	ReplaceSessionSongs(ctx context.Context, session models.HistorySession) error
}

// Watcher re-decodes session files when Serato rewrites them
type Watcher struct {
	sessionsDir string
	debounce    time.Duration
	state       *player.StateManager
	store       SessionStore
	logger      *logrus.Logger

	mu             sync.Mutex
	currentSession uint32
	hasSession     bool
}

// New creates a watcher over sessionsDir. store may be nil.
func New(sessionsDir string, debounce time.Duration, state *player.StateManager, store SessionStore, logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Watcher{
		sessionsDir: sessionsDir,
		debounce:    debounce,
		state:       state,
		store:       store,
		logger:      logger,
	}
}

// Run watches the sessions directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.sessionsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.sessionsDir, err)
	}
	w.logger.WithField("sessions_dir", w.sessionsDir).Info("History watcher started")

	ready := make(chan string, 16)
	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("History watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isSessionEvent(event) {
				continue
			}
			// Serato rewrites a session several times per update
			if t, ok := timers[event.Name]; ok {
				t.Stop()
			}
			name := event.Name
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(timers, path)
			if _, err := w.ProcessFile(ctx, path); err != nil {
				w.logger.WithError(err).WithField("file_path", path).Warn("Failed to process session file")
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("History watcher error")
		}
	}
}

func isSessionEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := history.ParseSessionFileName(name)
	return ok
}

// ProcessFile decodes one session file, updates deck state and the store, and
// returns the resulting deck events.
func (w *Watcher) ProcessFile(ctx context.Context, path string) ([]player.Event, error) {
	index, ok := history.ParseSessionFileName(path)
	if !ok {
		return nil, fmt.Errorf("not a session file: %s", path)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %d: %w", index, err)
	}
	songs := history.ListSongs(buf)

	w.mu.Lock()
	if w.hasSession && index < w.currentSession {
		w.mu.Unlock()
		w.logger.WithField("session", index).Debug("Ignoring update to an older session")
		return nil, nil
	}
	if w.hasSession && index != w.currentSession {
		w.logger.WithFields(logrus.Fields{
			"previous": w.currentSession,
			"session":  index,
		}).Info("New history session")
		w.state.Reset()
	}
	w.currentSession = index
	w.hasSession = true
	w.mu.Unlock()

	events, dropped := w.state.ApplySongs(songs)
	if dropped > 0 {
		w.logger.WithFields(logrus.Fields{
			"session": index,
			"dropped": dropped,
		}).Warn("Dropped deck event subscribers that fell behind")
	}
	for _, ev := range events {
		w.logger.WithFields(logrus.Fields{
			"event":  ev.Type,
			"deck":   ev.Deck,
			"artist": ev.Song.Artist,
			"title":  ev.Song.Title,
		}).Info("Deck update")
	}

	if w.store != nil {
		if err := w.store.ReplaceSessionSongs(ctx, models.HistorySession{Index: index, Songs: songs}); err != nil {
			return events, fmt.Errorf("failed to store session %d: %w", index, err)
		}
	}
	return events, nil
}
