// Package history decodes the play-history index and its session files.
package history

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chrisle/serato-connect/internal/chunk"
	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

// Field identifies an attribute inside an adat container. History files store
// these as raw big-endian integers in the tag position.
type Field uint32

const (
	FieldIndex     Field = 1
	FieldFilePath  Field = 2
	FieldTitle     Field = 6
	FieldArtist    Field = 7
	FieldBPM       Field = 15
	FieldStartTime Field = 28
	FieldEndTime   Field = 29
	FieldDeck      Field = 31
	FieldDate      Field = 41
	FieldPlayTime  Field = 45
	FieldPlayed    Field = 50
)

// Tag returns the chunk tag for the field.
func (f Field) Tag() chunk.Tag {
	return chunk.IntTag(uint32(f))
}

var (
	tagSession = chunk.NewTag("oses")
	tagEntry   = chunk.NewTag("oent")
	tagData    = chunk.NewTag("adat")
)

// SessionsFileName is the history index inside the History directory.
const SessionsFileName = "history.database"

// SessionFileName returns the file name of the session with the given index.
func SessionFileName(index uint32) string {
	return strconv.FormatUint(uint64(index), 10) + ".session"
}

// attributes indexes the fields of one adat container by their integer tag.
type attributes map[Field][]byte

func collectAttributes(container chunk.Chunk) attributes {
	attrs := attributes{}
	data, ok := container.Find(tagData)
	if !ok {
		return attrs
	}
	for _, c := range data.Children {
		if c.IsContainer() {
			continue
		}
		attrs[Field(c.Tag.Uint32())] = c.Data
	}
	return attrs
}

func (a attributes) uint32(f Field) (uint32, bool) {
	b, ok := a[f]
	if !ok || len(b) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

func (a attributes) text(f Field) string {
	return codec.DecodeUTF16BE(a[f])
}

func (a attributes) flag(f Field) bool {
	b, ok := a[f]
	return ok && len(b) > 0 && b[0] != 0
}

func (a attributes) time(f Field) *time.Time {
	secs, ok := a.uint32(f)
	if !ok {
		return nil
	}
	t := time.Unix(int64(secs), 0).UTC()
	return &t
}

// ListSessions decodes the history index into (date, index) pairs in file
// order. Sessions without an index attribute are skipped.
func ListSessions(buf []byte) []models.HistorySession {
	sessions := []models.HistorySession{}
	w := chunk.Walk(buf, 0, len(buf), chunk.HistoryContainers)
	for w.Next() {
		c := w.Chunk()
		if c.Tag != tagSession {
			continue
		}
		attrs := collectAttributes(c)
		index, ok := attrs.uint32(FieldIndex)
		if !ok {
			continue
		}
		sessions = append(sessions, models.HistorySession{
			Date:  attrs.text(FieldDate),
			Index: index,
		})
	}
	return sessions
}

// ListSongs decodes a session file into its song entries in file order.
func ListSongs(buf []byte) []models.HistorySong {
	songs := []models.HistorySong{}
	w := chunk.Walk(buf, 0, len(buf), chunk.HistoryContainers)
	for w.Next() {
		c := w.Chunk()
		if c.Tag != tagEntry {
			continue
		}
		songs = append(songs, decodeSong(collectAttributes(c)))
	}
	return songs
}

func decodeSong(attrs attributes) models.HistorySong {
	song := models.HistorySong{
		Title:     attrs.text(FieldTitle),
		Artist:    attrs.text(FieldArtist),
		FilePath:  attrs.text(FieldFilePath),
		StartTime: attrs.time(FieldStartTime),
		EndTime:   attrs.time(FieldEndTime),
		Played:    attrs.flag(FieldPlayed),
	}
	song.Index, _ = attrs.uint32(FieldIndex)
	song.Deck, _ = attrs.uint32(FieldDeck)
	if bpm, ok := attrs.uint32(FieldBPM); ok {
		song.BPM = &bpm
	}
	if pt, ok := attrs.uint32(FieldPlayTime); ok {
		song.PlayTime = &pt
	}
	// A song that has started but has no play time yet is still on a deck.
	song.Playing = song.Played && song.StartTime != nil && song.PlayTime == nil
	return song
}

// ReadSessionsFile reads and decodes the history index at path.
func ReadSessionsFile(path string) ([]models.HistorySession, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history index: %w", err)
	}
	return ListSessions(buf), nil
}

// ReadSessionFile reads and decodes the session file with the given index from
// sessionsDir.
func ReadSessionFile(sessionsDir string, index uint32) ([]models.HistorySong, error) {
	buf, err := os.ReadFile(filepath.Join(sessionsDir, SessionFileName(index)))
	if err != nil {
		return nil, fmt.Errorf("failed to read session %d: %w", index, err)
	}
	return ListSongs(buf), nil
}

// ParseSessionFileName returns the index encoded in a session file name.
func ParseSessionFileName(name string) (uint32, bool) {
	base := filepath.Base(name)
	if filepath.Ext(base) != ".session" {
		return 0, false
	}
	n, err := strconv.ParseUint(base[:len(base)-len(".session")], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
