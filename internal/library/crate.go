// Package library decodes crate files and the track database.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chrisle/serato-connect/internal/chunk"
	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

// CrateExt is the extension of crate files.
const CrateExt = ".crate"

// ErrNotCrate is returned by ReadCrateFile for paths without the crate extension.
var ErrNotCrate = errors.New("not a crate file")

var (
	tagVersion   = chunk.NewTag("vrsn")
	tagTrack     = chunk.NewTag("otrk")
	tagTrackPath = chunk.NewTag("ptrk")
)

// DecodeCrate decodes a crate buffer. Unknown tags are ignored and a truncated
// tail is dropped; a buffer with no tracks yields an empty path list.
func DecodeCrate(buf []byte) models.Crate {
	crate := models.Crate{TrackPaths: []string{}}

	w := chunk.Walk(buf, 0, len(buf), chunk.LibraryContainers)
	for w.Next() {
		c := w.Chunk()
		switch c.Tag {
		case tagVersion:
			crate.Version = codec.DecodeUTF16BE(c.Data)
		case tagTrack:
			for _, child := range c.Children {
				if child.Tag == tagTrackPath {
					crate.TrackPaths = append(crate.TrackPaths, codec.DecodeUTF16BE(child.Data))
				}
			}
		}
	}
	return crate
}

// CrateName derives the display name of a crate from its file name. Nested
// crates use "%%" as the path separator on disk.
func CrateName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(base, "%%", "/")
}

// ReadCrateFile reads and decodes a single crate file.
func ReadCrateFile(path string) (models.Crate, error) {
	if !strings.EqualFold(filepath.Ext(path), CrateExt) {
		return models.Crate{}, fmt.Errorf("%w: %s", ErrNotCrate, path)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return models.Crate{}, fmt.Errorf("failed to read crate: %w", err)
	}
	crate := DecodeCrate(buf)
	crate.Name = CrateName(path)
	crate.SourcePath = path
	return crate, nil
}

// ListCrates returns the crate files of dir sorted by name.
func ListCrates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list crates: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), CrateExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
