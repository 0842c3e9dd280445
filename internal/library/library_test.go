package library

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrisle/serato-connect/internal/codec"
)

func tlv(tag string, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	copy(out, tag)
	binary.BigEndian.PutUint32(out[4:], uint32(len(payload)))
	return append(out, payload...)
}

func text(tag, s string) []byte {
	return tlv(tag, codec.EncodeUTF16BE(s))
}

func join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func TestDecodeCrate(t *testing.T) {
	t.Run("VersionAndPaths", func(t *testing.T) {
		buf := join(
			text("vrsn", "1.0"),
			tlv("osrt", join(text("tvcn", "song"))),
			tlv("otrk", text("ptrk", "/a.mp3")),
			tlv("otrk", text("ptrk", "/b.mp3")),
		)
		crate := DecodeCrate(buf)
		if crate.Version != "1.0" {
			t.Errorf("Expected version 1.0, got %q", crate.Version)
		}
		if len(crate.TrackPaths) != 2 || crate.TrackPaths[0] != "/a.mp3" || crate.TrackPaths[1] != "/b.mp3" {
			t.Errorf("Expected [/a.mp3 /b.mp3], got %v", crate.TrackPaths)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		crate := DecodeCrate(text("vrsn", "1.0/Serato ScratchLive Crate"))
		if crate.TrackPaths == nil || len(crate.TrackPaths) != 0 {
			t.Errorf("Expected empty non-nil paths, got %v", crate.TrackPaths)
		}
	})

	t.Run("TrailingGarbage", func(t *testing.T) {
		buf := join(tlv("otrk", text("ptrk", "/a.mp3")), []byte{'o', 't', 'r', 'k', 0, 0, 0x10})
		crate := DecodeCrate(buf)
		if len(crate.TrackPaths) != 1 {
			t.Errorf("Expected 1 path, got %v", crate.TrackPaths)
		}
	})
}

func TestReadCrateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "House%%Deep.crate")
	if err := os.WriteFile(path, join(text("vrsn", "1.0"), tlv("otrk", text("ptrk", "/x.mp3"))), 0644); err != nil {
		t.Fatalf("Failed to write crate: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	crate, err := ReadCrateFile(path)
	if err != nil {
		t.Fatalf("ReadCrateFile failed: %v", err)
	}
	if crate.Name != "House/Deep" {
		t.Errorf("Expected name House/Deep, got %q", crate.Name)
	}
	if crate.SourcePath != path {
		t.Errorf("Expected source path %s, got %s", path, crate.SourcePath)
	}

	paths, err := ListCrates(dir)
	if err != nil {
		t.Fatalf("ListCrates failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != path {
		t.Errorf("Expected only the crate file, got %v", paths)
	}

	if _, err := ReadCrateFile(filepath.Join(dir, "notes.txt")); !errors.Is(err, ErrNotCrate) {
		t.Errorf("Expected ErrNotCrate, got %v", err)
	}
}

func TestDecodeDatabase(t *testing.T) {
	t.Run("FullRecord", func(t *testing.T) {
		buf := join(
			text("vrsn", "2.0/Serato Scratch LIVE Database"),
			tlv("otrk", join(
				text("ttyp", "mp3"),
				text("pfil", "Music/track.mp3"),
				text("tsng", "Title"),
				text("tart", "Artist"),
				text("talb", "Album"),
				text("tgen", "House"),
				text("tkey", "Am"),
				text("tbpm", "124.00"),
				text("tlen", "03:45.50"),
				text("tbit", "320.0kbps"),
				text("tsmp", "44.1k"),
				text("ttyr", "2019"),
				text("tcom", "comment"),
				text("tgrp", "group"),
				text("tcmp", "composer"),
				text("tlbl", "label"),
				tlv("bbgl", []byte{1}),
				tlv("bmis", []byte{0}),
				tlv("uadd", u32(1600000000)),
				tlv("sxyz", []byte{0, 1}),
				tlv("zzzz", []byte{9, 9, 9}),
			)),
		)
		version, tracks := DecodeDatabase(buf)
		if version != "2.0/Serato Scratch LIVE Database" {
			t.Errorf("Unexpected version %q", version)
		}
		if len(tracks) != 1 {
			t.Fatalf("Expected 1 track, got %d", len(tracks))
		}
		tr := tracks[0]
		if tr.FilePath != "Music/track.mp3" || tr.Title != "Title" || tr.Artist != "Artist" || tr.Album != "Album" {
			t.Errorf("Unexpected text fields %+v", tr)
		}
		if tr.Genre != "House" || tr.Key != "Am" || tr.FileType != "mp3" {
			t.Errorf("Unexpected text fields %+v", tr)
		}
		if tr.Comment != "comment" || tr.Grouping != "group" || tr.Composer != "composer" || tr.Label != "label" {
			t.Errorf("Unexpected text fields %+v", tr)
		}
		if tr.BPM == nil || *tr.BPM != 124 {
			t.Errorf("Expected bpm 124, got %v", tr.BPM)
		}
		if tr.Length == nil || *tr.Length != 225.5 {
			t.Errorf("Expected length 225.5, got %v", tr.Length)
		}
		if tr.Bitrate == nil || *tr.Bitrate != 320 {
			t.Errorf("Expected bitrate 320, got %v", tr.Bitrate)
		}
		if tr.SampleRate == nil || *tr.SampleRate != 44100 {
			t.Errorf("Expected sample rate 44100, got %v", tr.SampleRate)
		}
		if tr.Year == nil || *tr.Year != 2019 {
			t.Errorf("Expected year 2019, got %v", tr.Year)
		}
		if tr.BeatgridLocked == nil || !*tr.BeatgridLocked {
			t.Errorf("Expected beatgrid locked, got %v", tr.BeatgridLocked)
		}
		if tr.Missing == nil || *tr.Missing {
			t.Errorf("Expected missing false, got %v", tr.Missing)
		}
		if tr.DateAdded == nil || tr.DateAdded.Unix() != 1600000000 {
			t.Errorf("Expected date added 1600000000, got %v", tr.DateAdded)
		}
	})

	t.Run("UnmappedFields", func(t *testing.T) {
		buf := tlv("otrk", join(
			text("pfil", "/a.mp3"),
			text("tnew", "later field"),
			tlv("bcrt", []byte{1}),
			tlv("ufsb", u32(77)),
			tlv("sbav", []byte{0x01, 0x02}),
			tlv("zzzz", []byte{9, 9, 9}),
			tlv("sbad", []byte{0x01}),
		))
		_, tracks := DecodeDatabase(buf)
		if len(tracks) != 1 {
			t.Fatalf("Expected 1 track, got %d", len(tracks))
		}
		extra := tracks[0].Extra
		tests := []struct {
			tag  string
			want interface{}
		}{
			{"tnew", "later field"},
			{"bcrt", true},
			{"ufsb", uint32(77)},
			{"sbav", uint32(0x0102)},
		}
		for _, tt := range tests {
			if got, ok := extra[tt.tag]; !ok || got != tt.want {
				t.Errorf("Expected %s=%v, got %v", tt.tag, tt.want, got)
			}
		}
		raw, ok := extra["zzzz"].([]byte)
		if !ok || len(raw) != 3 || raw[0] != 9 {
			t.Errorf("Expected raw zzzz bytes, got %v", extra["zzzz"])
		}
		if _, ok := extra["sbad"]; ok {
			t.Error("Expected short u16 field to be skipped")
		}
		if _, ok := extra["pfil"]; ok {
			t.Error("Expected mapped fields to stay out of Extra")
		}
	})

	t.Run("MissingFilePath", func(t *testing.T) {
		buf := join(
			tlv("otrk", join(text("tsng", "Orphan"), text("tart", "Nobody"))),
			tlv("otrk", text("pfil", "/kept.mp3")),
		)
		_, tracks := DecodeDatabase(buf)
		if len(tracks) != 1 || tracks[0].FilePath != "/kept.mp3" {
			t.Errorf("Expected only /kept.mp3, got %+v", tracks)
		}
	})

	t.Run("ZeroTracks", func(t *testing.T) {
		_, tracks := DecodeDatabase(nil)
		if tracks == nil || len(tracks) != 0 {
			t.Errorf("Expected empty non-nil tracks, got %v", tracks)
		}
	})

	t.Run("TextDateFallback", func(t *testing.T) {
		_, tracks := DecodeDatabase(tlv("otrk", join(text("pfil", "/a.mp3"), text("tadd", "1500000000"))))
		if len(tracks) != 1 || tracks[0].DateAdded == nil || tracks[0].DateAdded.Unix() != 1500000000 {
			t.Errorf("Expected tadd to fill the date, got %+v", tracks)
		}
	})

	t.Run("UnparsableNumbers", func(t *testing.T) {
		_, tracks := DecodeDatabase(tlv("otrk", join(text("pfil", "/a.mp3"), text("tbpm", "n/a"), text("tlen", "soon"))))
		if len(tracks) != 1 || tracks[0].BPM != nil || tracks[0].Length != nil {
			t.Errorf("Expected unset numeric fields, got %+v", tracks)
		}
	})
}

func TestParseHelpers(t *testing.T) {
	lengths := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"03:45.12", 225.12, true},
		{"1:02:03", 3723, true},
		{"200.5", 200.5, true},
		{"", 0, false},
		{"ab:cd", 0, false},
	}
	for _, tc := range lengths {
		got, ok := ParseLength(tc.input)
		if ok != tc.ok || (ok && (got-tc.want > 1e-9 || tc.want-got > 1e-9)) {
			t.Errorf("ParseLength(%q): expected %v/%v, got %v/%v", tc.input, tc.want, tc.ok, got, ok)
		}
	}

	rates := []struct {
		input string
		want  uint32
		ok    bool
	}{
		{"44.1k", 44100, true},
		{"48 kHz", 48000, true},
		{"96000", 96000, true},
		{"unknown", 0, false},
	}
	for _, tc := range rates {
		got, ok := ParseSampleRate(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseSampleRate(%q): expected %v/%v, got %v/%v", tc.input, tc.want, tc.ok, got, ok)
		}
	}
}
