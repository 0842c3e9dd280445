package metadata

import (
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrisle/serato-connect/internal/cache"
	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func geob(description string, data []byte) []byte {
	out := []byte{0}
	out = append(out, "application/octet-stream"...)
	out = append(out, 0, 0)
	out = append(out, description...)
	out = append(out, 0)
	return append(out, data...)
}

func markers2Body() []byte {
	payload := []byte{0, 3, 0, 0, 0x03, 0xE8, 0, 0xCC, 0, 0, 0, 0}
	entry := append([]byte("CUE\x00"), make([]byte, 4)...)
	binary.BigEndian.PutUint32(entry[4:], uint32(len(payload)))
	entry = append(entry, payload...)
	inner := append([]byte{0x01, 0x01}, entry...)
	inner = append(inner, 0)
	return append([]byte{0x01, 0x01}, codec.EncodeLineBase64(inner)...)
}

func TestParseGEOB(t *testing.T) {
	t.Run("Latin1", func(t *testing.T) {
		obj, err := ParseGEOB(geob("Serato Autotags", []byte{1, 2, 3}))
		if err != nil {
			t.Fatalf("ParseGEOB failed: %v", err)
		}
		if obj.MIMEType != "application/octet-stream" || obj.Description != "Serato Autotags" || obj.Filename != "" {
			t.Errorf("Unexpected object %+v", obj)
		}
		if len(obj.Data) != 3 || obj.Data[2] != 3 {
			t.Errorf("Unexpected data %v", obj.Data)
		}
	})

	t.Run("UTF16", func(t *testing.T) {
		frame := []byte{1}
		frame = append(frame, "bin\x00"...)
		frame = append(frame, 0xFF, 0xFE, 'f', 0, 0, 0)
		frame = append(frame, 0xFF, 0xFE, 'S', 0, 'x', 0, 0, 0)
		frame = append(frame, 9)
		obj, err := ParseGEOB(frame)
		if err != nil {
			t.Fatalf("ParseGEOB failed: %v", err)
		}
		if obj.Filename != "f" || obj.Description != "Sx" || len(obj.Data) != 1 {
			t.Errorf("Unexpected object %+v", obj)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		for _, frame := range [][]byte{nil, {0}, {0, 'a', 0, 'b'}} {
			if _, err := ParseGEOB(frame); err == nil {
				t.Errorf("Expected error for %v", frame)
			}
		}
	})
}

func TestCollectPayloads(t *testing.T) {
	autotags := []byte("\x01\x01128.00\x00-3.257\x000.000\x00")
	beatgrid := []byte{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0x43, 0x00, 0x00, 0x00, 0}
	comment := base64.StdEncoding.EncodeToString(append([]byte("application/octet-stream\x00\x00Serato BeatGrid\x00"), beatgrid...))

	raw := map[string]interface{}{
		"GEOB":              geob("Serato Autotags", autotags),
		"GEOB_1":            geob("Serato Markers2", markers2Body()),
		"GEOB_2":            geob("Something Else", []byte{1}),
		"TIT2":              "Title",
		"SERATO_BEATGRID":   comment,
		"serato_overview":   "!!!",
		"unrelated_comment": "x",
	}

	payloads := collectPayloads(raw)
	if len(payloads) != 3 {
		t.Fatalf("Expected 3 payloads, got %d: %v", len(payloads), payloads)
	}
	if string(payloads[KeyAutotags]) != string(autotags) {
		t.Errorf("Unexpected autotags payload %q", payloads[KeyAutotags])
	}
	if string(payloads[KeyBeatgrid]) != string(beatgrid) {
		t.Errorf("Unexpected beatgrid payload %v", payloads[KeyBeatgrid])
	}

	e := NewExtractor([]string{".mp3"}, quietLogger(), nil)
	result := models.TrackAnalysis{FilePath: "/music/a.mp3"}
	e.applyPayloads(&result, payloads)
	if result.Markers == nil || len(result.Markers.CuePoints) != 1 || result.Markers.CuePoints[0].PositionMs != 1000 {
		t.Errorf("Unexpected markers %+v", result.Markers)
	}
	if result.Beatgrid == nil {
		t.Fatal("Expected beatgrid")
	}
	if bpm, ok := result.Beatgrid.EffectiveBPM(); !ok || bpm != 128 {
		t.Errorf("Expected bpm 128, got %v/%v", bpm, ok)
	}
	if result.Autotags == nil || result.Autotags.BPM != 128 {
		t.Errorf("Unexpected autotags %+v", result.Autotags)
	}
}

func TestAnalyzeFallback(t *testing.T) {
	ac := cache.NewAnalysisCache(time.Minute)
	defer ac.Close()
	e := NewExtractor([]string{".mp3", ".flac", ".wav"}, quietLogger(), ac)

	t.Run("NonExistentFile", func(t *testing.T) {
		if _, err := e.Analyze("/nonexistent/file.mp3"); err == nil {
			t.Error("Expected error when analyzing a non-existent file")
		}
	})

	t.Run("InvalidFile", func(t *testing.T) {
		invalid := filepath.Join(t.TempDir(), "invalid.mp3")
		if err := os.WriteFile(invalid, []byte("this is not an audio file"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		analysis, err := e.Analyze(invalid)
		if err != nil {
			t.Fatalf("Expected graceful fallback, got %v", err)
		}
		if analysis.Title != "invalid" || analysis.FilePath != invalid {
			t.Errorf("Unexpected analysis %+v", analysis)
		}
		if analysis.Markers != nil || analysis.Beatgrid != nil {
			t.Error("Expected no Serato data")
		}
	})

	t.Run("IsAudioFile", func(t *testing.T) {
		cases := []struct {
			filename string
			expected bool
		}{
			{"song.mp3", true},
			{"song.FLAC", true},
			{"song.txt", false},
			{"", false},
		}
		for _, tc := range cases {
			if got := e.IsAudioFile(tc.filename); got != tc.expected {
				t.Errorf("IsAudioFile(%s): expected %v, got %v", tc.filename, tc.expected, got)
			}
		}
	})
}
