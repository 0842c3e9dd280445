package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chrisle/serato-connect/internal/cache"
	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/internal/tags"
	"github.com/chrisle/serato-connect/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Extractor reads audio files and decodes the Serato data stored in their tags
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
	cache            *cache.AnalysisCache
}

// NewExtractor creates a new extractor. A nil cache disables caching.
func NewExtractor(supportedFormats []string, logger *logrus.Logger, analysisCache *cache.AnalysisCache) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
		cache:            analysisCache,
	}
}

// Analyze decodes the Serato tags of an audio file. A file whose tags cannot be
// read still yields an analysis named after the file, without markers.
func (e *Extractor) Analyze(filePath string) (models.TrackAnalysis, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Error("Failed to open audio file")
		return models.TrackAnalysis{}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return models.TrackAnalysis{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	key := cache.FileKey(filePath, stat.Size(), stat.ModTime())
	if e.cache != nil {
		if cached, ok := e.cache.GetAnalysis(key); ok {
			return cached, nil
		}
	}

	analysis := models.TrackAnalysis{
		FilePath: filePath,
		Title:    strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
	}

	duration, err := e.calculateDuration(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
	}
	analysis.DurationSec = duration

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to read tags, no Serato data available")
		return analysis, nil
	}

	if title := metadata.Title(); title != "" {
		analysis.Title = title
	}
	analysis.Artist = metadata.Artist()

	e.applyPayloads(&analysis, collectPayloads(metadata.Raw()))

	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"format":         metadata.Format(),
		"hasMarkers":     analysis.Markers != nil,
		"hasBeatgrid":    analysis.Beatgrid != nil,
		"processingTime": time.Since(startTime),
	}).Debug("Analyzed audio file")

	if e.cache != nil {
		e.cache.SetAnalysis(key, analysis)
	}
	return analysis, nil
}

// applyPayloads decodes each recognized payload into the analysis. Markers2
// takes precedence over the legacy markers when both exist.
func (e *Extractor) applyPayloads(analysis *models.TrackAnalysis, payloads map[Key][]byte) {
	if body, ok := payloads[KeyMarkers2]; ok {
		m, err := decodeMarkers2Body(body)
		if err != nil {
			e.logger.WithError(err).WithField("filePath", analysis.FilePath).Warn("Failed to decode markers")
		} else {
			analysis.Markers = &m
		}
	}
	if body, ok := payloads[KeyMarkers]; ok && analysis.Markers == nil {
		m := tags.DecodeMarkers(body)
		analysis.Markers = &m
	}
	if body, ok := payloads[KeyBeatgrid]; ok {
		g := tags.DecodeBeatgrid(body)
		analysis.Beatgrid = &g
	}
	if body, ok := payloads[KeyAutotags]; ok {
		a := tags.DecodeAutotags(body)
		analysis.Autotags = &a
	}
	if body, ok := payloads[KeyOverview]; ok {
		o := tags.DecodeOverview(body)
		analysis.Overview = &o
	}
}

// decodeMarkers2Body handles the two shapes of a Markers2 object: a version
// prefix followed by NUL-padded base64 text, or the entries themselves.
func decodeMarkers2Body(body []byte) (models.Markers2, error) {
	text := strings.TrimRight(string(bytes.TrimPrefix(body, []byte{0x01, 0x01})), "\x00")
	if codec.IsLineBase64Candidate(text) {
		return tags.DecodeMarkers2Base64(text)
	}
	return tags.DecodeMarkers2(body), nil
}

// calculateDuration calculates the duration of an audio file in seconds
func (e *Extractor) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return durationMP3(filePath)
	case ".flac":
		return durationFLAC(filePath)
	case ".wav":
		return durationWAV(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// durationMP3 sums decoded frame durations.
func durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return 0, fmt.Errorf("no mp3 frames: %w", err)
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// durationFLAC reads STREAMINFO.
func durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	si := stream.Info
	if si.NSamples == 0 || si.SampleRate == 0 {
		return 0, fmt.Errorf("flac stream missing sample info")
	}
	return int(float64(si.NSamples)/float64(si.SampleRate) + 0.5), nil
}

// durationWAV estimates from the header and the PCM byte count.
func durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	frameSize := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if dec.SampleRate == 0 || frameSize <= 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pcmBytes := st.Size() - 44
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	return int(float64(pcmBytes/frameSize)/float64(dec.SampleRate) + 0.5), nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
