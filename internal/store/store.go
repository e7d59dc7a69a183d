// Package store provides file-per-record persistence under a single
// data root with three fixed collections: images, analysis records, and
// feedback entries. Each record is one file keyed by its ID; there is no
// cross-file transaction and no locking. A single logical writer per
// deployment instance is assumed.
package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/outfit-lens/internal/analysis"
)

// ErrNotFound marks a lookup for an ID that has no file. Call sites use
// it to keep "missing" distinguishable from "broken".
var ErrNotFound = errors.New("not found")

// dataURLRe strips the data-URL header from browser-captured images.
var dataURLRe = regexp.MustCompile(`^data:image/\w+;base64,`)

// Store is the record store rooted at one data directory.
type Store struct {
	root        string
	imagesDir   string
	analysisDir string
	feedbackDir string
}

// New creates a Store rooted at dir. Call EnsureDirs before first use.
func New(dir string) *Store {
	return &Store{
		root:        dir,
		imagesDir:   filepath.Join(dir, "images"),
		analysisDir: filepath.Join(dir, "analysis"),
		feedbackDir: filepath.Join(dir, "feedback"),
	}
}

// Root returns the data root directory.
func (s *Store) Root() string { return s.root }

// EnsureDirs creates the data directories (idempotent, recursive) and
// verifies they are writable by probing a throwaway file.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.root, s.imagesDir, s.analysisDir, s.feedbackDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	probe := filepath.Join(s.imagesDir, ".probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("failed to remove writability probe: %w", err)
	}

	log.Info().
		Str("root", s.root).
		Msg("Data directories verified writable")
	return nil
}

// validID rejects IDs that could escape a collection directory when
// joined into a filename.
func validID(id string) error {
	if id == "" {
		return fmt.Errorf("empty id")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}

// --- Images ---

// SaveImage persists a JPEG image blob and returns its ID. imageData may
// be a base64 data URL (as captured by a browser) or bare base64. An
// empty id generates one.
func (s *Store) SaveImage(imageData, id string) (string, error) {
	if id == "" {
		id = analysis.NewImageID()
	}
	if err := validID(id); err != nil {
		return "", err
	}

	b64 := dataURLRe.ReplaceAllString(imageData, "")
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("failed to decode image data: %w", err)
	}

	path := filepath.Join(s.imagesDir, id+".jpg")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", id, err)
	}
	log.Debug().Str("imageId", id).Int("bytes", len(raw)).Msg("Image saved")
	return id, nil
}

// GetImage reads an image blob by ID. Returns ErrNotFound when no such
// image exists.
func (s *Store) GetImage(id string) ([]byte, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.imagesDir, id+".jpg"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	return data, nil
}

// ImagePath returns the filesystem path an image ID maps to. The file
// may or may not exist.
func (s *Store) ImagePath(id string) string {
	return filepath.Join(s.imagesDir, id+".jpg")
}

// --- Analysis records ---

// SaveAnalysis writes one analysis record as <id>.json. The Record type
// carries no image payload by construction; the image lives under its
// own ID in the images collection. A stray imageData key smuggled into
// metadata is dropped before serialization.
func (s *Store) SaveAnalysis(rec *analysis.Record) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	if rec.Metadata != nil {
		delete(rec.Metadata, "imageData")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize analysis %s: %w", rec.ID, err)
	}
	path := filepath.Join(s.analysisDir, rec.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save analysis %s: %w", rec.ID, err)
	}
	log.Debug().Str("analysisId", rec.ID).Str("type", string(rec.Type)).Msg("Analysis record saved")
	return nil
}

// GetAnalysis reads one record by ID. Returns (nil, nil) when the record
// does not exist.
func (s *Store) GetAnalysis(id string) (*analysis.Record, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.analysisDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read analysis %s: %w", id, err)
	}
	var rec analysis.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse analysis %s: %w", id, err)
	}
	return &rec, nil
}

// ListAnalyses reads every record in the collection. A file that fails
// to parse is logged and skipped so one corrupt record cannot take the
// whole collection down.
func (s *Store) ListAnalyses() ([]*analysis.Record, error) {
	entries, err := os.ReadDir(s.analysisDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis directory: %w", err)
	}

	records := make([]*analysis.Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.analysisDir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable analysis file")
			continue
		}
		var rec analysis.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping corrupt analysis file")
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// DeleteAnalysis removes one record. Deleting a record that does not
// exist is success; only genuine I/O failures report an error.
func (s *Store) DeleteAnalysis(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.analysisDir, id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete analysis %s: %w", id, err)
	}
	return nil
}

// ClearAnalyses removes every record in the collection.
func (s *Store) ClearAnalyses() error {
	return clearDir(s.analysisDir)
}

// --- Feedback ---

// SaveFeedback writes a feedback entry keyed by its analysis ID. One
// entry per analysis; saving again overwrites.
func (s *Store) SaveFeedback(fb *analysis.Feedback) error {
	if err := validID(fb.AnalysisID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fb, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize feedback for %s: %w", fb.AnalysisID, err)
	}
	path := filepath.Join(s.feedbackDir, fb.AnalysisID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save feedback for %s: %w", fb.AnalysisID, err)
	}
	log.Debug().Str("analysisId", fb.AnalysisID).Str("feedback", string(fb.Feedback)).Msg("Feedback saved")
	return nil
}

// ListFeedback returns all feedback entries, newest first. Corrupt files
// are logged and skipped.
func (s *Store) ListFeedback() ([]*analysis.Feedback, error) {
	entries, err := os.ReadDir(s.feedbackDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback directory: %w", err)
	}

	feedback := make([]*analysis.Feedback, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.feedbackDir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable feedback file")
			continue
		}
		var fb analysis.Feedback
		if err := json.Unmarshal(data, &fb); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping corrupt feedback file")
			continue
		}
		feedback = append(feedback, &fb)
	}

	sort.SliceStable(feedback, func(i, j int) bool {
		return feedback[i].Timestamp > feedback[j].Timestamp
	})
	return feedback, nil
}

// RemoveFeedback deletes the feedback entry for an analysis. Absence is
// success.
func (s *Store) RemoveFeedback(analysisID string) error {
	if err := validID(analysisID); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.feedbackDir, analysisID+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove feedback for %s: %w", analysisID, err)
	}
	return nil
}

// ClearFeedback removes every feedback entry.
func (s *Store) ClearFeedback() error {
	return clearDir(s.feedbackDir)
}

// clearDir removes every regular file directly under dir.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}
