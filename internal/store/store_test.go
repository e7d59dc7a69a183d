package store

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/outfit-lens/internal/analysis"
)

// testImageData is a tiny payload encoded the way a browser canvas
// delivers captures.
var testImageData = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}
	return s
}

func TestEnsureDirsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("first EnsureDirs failed: %v", err)
	}
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("second EnsureDirs failed: %v", err)
	}
	for _, sub := range []string{"images", "analysis", "feedback"} {
		if _, err := os.Stat(filepath.Join(s.Root(), sub)); err != nil {
			t.Errorf("expected %s directory to exist: %v", sub, err)
		}
	}
}

func TestSaveAndGetImage(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveImage(testImageData, "")
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated image id")
	}

	data, err := s.GetImage(id)
	if err != nil {
		t.Fatalf("GetImage failed: %v", err)
	}
	if string(data) != "fake-jpeg-bytes" {
		t.Errorf("decoded payload mismatch: %q", data)
	}
}

func TestSaveImageExplicitID(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveImage(testImageData, "my-image")
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if id != "my-image" {
		t.Errorf("expected provided id back, got %q", id)
	}
	if _, err := os.Stat(s.ImagePath("my-image")); err != nil {
		t.Errorf("expected image file at ImagePath: %v", err)
	}
}

func TestSaveImageBareBase64(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveImage(base64.StdEncoding.EncodeToString([]byte("raw")), "")
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	data, err := s.GetImage(id)
	if err != nil {
		t.Fatalf("GetImage failed: %v", err)
	}
	if string(data) != "raw" {
		t.Errorf("decoded payload mismatch: %q", data)
	}
}

func TestSaveImageInvalidBase64(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveImage("data:image/jpeg;base64,!!!not-base64!!!", ""); err == nil {
		t.Error("expected decode error")
	}
}

func TestGetImageNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetImage("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIDValidation(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"../escape", "a/b", `a\b`, ""} {
		if _, err := s.GetImage(id); err == nil {
			t.Errorf("id %q should be rejected", id)
		}
		if err := s.DeleteAnalysis(id); err == nil {
			t.Errorf("id %q should be rejected for delete", id)
		}
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := newTestStore(t)

	rec := &analysis.Record{
		ID:        "analysis-roundtrip",
		ImageID:   "img-1",
		Timestamp: 1700000000000,
		Type:      analysis.TypeOutfit,
		Status:    analysis.StatusSuccess,
		Metadata:  map[string]any{"processingTimeMs": float64(1200)},
		QueryTags: []string{"outfit", "success"},
	}
	if err := s.SaveAnalysis(rec); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}

	got, err := s.GetAnalysis(rec.ID)
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record back")
	}
	if got.ID != rec.ID || got.ImageID != rec.ImageID || got.Timestamp != rec.Timestamp {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Type != analysis.TypeOutfit || got.Status != analysis.StatusSuccess {
		t.Errorf("round-trip type/status mismatch: %+v", got)
	}
}

func TestSaveAnalysisStripsImageData(t *testing.T) {
	s := newTestStore(t)

	rec := &analysis.Record{
		ID:       "analysis-strip",
		Type:     analysis.TypeOutfit,
		Status:   analysis.StatusSuccess,
		Metadata: map[string]any{"imageData": "data:image/jpeg;base64,SHOULDNOTPERSIST", "keep": "yes"},
	}
	if err := s.SaveAnalysis(rec); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(s.Root(), "analysis", "analysis-strip.json"))
	if err != nil {
		t.Fatalf("failed to read record file: %v", err)
	}
	if strings.Contains(string(raw), "SHOULDNOTPERSIST") {
		t.Error("image payload leaked into persisted record")
	}
	if !strings.Contains(string(raw), `"keep"`) {
		t.Error("unrelated metadata should survive")
	}
}

func TestGetAnalysisMissingIsNilNil(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.GetAnalysis("analysis-missing")
	if err != nil {
		t.Fatalf("missing record should not error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestDeleteAnalysisIdempotent(t *testing.T) {
	s := newTestStore(t)

	rec := &analysis.Record{ID: "analysis-del", Type: analysis.TypeOutfit, Status: analysis.StatusSuccess}
	if err := s.SaveAnalysis(rec); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	if err := s.DeleteAnalysis("analysis-del"); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := s.DeleteAnalysis("analysis-del"); err != nil {
		t.Errorf("second delete should be success: %v", err)
	}
}

func TestListAnalysesSkipsCorruptFiles(t *testing.T) {
	s := newTestStore(t)

	good := &analysis.Record{ID: "analysis-good", Type: analysis.TypeOutfit, Status: analysis.StatusSuccess}
	if err := s.SaveAnalysis(good); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	corrupt := filepath.Join(s.Root(), "analysis", "analysis-corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("failed to plant corrupt file: %v", err)
	}

	records, err := s.ListAnalyses()
	if err != nil {
		t.Fatalf("ListAnalyses failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "analysis-good" {
		t.Errorf("expected only the good record, got %d records", len(records))
	}
}

func TestClearAnalyses(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"analysis-1", "analysis-2"} {
		if err := s.SaveAnalysis(&analysis.Record{ID: id, Type: analysis.TypeOutfit, Status: analysis.StatusSuccess}); err != nil {
			t.Fatalf("SaveAnalysis failed: %v", err)
		}
	}
	if err := s.ClearAnalyses(); err != nil {
		t.Fatalf("ClearAnalyses failed: %v", err)
	}
	records, err := s.ListAnalyses()
	if err != nil {
		t.Fatalf("ListAnalyses failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty collection, got %d", len(records))
	}
}

func TestFeedbackOverwriteAndOrder(t *testing.T) {
	s := newTestStore(t)

	first := &analysis.Feedback{ImageID: "img-1", AnalysisID: "analysis-1", Feedback: analysis.VoteUp, Timestamp: 1000}
	if err := s.SaveFeedback(first); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}
	// Same analysis ID overwrites the verdict.
	changed := &analysis.Feedback{ImageID: "img-1", AnalysisID: "analysis-1", Feedback: analysis.VoteDown, Timestamp: 2000}
	if err := s.SaveFeedback(changed); err != nil {
		t.Fatalf("SaveFeedback overwrite failed: %v", err)
	}
	other := &analysis.Feedback{ImageID: "img-2", AnalysisID: "analysis-2", Feedback: analysis.VoteUp, Timestamp: 1500}
	if err := s.SaveFeedback(other); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}

	feedback, err := s.ListFeedback()
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(feedback) != 2 {
		t.Fatalf("expected 2 entries after overwrite, got %d", len(feedback))
	}
	// Newest first.
	if feedback[0].AnalysisID != "analysis-1" || feedback[0].Feedback != analysis.VoteDown {
		t.Errorf("expected overwritten analysis-1 downvote first, got %+v", feedback[0])
	}
	if feedback[1].AnalysisID != "analysis-2" {
		t.Errorf("expected analysis-2 second, got %+v", feedback[1])
	}
}

func TestRemoveFeedbackIdempotent(t *testing.T) {
	s := newTestStore(t)

	fb := &analysis.Feedback{ImageID: "img-1", AnalysisID: "analysis-rm", Feedback: analysis.VoteUp, Timestamp: 1}
	if err := s.SaveFeedback(fb); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}
	if err := s.RemoveFeedback("analysis-rm"); err != nil {
		t.Fatalf("RemoveFeedback failed: %v", err)
	}
	if err := s.RemoveFeedback("analysis-rm"); err != nil {
		t.Errorf("removing absent feedback should be success: %v", err)
	}
	if err := s.RemoveFeedback("analysis-never-existed"); err != nil {
		t.Errorf("removing never-existing feedback should be success: %v", err)
	}
}

func TestClearFeedback(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveFeedback(&analysis.Feedback{AnalysisID: "analysis-1", Feedback: analysis.VoteUp}); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}
	if err := s.ClearFeedback(); err != nil {
		t.Fatalf("ClearFeedback failed: %v", err)
	}
	feedback, err := s.ListFeedback()
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(feedback) != 0 {
		t.Errorf("expected empty feedback collection, got %d", len(feedback))
	}
}
