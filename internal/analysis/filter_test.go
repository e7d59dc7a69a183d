package analysis

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func sampleRecords() []*Record {
	return []*Record{
		{ID: "a", Timestamp: 100, Type: TypeOutfit, Status: StatusSuccess, Metadata: map[string]any{"processingTimeMs": float64(1000)}},
		{ID: "b", Timestamp: 300, Type: TypeDetailed, Status: StatusSuccess, Metadata: map[string]any{"processingTimeMs": float64(3000)}},
		{ID: "c", Timestamp: 200, Type: TypeOutfit, Status: StatusError, Error: "vision API call failed"},
		{ID: "d", Timestamp: 500, Type: TypeOccasion, Status: StatusSuccess},
		{ID: "e", Timestamp: 400, Type: TypeSuggestion, Status: StatusSuccess, Metadata: map[string]any{"processingTimeMs": float64(2000)}},
	}
}

func ids(records []*Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func assertOrder(t *testing.T, got []*Record, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d (%v)", len(want), len(got), ids(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("expected order %v, got %v", want, ids(got))
		}
	}
}

func TestApplyDefaultSortNewestFirst(t *testing.T) {
	out := Apply(sampleRecords(), nil)
	assertOrder(t, out, "d", "e", "b", "c", "a")
}

func TestApplySortAscending(t *testing.T) {
	out := Apply(sampleRecords(), &Filters{SortBy: "timestamp", SortDirection: "asc"})
	assertOrder(t, out, "a", "c", "b", "e", "d")
}

func TestApplyFilterByType(t *testing.T) {
	out := Apply(sampleRecords(), &Filters{Type: TypeOutfit})
	assertOrder(t, out, "c", "a")
}

func TestApplyFilterByStatus(t *testing.T) {
	out := Apply(sampleRecords(), &Filters{Status: StatusError})
	assertOrder(t, out, "c")
}

func TestApplyDateRange(t *testing.T) {
	out := Apply(sampleRecords(), &Filters{StartDate: 200, EndDate: 400})
	assertOrder(t, out, "e", "b", "c")
}

func TestApplyOffsetAndLimit(t *testing.T) {
	out := Apply(sampleRecords(), &Filters{Offset: intPtr(1), Limit: intPtr(2)})
	assertOrder(t, out, "e", "b")
}

func TestApplyOffsetPastEnd(t *testing.T) {
	out := Apply(sampleRecords(), &Filters{Offset: intPtr(99)})
	if len(out) != 0 {
		t.Errorf("expected empty result, got %v", ids(out))
	}
}

func TestApplyNegativeOffsetAndLimitClamped(t *testing.T) {
	// Negative pagination values arrive straight off the wire; they must
	// clamp, not panic.
	out := Apply(sampleRecords(), &Filters{Offset: intPtr(-1)})
	assertOrder(t, out, "d", "e", "b", "c", "a")

	out = Apply(sampleRecords(), &Filters{Limit: intPtr(-5)})
	if len(out) != 0 {
		t.Errorf("negative limit should clamp to zero records, got %v", ids(out))
	}
}

func TestApplyZeroLimitExplicit(t *testing.T) {
	// An explicit limit of 0 means "no records", not "unset".
	out := Apply(sampleRecords(), &Filters{Limit: intPtr(0)})
	if len(out) != 0 {
		t.Errorf("expected empty result for explicit zero limit, got %v", ids(out))
	}
}

func TestApplyStableOnTies(t *testing.T) {
	records := []*Record{
		{ID: "first", Timestamp: 100},
		{ID: "second", Timestamp: 100},
		{ID: "third", Timestamp: 100},
	}
	out := Apply(records, nil)
	assertOrder(t, out, "first", "second", "third")

	out = Apply(records, &Filters{SortBy: "timestamp", SortDirection: "asc"})
	assertOrder(t, out, "first", "second", "third")
}

func TestSearchMatchesFields(t *testing.T) {
	records := []*Record{
		{ID: "a", Type: TypeOutfit, QueryTags: []string{"outfit", "success", "navy"}},
		{ID: "b", Type: TypeDetailed, Result: &Details{Season: "Winter"}},
		{ID: "c", Type: TypeOutfit, Status: StatusError, Error: "vision API call failed"},
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"navy", []string{"a"}},
		{"NAVY", []string{"a"}},
		{"winter", []string{"b"}},
		{"failed", []string{"c"}},
		{"outfit", []string{"a", "c"}},
		{"nothing-matches-this", nil},
	}
	for _, tt := range tests {
		got := Search(records, tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("query %q: expected %v, got %v", tt.query, tt.want, ids(got))
			continue
		}
		for i, id := range tt.want {
			if got[i].ID != id {
				t.Errorf("query %q: expected %v, got %v", tt.query, tt.want, ids(got))
			}
		}
	}
}

func TestSearchEmptyQueryReturnsAll(t *testing.T) {
	records := sampleRecords()
	if got := Search(records, "  "); len(got) != len(records) {
		t.Errorf("blank query should return all records, got %d", len(got))
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(sampleRecords())

	if stats.TotalAnalyses != 5 {
		t.Errorf("expected 5 total, got %d", stats.TotalAnalyses)
	}
	if stats.SuccessfulAnalyses != 4 {
		t.Errorf("expected 4 successful, got %d", stats.SuccessfulAnalyses)
	}
	if stats.FailedAnalyses != 1 {
		t.Errorf("expected 1 failed, got %d", stats.FailedAnalyses)
	}
	if stats.ByType["outfit"] != 2 {
		t.Errorf("expected 2 outfit records, got %d", stats.ByType["outfit"])
	}
	// Only the three successful records with a recorded duration count.
	if stats.AverageProcessingTime != 2000 {
		t.Errorf("expected average 2000ms, got %v", stats.AverageProcessingTime)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.TotalAnalyses != 0 || stats.AverageProcessingTime != 0 {
		t.Errorf("empty collection should produce zeroed stats: %+v", stats)
	}
	if stats.ByType == nil {
		t.Error("ByType should be an empty map, not nil")
	}
}

func TestDeriveQueryTags(t *testing.T) {
	rec := &Record{
		Type:   TypeDetailed,
		Status: StatusSuccess,
		Result: &Details{
			ClothingItems: []ClothingItem{{Type: "Blazer", Color: "Navy"}},
			Accessories:   []Accessory{{Type: "Watch"}},
			Patterns:      []string{"solid"},
			Season:        "Winter",
			Occasions:     []string{"business meeting"},
		},
	}
	tags := DeriveQueryTags(rec)

	want := map[string]bool{
		"detailed": true, "success": true, "blazer": true, "navy": true,
		"watch": true, "solid": true, "winter": true, "business meeting": true,
	}
	if len(tags) != len(want) {
		t.Fatalf("expected %d tags, got %v", len(want), tags)
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestDeriveQueryTagsDedup(t *testing.T) {
	rec := &Record{
		Type:   TypeOutfit,
		Status: StatusSuccess,
		Result: &Scores{
			StyleAttributes: map[string]float64{"formal": 0.9, "casual": 0.1},
			ColorAnalysis:   ColorAnalysis{Dominant: "Formal"},
		},
	}
	tags := DeriveQueryTags(rec)

	count := 0
	for _, tag := range tags {
		if tag == "formal" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected formal deduplicated to one tag, got %v", tags)
	}
}
