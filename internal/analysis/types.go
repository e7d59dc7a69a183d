// Package analysis defines the domain types for outfit analysis results:
// persisted records, the two response shapes returned by the vision model,
// feedback entries, and aggregate statistics. Validating constructors keep
// loosely-typed model output from crossing the boundary unchecked.
package analysis

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies which kind of analysis produced a record.
type Type string

const (
	TypeOutfit     Type = "outfit"
	TypeDetailed   Type = "detailed"
	TypeOccasion   Type = "occasion"
	TypeSuggestion Type = "suggestion"
)

// ValidType reports whether t is one of the closed analysis type set.
func ValidType(t Type) bool {
	switch t {
	case TypeOutfit, TypeDetailed, TypeOccasion, TypeSuggestion:
		return true
	}
	return false
}

// Status is the terminal state of a record. Records are written once,
// fully formed; status never transitions in place.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusProcessing Status = "processing"
)

// Record is one persisted outcome of an analysis request, success or error.
// The image payload itself is never part of a record; ImageID references
// the independently stored image.
type Record struct {
	ID        string         `json:"id"`
	ImageID   string         `json:"imageId,omitempty"`
	Timestamp int64          `json:"timestamp"` // milliseconds since epoch
	Type      Type           `json:"analysisType"`
	Status    Status         `json:"status"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	QueryTags []string       `json:"queryTags,omitempty"`
}

// ColorAnalysis summarises the color composition of an outfit.
type ColorAnalysis struct {
	Dominant string   `json:"dominant"`
	Palette  []string `json:"palette"`
	Contrast string   `json:"contrast"`
	Harmony  string   `json:"harmony"`
}

// Scores is the basic score shape returned by the vision model.
// All fields are required; use ScoresFromJSON to construct one from
// model output.
type Scores struct {
	Categories      map[string]float64 `json:"categories"`
	StyleAttributes map[string]float64 `json:"styleAttributes"`
	ColorAnalysis   ColorAnalysis      `json:"colorAnalysis"`
	Comfort         float64            `json:"comfort"`       // 0-100
	FitConfidence   float64            `json:"fitConfidence"` // 0-100
	ColorHarmony    float64            `json:"colorHarmony"`  // 0-100
}

// ClothingItem is one garment identified in a detailed analysis.
type ClothingItem struct {
	Type       string  `json:"type"`
	Color      string  `json:"color"`
	Pattern    string  `json:"pattern"`
	Material   string  `json:"material,omitempty"`
	Fit        string  `json:"fit,omitempty"`
	Confidence float64 `json:"confidence"` // 0-1
}

// Accessory is one non-garment item identified in a detailed analysis.
type Accessory struct {
	Type       string  `json:"type"`
	Color      string  `json:"color,omitempty"`
	Material   string  `json:"material,omitempty"`
	Position   string  `json:"position,omitempty"`
	Confidence float64 `json:"confidence"` // 0-1
}

// Details is the itemized analysis shape. It carries the basic scores
// alongside the per-item breakdown so a single record fully describes
// an outfit.
type Details struct {
	Comfort          float64            `json:"comfort"`
	FitConfidence    float64            `json:"fitConfidence"`
	ColorHarmony     float64            `json:"colorHarmony"`
	Style            map[string]float64 `json:"style"`
	ClothingItems    []ClothingItem     `json:"clothingItems"`
	Accessories      []Accessory        `json:"accessories"`
	DominantColors   []string           `json:"dominantColors"`
	Patterns         []string           `json:"patterns"`
	Season           string             `json:"season"`
	Occasions        []string           `json:"occasions"`
	HasBottomGarment bool               `json:"hasBottomGarment"`
}

// OccasionMatch is the result payload of an occasion-fit analysis.
type OccasionMatch struct {
	Occasion string `json:"occasion"`
	Score    int    `json:"score"` // 0-100
}

// Suggestions is the result payload of a style-suggestion analysis.
type Suggestions struct {
	Occasion    string   `json:"occasion"`
	Suggestions []string `json:"suggestions"`
}

// Feedback is a user's verdict on one analysis. Keyed by AnalysisID;
// saving again overwrites.
type Feedback struct {
	ImageID    string `json:"imageId"`
	AnalysisID string `json:"analysisId"`
	Feedback   Vote   `json:"feedback"`
	Timestamp  int64  `json:"timestamp"` // milliseconds since epoch
}

// Vote is the feedback direction.
type Vote string

const (
	VoteUp   Vote = "upvote"
	VoteDown Vote = "downvote"
)

// ValidVote reports whether v is a recognised feedback direction.
func ValidVote(v Vote) bool {
	return v == VoteUp || v == VoteDown
}

// Stats aggregates counts and rates over the full record collection.
// Recomputed on every request; there are no incremental counters.
type Stats struct {
	TotalAnalyses         int            `json:"totalAnalyses"`
	SuccessfulAnalyses    int            `json:"successfulAnalyses"`
	FailedAnalyses        int            `json:"failedAnalyses"`
	ProcessingAnalyses    int            `json:"processingAnalyses"`
	ByType                map[string]int `json:"byType"`
	AverageProcessingTime float64        `json:"averageProcessingTime"` // milliseconds
}

// scoresWire mirrors Scores with pointer fields so a missing number is
// distinguishable from zero during validation.
type scoresWire struct {
	Categories      map[string]float64 `json:"categories"`
	StyleAttributes map[string]float64 `json:"styleAttributes"`
	ColorAnalysis   *ColorAnalysis     `json:"colorAnalysis"`
	Comfort         *float64           `json:"comfort"`
	FitConfidence   *float64           `json:"fitConfidence"`
	ColorHarmony    *float64           `json:"colorHarmony"`
}

// ScoresFromJSON validates and constructs a Scores value from raw model
// output. Every field is required; a missing or mistyped field is an error.
func ScoresFromJSON(data []byte) (*Scores, error) {
	var w scoresWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid score payload: %w", err)
	}
	switch {
	case w.Categories == nil:
		return nil, fmt.Errorf("score payload missing categories")
	case w.StyleAttributes == nil:
		return nil, fmt.Errorf("score payload missing styleAttributes")
	case w.ColorAnalysis == nil:
		return nil, fmt.Errorf("score payload missing colorAnalysis")
	case w.Comfort == nil:
		return nil, fmt.Errorf("score payload missing comfort")
	case w.FitConfidence == nil:
		return nil, fmt.Errorf("score payload missing fitConfidence")
	case w.ColorHarmony == nil:
		return nil, fmt.Errorf("score payload missing colorHarmony")
	}
	return &Scores{
		Categories:      w.Categories,
		StyleAttributes: w.StyleAttributes,
		ColorAnalysis:   *w.ColorAnalysis,
		Comfort:         *w.Comfort,
		FitConfidence:   *w.FitConfidence,
		ColorHarmony:    *w.ColorHarmony,
	}, nil
}

// DetailsFromJSON constructs a Details value from raw model output,
// filling any missing field with a safe default instead of failing.
// The basic score fields are merged in from a previously validated
// Scores value; the detailed call never supplies them.
func DetailsFromJSON(data []byte, basic *Scores) (*Details, error) {
	var d Details
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid detail payload: %w", err)
	}
	d.Comfort = basic.Comfort
	d.FitConfidence = basic.FitConfidence
	d.ColorHarmony = basic.ColorHarmony
	if d.Style == nil {
		d.Style = map[string]float64{}
	}
	if d.ClothingItems == nil {
		d.ClothingItems = []ClothingItem{}
	}
	if d.Accessories == nil {
		d.Accessories = []Accessory{}
	}
	if d.DominantColors == nil {
		d.DominantColors = []string{}
	}
	if d.Patterns == nil {
		d.Patterns = []string{}
	}
	if d.Season == "" {
		d.Season = "Unknown"
	}
	if d.Occasions == nil {
		d.Occasions = []string{}
	}
	return &d, nil
}

// NewSuccessRecord builds a fully formed success record. at stamps both
// the record timestamp and, together with elapsed, the processing time.
func NewSuccessRecord(imageID string, typ Type, result any, at time.Time, elapsed time.Duration) *Record {
	rec := &Record{
		ID:        NewID(),
		ImageID:   imageID,
		Timestamp: at.UnixMilli(),
		Type:      typ,
		Status:    StatusSuccess,
		Result:    result,
		Metadata: map[string]any{
			"processingTimeMs": float64(elapsed.Milliseconds()),
		},
	}
	rec.QueryTags = DeriveQueryTags(rec)
	return rec
}

// NewErrorRecord builds a fully formed error record from a failed
// collaborator call. The error detail stays in the record; callers render
// it as "analysis failed" state rather than treating it as exceptional.
func NewErrorRecord(imageID string, typ Type, cause error, at time.Time, elapsed time.Duration) *Record {
	rec := &Record{
		ID:        NewID(),
		ImageID:   imageID,
		Timestamp: at.UnixMilli(),
		Type:      typ,
		Status:    StatusError,
		Error:     cause.Error(),
		Metadata: map[string]any{
			"processingTimeMs": float64(elapsed.Milliseconds()),
			"errorStack":       fmt.Sprintf("%+v", cause),
		},
	}
	rec.QueryTags = DeriveQueryTags(rec)
	return rec
}
