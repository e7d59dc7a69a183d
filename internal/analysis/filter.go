package analysis

import (
	"encoding/json"
	"sort"
	"strings"
)

// Filters narrows and orders the record collection. Zero values mean
// "no constraint"; Limit/Offset are pointers so an explicit 0 is
// distinguishable from unset.
type Filters struct {
	Type          Type   `json:"analysisType,omitempty"`
	StartDate     int64  `json:"startDate,omitempty"`
	EndDate       int64  `json:"endDate,omitempty"`
	Status        Status `json:"status,omitempty"`
	SortBy        string `json:"sortBy,omitempty"` // timestamp, analysisType, status
	SortDirection string `json:"sortDirection,omitempty"`
	Limit         *int   `json:"limit,omitempty"`
	Offset        *int   `json:"offset,omitempty"`
}

// Apply filters, sorts, and paginates records. The default order is
// descending by timestamp; ties keep the order records were listed in.
func Apply(records []*Record, f *Filters) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if f != nil {
			if f.Type != "" && r.Type != f.Type {
				continue
			}
			if f.Status != "" && r.Status != f.Status {
				continue
			}
			if f.StartDate != 0 && r.Timestamp < f.StartDate {
				continue
			}
			if f.EndDate != 0 && r.Timestamp > f.EndDate {
				continue
			}
		}
		out = append(out, r)
	}

	sortBy := "timestamp"
	asc := false
	if f != nil && f.SortBy != "" {
		sortBy = f.SortBy
		asc = f.SortDirection == "asc"
	}
	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		switch sortBy {
		case "analysisType":
			less = out[i].Type < out[j].Type
		case "status":
			less = out[i].Status < out[j].Status
		default:
			less = out[i].Timestamp < out[j].Timestamp
		}
		if asc {
			return less
		}
		return !less && !equalSortKey(out[i], out[j], sortBy)
	})

	if f != nil && f.Offset != nil {
		off := *f.Offset
		if off < 0 {
			off = 0
		}
		if off > len(out) {
			off = len(out)
		}
		out = out[off:]
	}
	if f != nil && f.Limit != nil {
		lim := *f.Limit
		if lim < 0 {
			lim = 0
		}
		if lim < len(out) {
			out = out[:lim]
		}
	}
	return out
}

func equalSortKey(a, b *Record, sortBy string) bool {
	switch sortBy {
	case "analysisType":
		return a.Type == b.Type
	case "status":
		return a.Status == b.Status
	default:
		return a.Timestamp == b.Timestamp
	}
}

// Search returns records whose serialized result, metadata, type, error,
// or derived query tags contain the query as a case-insensitive substring.
func Search(records []*Record, query string) []*Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}
	var out []*Record
	for _, r := range records {
		if recordMatches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func recordMatches(r *Record, q string) bool {
	if strings.Contains(strings.ToLower(string(r.Type)), q) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Error), q) {
		return true
	}
	for _, tag := range r.QueryTags {
		if strings.Contains(tag, q) {
			return true
		}
	}
	if r.Result != nil {
		if b, err := json.Marshal(r.Result); err == nil && strings.Contains(strings.ToLower(string(b)), q) {
			return true
		}
	}
	if r.Metadata != nil {
		if b, err := json.Marshal(r.Metadata); err == nil && strings.Contains(strings.ToLower(string(b)), q) {
			return true
		}
	}
	return false
}

// ComputeStats aggregates over the full collection. Average processing
// time only counts successful records that recorded a duration.
func ComputeStats(records []*Record) *Stats {
	stats := &Stats{ByType: map[string]int{}}
	var totalMs float64
	var timed int
	for _, r := range records {
		stats.TotalAnalyses++
		stats.ByType[string(r.Type)]++
		switch r.Status {
		case StatusSuccess:
			stats.SuccessfulAnalyses++
			if ms, ok := processingMs(r); ok {
				totalMs += ms
				timed++
			}
		case StatusError:
			stats.FailedAnalyses++
		case StatusProcessing:
			stats.ProcessingAnalyses++
		}
	}
	if timed > 0 {
		stats.AverageProcessingTime = totalMs / float64(timed)
	}
	return stats
}

// processingMs reads metadata.processingTimeMs, tolerating the numeric
// types JSON round-tripping produces.
func processingMs(r *Record) (float64, bool) {
	if r.Metadata == nil {
		return 0, false
	}
	switch v := r.Metadata["processingTimeMs"].(type) {
	case float64:
		return v, v > 0
	case int:
		return float64(v), v > 0
	case int64:
		return float64(v), v > 0
	case json.Number:
		f, err := v.Float64()
		return f, err == nil && f > 0
	}
	return 0, false
}
