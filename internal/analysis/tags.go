package analysis

import (
	"sort"
	"strings"
)

// DeriveQueryTags computes the denormalized tag set for a record from its
// type, status, and the salient fields of its result. Tags are lowercase,
// deduplicated, and recomputed at write time; they serve tag/substring
// search only and are never authoritative.
func DeriveQueryTags(r *Record) []string {
	seen := map[string]bool{}
	var tags []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		tags = append(tags, s)
	}

	add(string(r.Type))
	add(string(r.Status))

	switch res := r.Result.(type) {
	case *Details:
		for _, item := range res.ClothingItems {
			add(item.Type)
			add(item.Color)
		}
		for _, acc := range res.Accessories {
			add(acc.Type)
		}
		for _, p := range res.Patterns {
			add(p)
		}
		add(res.Season)
		for _, o := range res.Occasions {
			add(o)
		}
	case *OccasionMatch:
		add(res.Occasion)
	case *Suggestions:
		add(res.Occasion)
	case *Scores:
		add(res.ColorAnalysis.Dominant)
		attrs := make([]string, 0, len(res.StyleAttributes))
		for attr, v := range res.StyleAttributes {
			if v >= 0.5 {
				attrs = append(attrs, attr)
			}
		}
		sort.Strings(attrs)
		for _, attr := range attrs {
			add(attr)
		}
	}
	return tags
}
