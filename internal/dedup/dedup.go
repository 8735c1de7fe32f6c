package dedup

import (
	"sort"
	"time"

	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/normalize"
)

// Policy selects which normalized candidates are new for a product, given the reviews
// already stored for it.
type Policy interface {
	Name() string
	Select(existing []model.Review, candidates []normalize.Comment) []normalize.Comment
}

var (
	_ Policy = CompositeKey{}
	_ Policy = HighWaterMark{}
)

// CompositeKey treats a candidate as new iff its (text, author, timestamp) key is not
// stored yet. It scans every stored review and so also catches backfilled older comments.
// Used by the on-demand path.
type CompositeKey struct{}

func (CompositeKey) Name() string { return "composite-key" }

func (CompositeKey) Select(existing []model.Review, candidates []normalize.Comment) []normalize.Comment {
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, r := range existing {
		seen[normalize.ReviewKey(r)] = struct{}{}
	}

	fresh := make([]normalize.Comment, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Key]; ok {
			continue
		}
		seen[c.Key] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh
}

// HighWaterMark treats a candidate as new iff its timestamp is strictly after the newest
// stored platform timestamp. Work is bounded by new activity, but a comment sharing the
// mark's timestamp or older than it is never picked up. Used by the scheduled poller.
//
// Approximate timestamps (fallback to ingestion time) never move the mark. An approximate
// candidate is new only when no stored review has the same text and author.
type HighWaterMark struct{}

func (HighWaterMark) Name() string { return "high-water-mark" }

func (HighWaterMark) Select(existing []model.Review, candidates []normalize.Comment) []normalize.Comment {
	mark := Mark(existing)

	var approxSeen map[string]struct{}
	for _, c := range candidates {
		if c.TimestampApproximate {
			approxSeen = textAuthorSet(existing)
			break
		}
	}

	sorted := make([]normalize.Comment, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(sorted))
	fresh := make([]normalize.Comment, 0, len(sorted))
	for _, c := range sorted {
		if _, ok := seen[c.Key]; ok {
			continue
		}

		if c.TimestampApproximate {
			ta := c.Text + normalize.KeyDelimiter + c.Author
			if _, ok := approxSeen[ta]; ok {
				continue
			}
			approxSeen[ta] = struct{}{}
		} else if !c.Timestamp.After(mark) {
			continue
		}

		seen[c.Key] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh
}

// Mark returns the newest exact platform timestamp among the stored reviews, or the zero
// time when there is none.
func Mark(existing []model.Review) time.Time {
	var mark time.Time
	for _, r := range existing {
		if r.TimestampApproximate {
			continue
		}
		if r.CreatedAtPlatform.After(mark) {
			mark = r.CreatedAtPlatform
		}
	}
	return mark
}

func textAuthorSet(existing []model.Review) map[string]struct{} {
	set := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		set[normalize.Field(r.Comment)+normalize.KeyDelimiter+normalize.Field(r.AuthorName)] = struct{}{}
	}
	return set
}
