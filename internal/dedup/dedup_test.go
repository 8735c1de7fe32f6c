package dedup

import (
	"testing"
	"time"

	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/normalize"
)

var now = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func comment(author, text, ts string) normalize.Comment {
	return normalize.Normalize(model.RawComment{Author: author, Text: text, Timestamp: ts}, now)
}

func stored(author, text string, ts time.Time) model.Review {
	return model.Review{AuthorName: author, Comment: text, CreatedAtPlatform: ts}
}

func texts(cs []normalize.Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.RawText
	}
	return out
}

func TestCompositeKeySkipsStoredDuplicate(t *testing.T) {
	existing := []model.Review{
		stored("alice", "Love it", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)),
	}
	candidates := []normalize.Comment{
		comment("alice", "Love it", "2024-01-01T10:00:00Z"),
		comment("bob", "Too pricey", "2024-01-02T10:00:00Z"),
		comment("carol", "Works fine", "2023-12-01T10:00:00Z"),
	}

	got := CompositeKey{}.Select(existing, candidates)
	if len(got) != 2 {
		t.Fatalf("Select() = %v, want 2 new comments", texts(got))
	}
	if got[0].RawText != "Too pricey" || got[1].RawText != "Works fine" {
		t.Errorf("Select() = %v, want scrape order preserved", texts(got))
	}
}

func TestCompositeKeyCollapsesCaseVariants(t *testing.T) {
	candidates := []normalize.Comment{
		comment("Alice", "LOVE IT", "2024-01-01T10:00:00Z"),
		comment("alice", "love it", "2024-01-01T10:00:00Z"),
	}

	got := CompositeKey{}.Select(nil, candidates)
	if len(got) != 1 {
		t.Fatalf("Select() returned %d comments, want 1", len(got))
	}

	existing := []model.Review{stored("ALICE", "Love It", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))}
	if got := (CompositeKey{}).Select(existing, candidates); len(got) != 0 {
		t.Fatalf("Select() = %v, want none against a case-variant stored review", texts(got))
	}
}

func TestCompositeKeySameTextDifferentAuthors(t *testing.T) {
	candidates := []normalize.Comment{
		comment("alice", "first!", "2024-01-01T10:00:00Z"),
		comment("bob", "first!", "2024-01-01T10:00:00Z"),
	}
	if got := (CompositeKey{}).Select(nil, candidates); len(got) != 2 {
		t.Fatalf("Select() returned %d comments, want 2", len(got))
	}
}

func TestCompositeKeyKeepsBackfilledOlderComment(t *testing.T) {
	existing := []model.Review{stored("alice", "new one", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))}
	candidates := []normalize.Comment{comment("bob", "old one", "2024-01-01T00:00:00Z")}

	if got := (CompositeKey{}).Select(existing, candidates); len(got) != 1 {
		t.Fatalf("Select() returned %d comments, want the older missed comment", len(got))
	}
}

func TestHighWaterMarkEqualTimestampIsNotNew(t *testing.T) {
	mark := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	existing := []model.Review{
		stored("alice", "a", mark),
		stored("bob", "b", mark.Add(-time.Hour)),
	}
	candidates := []normalize.Comment{
		comment("carol", "same instant, different comment", "2024-01-10T00:00:00Z"),
		comment("dave", "older", "2024-01-09T00:00:00Z"),
		comment("erin", "newer", "2024-01-10T00:00:01Z"),
	}

	got := HighWaterMark{}.Select(existing, candidates)
	if len(got) != 1 || got[0].RawText != "newer" {
		t.Fatalf("Select() = %v, want only [newer]", texts(got))
	}
}

func TestHighWaterMarkSortsNewestFirst(t *testing.T) {
	candidates := []normalize.Comment{
		comment("a", "one", "2024-01-01T00:00:00Z"),
		comment("b", "three", "2024-01-03T00:00:00Z"),
		comment("c", "two", "2024-01-02T00:00:00Z"),
	}

	got := HighWaterMark{}.Select(nil, candidates)
	want := []string{"three", "two", "one"}
	if len(got) != len(want) {
		t.Fatalf("Select() = %v, want %v", texts(got), want)
	}
	for i := range want {
		if got[i].RawText != want[i] {
			t.Fatalf("Select() = %v, want %v", texts(got), want)
		}
	}
}

func TestHighWaterMarkCollapsesInBatchDuplicates(t *testing.T) {
	candidates := []normalize.Comment{
		comment("a", "Dup", "2024-01-01T00:00:00Z"),
		comment("A", "dup", "2024-01-01T00:00:00Z"),
	}
	if got := (HighWaterMark{}).Select(nil, candidates); len(got) != 1 {
		t.Fatalf("Select() returned %d comments, want 1", len(got))
	}
}

func TestHighWaterMarkApproximateTimestamps(t *testing.T) {
	approx := stored("alice", "no date", now.Add(24*time.Hour))
	approx.TimestampApproximate = true
	existing := []model.Review{
		approx,
		stored("bob", "dated", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	if got := Mark(existing); !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Mark() = %v, approximate timestamps must not move the mark", got)
	}

	candidates := []normalize.Comment{
		comment("alice", "No Date", ""),
		comment("frank", "also no date", ""),
		comment("gina", "dated later", "2024-02-01T00:00:00Z"),
	}
	got := HighWaterMark{}.Select(existing, candidates)
	if len(got) != 2 {
		t.Fatalf("Select() = %v, want [also no date, dated later]", texts(got))
	}
	for _, c := range got {
		if c.RawText == "No Date" {
			t.Fatalf("Select() re-admitted an approximate comment already stored: %v", texts(got))
		}
	}
}
