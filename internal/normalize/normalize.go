package normalize

import (
	"strconv"
	"strings"
	"time"

	"go-firestore-sentiment/internal/model"
)

// KeyDelimiter separates the dedup key fields. It is stripped from every field,
// so it never occurs inside one.
const KeyDelimiter = "\x1f"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// Comment is a scraped comment in canonical form.
type Comment struct {
	Text   string
	Author string
	// RawText and RawAuthor keep the scraped values for storage and classification.
	RawText       string
	RawAuthor     string
	AuthorProfile string
	Likes         int
	Rating        *float64
	Timestamp     time.Time
	// TimestampApproximate is set when the source timestamp was missing or unparseable
	// and Timestamp holds the time of normalization instead.
	TimestampApproximate bool
	Key                  string
}

// Normalize canonicalizes one raw comment. It never fails: a missing or unparseable
// timestamp falls back to now.
func Normalize(raw model.RawComment, now time.Time) Comment {
	ts, ok := ParseTimestamp(raw.Timestamp)
	if !ok {
		ts = now.UTC()
	}

	c := Comment{
		Text:                 Field(raw.Text),
		Author:               Field(raw.Author),
		RawText:              strings.TrimSpace(raw.Text),
		RawAuthor:            strings.TrimSpace(raw.Author),
		AuthorProfile:        strings.TrimSpace(raw.AuthorProfile),
		Likes:                raw.Likes,
		Rating:               raw.Rating,
		Timestamp:            ts.Truncate(time.Millisecond),
		TimestampApproximate: !ok,
	}
	c.Key = Key(c.Text, c.Author, c.Timestamp)
	return c
}

func All(raws []model.RawComment, now time.Time) []Comment {
	comments := make([]Comment, 0, len(raws))
	for _, raw := range raws {
		comments = append(comments, Normalize(raw, now))
	}
	return comments
}

// Field lower-cases and trims a text or author value and removes the key delimiter.
func Field(s string) string {
	s = strings.ReplaceAll(s, KeyDelimiter, "")
	return strings.ToLower(strings.TrimSpace(s))
}

// Key joins already normalized fields into the dedup key.
func Key(text, author string, ts time.Time) string {
	return text + KeyDelimiter + author + KeyDelimiter + strconv.FormatInt(ts.UnixMilli(), 10)
}

// ReviewKey derives the dedup key of a stored review.
func ReviewKey(r model.Review) string {
	return Key(Field(r.Comment), Field(r.AuthorName), r.CreatedAtPlatform)
}

// ParseTimestamp accepts the formats the supported providers emit, plus unix seconds
// or milliseconds.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "n/a") {
		return time.Time{}, false
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		// 1e11 seconds is year 5138, so anything larger is milliseconds
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}

	return time.Time{}, false
}
