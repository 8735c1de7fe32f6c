package model

import "time"

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformAmazon    Platform = "amazon"
	PlatformYoutube   Platform = "youtube"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformAmazon, PlatformYoutube:
		return true
	}
	return false
}

type ScrapeStatus string

const (
	ScrapeStatusPending ScrapeStatus = "pending"
	ScrapeStatusSuccess ScrapeStatus = "success"
	ScrapeStatusFailed  ScrapeStatus = "failed"
)

// Product is a tracked source item (a post, a video or a listing) whose comments are ingested.
// It owns the ordered list of its review ids and is the authority for the sentiment aggregate.
type Product struct {
	Id                string       `firestore:"id,omitempty" json:"id"`
	Name              string       `firestore:"name,omitempty" json:"productName"`
	Url               string       `firestore:"url,omitempty" json:"productUrl"`
	Platform          Platform     `firestore:"platform,omitempty" json:"platform"`
	PlatformProductId string       `firestore:"platformProductId,omitempty" json:"platformProductId"`
	TotalReviews      int          `firestore:"totalReviews" json:"totalReviews"`
	PositiveCount     int          `firestore:"positiveCount" json:"positiveCount"`
	NegativeCount     int          `firestore:"negativeCount" json:"negativeCount"`
	NeutralCount      int          `firestore:"neutralCount" json:"neutralCount"`
	LastScraped       *time.Time   `firestore:"lastScraped,omitempty" json:"lastScraped,omitempty"`
	ScrapeStatus      ScrapeStatus `firestore:"scrapeStatus,omitempty" json:"scrapeStatus"`
	Reviews           []string     `firestore:"reviews" json:"-"`
	AwaitingBackfill  bool         `firestore:"awaitingBackfill" json:"-"`
	CreatedAt         time.Time    `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt         time.Time    `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

// ProductUpdate carries a partial update; nil fields are left untouched.
type ProductUpdate struct {
	TotalReviews     *int
	PositiveCount    *int
	NegativeCount    *int
	NeutralCount     *int
	LastScraped      *time.Time
	ScrapeStatus     *ScrapeStatus
	AwaitingBackfill *bool
	AppendReviews    []string
}

// SentimentCounts is the per-product aggregate written by a full recompute.
type SentimentCounts struct {
	Positive int
	Negative int
	Neutral  int
	Total    int
}

func (c SentimentCounts) Update() ProductUpdate {
	return ProductUpdate{
		TotalReviews:  &c.Total,
		PositiveCount: &c.Positive,
		NegativeCount: &c.Negative,
		NeutralCount:  &c.Neutral,
	}
}
