package model

import "time"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Review is one normalized piece of user feedback owned by a Product.
// Only the sentiment fields change after creation.
type Review struct {
	Id                   string    `firestore:"id,omitempty" json:"id"`
	ProductId            string    `firestore:"productId,omitempty" json:"-"`
	Comment              string    `firestore:"comment" json:"comment"`
	AuthorName           string    `firestore:"authorName" json:"authorName"`
	AuthorProfile        string    `firestore:"authorProfile,omitempty" json:"authorProfile,omitempty"`
	Platform             Platform  `firestore:"platform" json:"platform"`
	Rating               *float64  `firestore:"rating,omitempty" json:"rating,omitempty"`
	Likes                int       `firestore:"likes" json:"likes"`
	Sentiment            Sentiment `firestore:"sentiment" json:"sentiment"`
	SentimentScore       *float64  `firestore:"sentimentScore,omitempty" json:"sentimentScore,omitempty"`
	CreatedAtPlatform    time.Time `firestore:"createdAtPlatform" json:"createdAtPlatform"`
	TimestampApproximate bool      `firestore:"timestampApproximate,omitempty" json:"-"`
	CreatedAt            time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt            time.Time `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

// RawComment is a comment as returned by a scrape provider, before normalization.
// Timestamp is the provider's native string and may be empty.
type RawComment struct {
	Author        string
	AuthorProfile string
	Text          string
	Timestamp     string
	Likes         int
	Rating        *float64
}
