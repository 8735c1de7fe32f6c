package review

import (
	"context"

	"go-firestore-sentiment/internal/model"
)

// SentimentUpdate is the outcome of classifying one stored review.
type SentimentUpdate struct {
	ReviewId  string
	Sentiment model.Sentiment
	Score     float64
}

type IRepository interface {
	ListByProduct(ctx context.Context, productId string) ([]model.Review, error)
	// CreateMany stores the reviews under the product and returns the ones it wrote. A review
	// whose id is already stored is skipped, so its stored sentiment survives.
	CreateMany(ctx context.Context, productId string, reviews []model.Review) ([]model.Review, error)
	UpdateSentiments(ctx context.Context, productId string, updates []SentimentUpdate) error
}
