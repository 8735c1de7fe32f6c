package aggregation

import (
	"context"
	"fmt"

	"go-firestore-sentiment/internal/model"
	productRepository "go-firestore-sentiment/internal/repository/product"
	reviewRepository "go-firestore-sentiment/internal/repository/review"
)

// Engine recomputes a product's sentiment counters from every stored review. It never
// increments, so running it twice over the same reviews yields the same counts.
type Engine struct {
	productRepo productRepository.IRepository
	reviewRepo  reviewRepository.IRepository
}

func New(productRepo productRepository.IRepository, reviewRepo reviewRepository.IRepository) *Engine {
	return &Engine{productRepo: productRepo, reviewRepo: reviewRepo}
}

func (e *Engine) Recompute(ctx context.Context, productId string) (model.SentimentCounts, error) {
	reviews, err := e.reviewRepo.ListByProduct(ctx, productId)
	if err != nil {
		return model.SentimentCounts{}, fmt.Errorf("recompute aggregate: %w, id: %s", err, productId)
	}

	counts := Count(reviews)
	if err := e.productRepo.Update(ctx, productId, counts.Update()); err != nil {
		return model.SentimentCounts{}, fmt.Errorf("recompute aggregate: %w, id: %s", err, productId)
	}
	return counts, nil
}

// Count tallies the labels. Anything that is not positive or negative counts as neutral.
func Count(reviews []model.Review) model.SentimentCounts {
	counts := model.SentimentCounts{Total: len(reviews)}
	for _, rw := range reviews {
		switch rw.Sentiment {
		case model.SentimentPositive:
			counts.Positive++
		case model.SentimentNegative:
			counts.Negative++
		default:
			counts.Neutral++
		}
	}
	return counts
}
