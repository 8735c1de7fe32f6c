package aggregation

import (
	"context"
	"testing"

	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/repository/memory"
	reviewRepository "go-firestore-sentiment/internal/repository/review"
)

func TestCount(t *testing.T) {
	got := Count([]model.Review{
		{Sentiment: model.SentimentPositive},
		{Sentiment: model.SentimentPositive},
		{Sentiment: model.SentimentNegative},
		{Sentiment: model.SentimentNeutral},
		{},
	})

	want := model.SentimentCounts{Positive: 2, Negative: 1, Neutral: 2, Total: 5}
	if got != want {
		t.Fatalf("Count() = %+v, want %+v", got, want)
	}
	if got.Positive+got.Negative+got.Neutral != got.Total {
		t.Fatalf("counts do not sum to total: %+v", got)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p, _ := store.Products().Create(ctx, model.Product{Platform: model.PlatformInstagram, PlatformProductId: "x"})

	created, _ := store.Reviews().CreateMany(ctx, p.Id, []model.Review{{Comment: "a"}, {Comment: "b"}, {Comment: "c"}})
	store.Reviews().UpdateSentiments(ctx, p.Id, []reviewRepository.SentimentUpdate{
		{ReviewId: created[0].Id, Sentiment: model.SentimentPositive, Score: 0.9},
		{ReviewId: created[1].Id, Sentiment: model.SentimentNegative, Score: 0.8},
	})

	engine := New(store.Products(), store.Reviews())
	for i := 0; i < 2; i++ {
		if _, err := engine.Recompute(ctx, p.Id); err != nil {
			t.Fatalf("Recompute() error = %v", err)
		}
	}

	got, _ := store.Products().GetById(ctx, p.Id)
	if got.TotalReviews != 3 || got.PositiveCount != 1 || got.NegativeCount != 1 || got.NeutralCount != 1 {
		t.Fatalf("product aggregate = %d/%d/%d/%d", got.TotalReviews, got.PositiveCount, got.NegativeCount, got.NeutralCount)
	}
}

func TestRecomputeUnknownProduct(t *testing.T) {
	store := memory.New()
	if _, err := New(store.Products(), store.Reviews()).Recompute(context.Background(), "nope"); err == nil {
		t.Fatal("Recompute() error = nil, want error for unknown product")
	}
}
