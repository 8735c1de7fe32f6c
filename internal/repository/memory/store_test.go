package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/repository/filter"
	"go-firestore-sentiment/internal/repository/ops"
	productRepository "go-firestore-sentiment/internal/repository/product"
	reviewRepository "go-firestore-sentiment/internal/repository/review"
)

func TestProductsCreateAndFind(t *testing.T) {
	ctx := context.Background()
	products := New().Products()

	created, err := products.Create(ctx, model.Product{Name: "post", Platform: model.PlatformInstagram, PlatformProductId: "ABC"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Id == "" || created.ScrapeStatus != model.ScrapeStatusPending {
		t.Fatalf("Create() = %+v, want id and pending status", created)
	}

	found, err := products.FindByPlatformId(ctx, model.PlatformInstagram, "ABC")
	if err != nil || found.Id != created.Id {
		t.Fatalf("FindByPlatformId() = %v, %v", found, err)
	}

	_, err = products.Create(ctx, model.Product{Platform: model.PlatformInstagram, PlatformProductId: "ABC"})
	if !errors.Is(err, ierr.AlreadyExists) {
		t.Fatalf("second Create() error = %v, want AlreadyExists", err)
	}

	if _, err := products.GetById(ctx, "missing"); !errors.Is(err, ierr.NotFound) {
		t.Fatalf("GetById() error = %v, want NotFound", err)
	}
}

func TestProductsUpdate(t *testing.T) {
	ctx := context.Background()
	products := New().Products()
	p, _ := products.Create(ctx, model.Product{Platform: model.PlatformAmazon, PlatformProductId: "B0"})

	now := time.Now()
	status := model.ScrapeStatusSuccess
	counts := model.SentimentCounts{Positive: 2, Negative: 1, Neutral: 0, Total: 3}
	update := counts.Update()
	update.LastScraped = &now
	update.ScrapeStatus = &status
	update.AppendReviews = []string{"a", "b"}

	if err := products.Update(ctx, p.Id, update); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := products.Update(ctx, p.Id, model.ProductUpdate{AppendReviews: []string{"b", "c"}}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := products.GetById(ctx, p.Id)
	if got.TotalReviews != 3 || got.PositiveCount != 2 || got.NegativeCount != 1 {
		t.Errorf("counts = %+v", got)
	}
	if got.ScrapeStatus != model.ScrapeStatusSuccess || got.LastScraped == nil {
		t.Errorf("status = %s, lastScraped = %v", got.ScrapeStatus, got.LastScraped)
	}
	if len(got.Reviews) != 3 {
		t.Errorf("Reviews = %v, want [a b c]", got.Reviews)
	}

	if err := products.Update(ctx, "missing", model.ProductUpdate{}); !errors.Is(err, ierr.NotFound) {
		t.Errorf("Update(missing) error = %v, want NotFound", err)
	}
}

func TestProductsListEligible(t *testing.T) {
	ctx := context.Background()
	products := New().Products()

	ok, _ := products.Create(ctx, model.Product{Platform: model.PlatformInstagram, PlatformProductId: "1"})
	failed, _ := products.Create(ctx, model.Product{Platform: model.PlatformInstagram, PlatformProductId: "2"})
	products.Create(ctx, model.Product{Platform: model.PlatformAmazon, PlatformProductId: "3"})

	status := model.ScrapeStatusFailed
	products.Update(ctx, failed.Id, model.ProductUpdate{ScrapeStatus: &status})

	got, err := products.ListEligible(ctx, []model.Platform{model.PlatformInstagram})
	if err != nil {
		t.Fatalf("ListEligible() error = %v", err)
	}
	if len(got) != 1 || got[0].Id != ok.Id {
		t.Fatalf("ListEligible() = %+v, want only %s", got, ok.Id)
	}
}

func TestProductsNotifyOnAdded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	products := New().Products()

	events := products.NotifyOnAdded(ctx, []filter.Where{{Path: productRepository.AwaitingBackfillFieldPath, Op: ops.Equal, Value: true}})

	go func() {
		products.Create(ctx, model.Product{Platform: model.PlatformAmazon, PlatformProductId: "skip"})
		products.Create(ctx, model.Product{Platform: model.PlatformAmazon, PlatformProductId: "want", AwaitingBackfill: true})
	}()

	select {
	case e := <-events:
		if e.Product.PlatformProductId != "want" {
			t.Fatalf("event for %s, want only the awaiting product", e.Product.PlatformProductId)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range events {
	}
}

func TestReviewsLifecycle(t *testing.T) {
	ctx := context.Background()
	reviews := New().Reviews()

	created, err := reviews.CreateMany(ctx, "p1", []model.Review{{Id: "k1", Comment: "nice"}, {Comment: "meh"}})
	if err != nil {
		t.Fatalf("CreateMany() error = %v", err)
	}
	if created[0].Id != "k1" || created[1].Id == "" || created[0].Sentiment != model.SentimentNeutral {
		t.Fatalf("CreateMany() = %+v", created)
	}

	// same id twice is one review
	dup, _ := reviews.CreateMany(ctx, "p1", []model.Review{{Id: "k1", Comment: "nice"}})
	if len(dup) != 0 {
		t.Fatalf("CreateMany() of a stored id = %+v, want nothing", dup)
	}
	list, _ := reviews.ListByProduct(ctx, "p1")
	if len(list) != 2 {
		t.Fatalf("ListByProduct() returned %d reviews, want 2", len(list))
	}

	err = reviews.UpdateSentiments(ctx, "p1", []reviewRepository.SentimentUpdate{{ReviewId: "k1", Sentiment: model.SentimentPositive, Score: 0.9}})
	if err != nil {
		t.Fatalf("UpdateSentiments() error = %v", err)
	}

	// storing a classified review again keeps its sentiment
	again, err := reviews.CreateMany(ctx, "p1", []model.Review{{Id: "k1", Comment: "nice"}, {Id: "k3", Comment: "new"}})
	if err != nil {
		t.Fatalf("CreateMany() error = %v", err)
	}
	if len(again) != 1 || again[0].Id != "k3" {
		t.Fatalf("CreateMany() = %+v, want only k3", again)
	}
	list, _ = reviews.ListByProduct(ctx, "p1")
	for _, rw := range list {
		if rw.Id == "k1" && (rw.Sentiment != model.SentimentPositive || rw.SentimentScore == nil || *rw.SentimentScore != 0.9) {
			t.Errorf("review k1 = %+v", rw)
		}
	}

	err = reviews.UpdateSentiments(ctx, "p1", []reviewRepository.SentimentUpdate{{ReviewId: "nope"}})
	if !errors.Is(err, ierr.NotFound) {
		t.Errorf("UpdateSentiments(unknown) error = %v, want NotFound", err)
	}
}
