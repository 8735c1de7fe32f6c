package product

import (
	"context"

	"go-firestore-sentiment/internal/repository/filter"
	"go-firestore-sentiment/internal/repository/ops"
	productRepo "go-firestore-sentiment/internal/repository/product"
)

type Factory interface {
	OnProductAwaitingBackfill() ProductPublisher
}

type factory struct {
	repo productRepo.IRepository
}

func ProductPublisherFactory(productRepo productRepo.IRepository) Factory {
	return &factory{
		repo: productRepo,
	}
}

// OnProductAwaitingBackfill publishes products registered without a first scrape.
func (f *factory) OnProductAwaitingBackfill() ProductPublisher {
	return newPublisher(func(ctx context.Context) <-chan productRepo.ProductEvent {
		return f.repo.NotifyOnAdded(ctx,
			[]filter.Where{{Path: productRepo.AwaitingBackfillFieldPath, Op: ops.Equal, Value: true}})
	})
}
