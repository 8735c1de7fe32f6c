package product

import (
	"context"

	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/repository/filter"
)

type ProductEvent struct {
	Product model.Product
	Err     error
}

type IRepository interface {
	GetById(ctx context.Context, id string) (*model.Product, error)
	FindByPlatformId(ctx context.Context, platform model.Platform, platformProductId string) (*model.Product, error)
	// Create stores a new product, assigning an id when data.Id is empty.
	Create(ctx context.Context, data model.Product) (model.Product, error)
	Update(ctx context.Context, id string, data model.ProductUpdate) error
	// ListEligible returns the products on the given platforms whose last scrape did not fail.
	ListEligible(ctx context.Context, platforms []model.Platform) ([]model.Product, error)
	NotifyOnAdded(ctx context.Context, where []filter.Where) <-chan ProductEvent
}
