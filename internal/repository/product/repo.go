package product

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go-firestore-sentiment/internal/database"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/repository/filter"
	"go-firestore-sentiment/internal/repository/helper"
	"go-firestore-sentiment/internal/repository/ops"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ProductRepository struct {
	db database.Client
}

var _ IRepository = ProductRepository{}

func New(db database.Client) ProductRepository {
	return ProductRepository{
		db: db,
	}
}

func (r ProductRepository) GetById(ctx context.Context, id string) (product *model.Product, err error) {

	docRef := r.db.Collection(productNode).Doc(id)
	docSnap, err := r.db.GetDoc(ctx, docRef)
	if err != nil {
		if errors.Is(err, database.ErrDocNotExist) {
			return nil, ierr.NotFound
		}
		return nil, fmt.Errorf("get product: %w, id: %s", err, id)
	}

	product = &model.Product{}
	if err = docSnap.DataTo(product); err != nil {
		return nil, fmt.Errorf("get product: %w, id: %s", err, id)
	}
	product.Id = docSnap.Ref.ID

	return product, nil
}

func (r ProductRepository) FindByPlatformId(ctx context.Context, platform model.Platform, platformProductId string) (*model.Product, error) {

	query := helper.Apply(r.db.Collection(productNode).Query, []filter.Where{
		{Path: PlatformFieldPath, Op: ops.Equal, Value: string(platform)},
		{Path: PlatformProductIdFieldPath, Op: ops.Equal, Value: platformProductId},
	}).Limit(1)

	var product *model.Product
	err := r.db.IterDocs(ctx, query, func(ds *firestore.DocumentSnapshot) error {
		p := model.Product{}
		if err := ds.DataTo(&p); err != nil {
			return err
		}
		p.Id = ds.Ref.ID
		product = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find product: %w, platformProductId: %s", err, platformProductId)
	}

	if product == nil {
		return nil, ierr.NotFound
	}
	return product, nil
}

func (r ProductRepository) Create(ctx context.Context, data model.Product) (model.Product, error) {

	p, err := r.FindByPlatformId(ctx, data.Platform, data.PlatformProductId)
	if p != nil {
		return *p, fmt.Errorf("create product: %w, id: %s", ierr.AlreadyExists, p.Id)
	}

	if err != nil && !errors.Is(err, ierr.NotFound) {
		return model.Product{}, fmt.Errorf("create product: %w, platformProductId: %s", err, data.PlatformProductId)
	}

	docRef := r.db.Collection(productNode).NewDoc()
	if data.Id != "" {
		docRef = r.db.Collection(productNode).Doc(data.Id)
	}
	data.Id = docRef.ID

	data.CreatedAt = time.Now().UTC()
	data.UpdatedAt = data.CreatedAt
	if data.ScrapeStatus == "" {
		data.ScrapeStatus = model.ScrapeStatusPending
	}
	if data.Reviews == nil {
		data.Reviews = []string{}
	}

	if _, err = r.db.SetDoc(ctx, docRef, data); err != nil {
		return model.Product{}, fmt.Errorf("create product: %w, id: %s", err, data.Id)
	}

	return data, nil
}

func (r ProductRepository) Update(ctx context.Context, id string, data model.ProductUpdate) error {
	docRef := r.db.Collection(productNode).Doc(id)

	_, err := r.db.UpdateDoc(ctx, docRef, toUpdates(data))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("update product: %w, id: %s", ierr.NotFound, id)
		}
		return fmt.Errorf("update product: %w, id: %s", err, id)
	}
	return nil
}

// toUpdates maps a partial update to firestore field updates. The aggregate counters of
// one update are written together so they never diverge.
func toUpdates(data model.ProductUpdate) []firestore.Update {
	updates := []firestore.Update{}

	updates = append(updates, firestore.Update{
		Path:  UpdatedAtFieldPath,
		Value: time.Now().UTC(),
	})

	if data.TotalReviews != nil {
		updates = append(updates, firestore.Update{Path: TotalReviewsFieldPath, Value: *data.TotalReviews})
	}
	if data.PositiveCount != nil {
		updates = append(updates, firestore.Update{Path: PositiveCountFieldPath, Value: *data.PositiveCount})
	}
	if data.NegativeCount != nil {
		updates = append(updates, firestore.Update{Path: NegativeCountFieldPath, Value: *data.NegativeCount})
	}
	if data.NeutralCount != nil {
		updates = append(updates, firestore.Update{Path: NeutralCountFieldPath, Value: *data.NeutralCount})
	}
	if data.LastScraped != nil {
		updates = append(updates, firestore.Update{Path: LastScrapedFieldPath, Value: data.LastScraped.UTC()})
	}
	if data.ScrapeStatus != nil {
		updates = append(updates, firestore.Update{Path: ScrapeStatusFieldPath, Value: string(*data.ScrapeStatus)})
	}
	if data.AwaitingBackfill != nil {
		updates = append(updates, firestore.Update{Path: AwaitingBackfillFieldPath, Value: *data.AwaitingBackfill})
	}
	if len(data.AppendReviews) > 0 {
		ids := make([]interface{}, 0, len(data.AppendReviews))
		for _, id := range data.AppendReviews {
			ids = append(ids, id)
		}
		updates = append(updates, firestore.Update{Path: ReviewsFieldPath, Value: firestore.ArrayUnion(ids...)})
	}

	return updates
}

func (r ProductRepository) ListEligible(ctx context.Context, platforms []model.Platform) ([]model.Product, error) {
	products := []model.Product{}
	if len(platforms) == 0 {
		return products, nil
	}

	values := make([]string, 0, len(platforms))
	for _, p := range platforms {
		values = append(values, string(p))
	}

	// scrapeStatus is filtered here, firestore does not combine "in" with "!=" on another field
	query := helper.Apply(r.db.Collection(productNode).Query, []filter.Where{
		{Path: PlatformFieldPath, Op: ops.In, Value: values},
	}).OrderBy(CreatedAtFieldPath, firestore.Asc)

	err := r.db.IterDocs(ctx, query, func(ds *firestore.DocumentSnapshot) error {
		p := model.Product{}
		if err := ds.DataTo(&p); err != nil {
			log.Error().Err(err).Str("productId", ds.Ref.ID).Msg("product repo: failed to convert doc to product")
			return nil
		}
		p.Id = ds.Ref.ID
		if p.ScrapeStatus == model.ScrapeStatusFailed {
			return nil
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible products: %w", err)
	}

	return products, nil
}

func (r ProductRepository) NotifyOnAdded(ctx context.Context, where []filter.Where) <-chan ProductEvent {
	query := r.db.Collection(productNode).Query
	return r.notifyOnChanges(ctx, query, where, firestore.DocumentAdded)
}

func (r ProductRepository) notifyOnChanges(ctx context.Context, query firestore.Query, where []filter.Where, kind firestore.DocumentChangeKind) <-chan ProductEvent {

	ch := make(chan ProductEvent)
	var writeFailureCount, writeFailureThreshold int32 = 0, 3

	go func() {
		defer close(ch)

		helper.NotifyOnChanges(ctx, r.db, query, where, kind, func(dc firestore.DocumentChange, err error) error {

			if atomic.LoadInt32(&writeFailureCount) > writeFailureThreshold {
				return fmt.Errorf("write failure threshould reached")
			}

			product := model.Product{}

			if err != nil && !(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				log.Error().Err(err).Msg("product repo: failed to read product events")
				helper.NonblockingWrite[ProductEvent](ctx, channelWriteTimeout, ch, ProductEvent{Product: product, Err: err})
				return err
			}

			if err = dc.Doc.DataTo(&product); err != nil {
				log.Error().Err(err).Msg("product repo: failed to convert doc to product")
				return nil
			}
			product.Id = dc.Doc.Ref.ID

			if err := helper.NonblockingWrite[ProductEvent](ctx, channelWriteTimeout, ch, ProductEvent{Product: product}); err != nil {
				atomic.AddInt32(&writeFailureCount, 1)
			}

			return nil
		})

	}()
	return ch
}
