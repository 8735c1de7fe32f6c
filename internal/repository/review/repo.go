package review

import (
	"context"
	"fmt"
	"time"

	"go-firestore-sentiment/internal/database"
	"go-firestore-sentiment/internal/model"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
)

type ReviewRepository struct {
	db database.Client
}

var _ IRepository = ReviewRepository{}

func New(db database.Client) ReviewRepository {
	return ReviewRepository{
		db: db,
	}
}

func (r ReviewRepository) reviews(productId string) *firestore.CollectionRef {
	return r.db.Collection(productNode).Doc(productId).Collection(reviewNode)
}

func (r ReviewRepository) ListByProduct(ctx context.Context, productId string) ([]model.Review, error) {
	rws := make([]model.Review, 0)

	err := r.db.IterDocs(ctx, r.reviews(productId).Query, func(ds *firestore.DocumentSnapshot) error {
		rw := model.Review{}
		if err := ds.DataTo(&rw); err != nil {
			return err
		}
		rw.Id = ds.Ref.ID
		rws = append(rws, rw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w, productId: %s", err, productId)
	}

	return rws, nil
}

func (r ReviewRepository) CreateMany(ctx context.Context, productId string, reviews []model.Review) ([]model.Review, error) {
	if len(reviews) == 0 {
		return []model.Review{}, nil
	}

	now := time.Now().UTC()
	dataBatch := make([]database.DataBatch, 0, len(reviews))
	byId := make(map[string]model.Review, len(reviews))
	for _, rw := range reviews {
		docRef := r.reviews(productId).NewDoc()
		if rw.Id != "" {
			// Next write of the same comment lands on the same doc
			docRef = r.reviews(productId).Doc(rw.Id)
		}
		if _, ok := byId[docRef.ID]; ok {
			continue
		}
		rw.Id = docRef.ID
		rw.ProductId = productId
		if rw.Sentiment == "" {
			rw.Sentiment = model.SentimentNeutral
		}
		rw.CreatedAt = now
		rw.UpdatedAt = now

		dataBatch = append(dataBatch, database.DataBatch{
			DocRef: docRef,
			Data:   rw,
		})
		byId[rw.Id] = rw
	}

	refs, err := r.db.CreateDocs(ctx, dataBatch)
	if err != nil {
		return nil, fmt.Errorf("create reviews: %w, productId: %s", err, productId)
	}

	created := make([]model.Review, 0, len(refs))
	for _, ref := range refs {
		created = append(created, byId[ref.ID])
	}
	if skipped := len(dataBatch) - len(created); skipped > 0 {
		log.Debug().Str("productId", productId).Int("skipped", skipped).Msg("reviews already stored")
	}
	return created, nil
}

func (r ReviewRepository) UpdateSentiments(ctx context.Context, productId string, updates []SentimentUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := make([]database.UpdateBatch, 0, len(updates))
	for _, u := range updates {
		batch = append(batch, database.UpdateBatch{
			DocRef: r.reviews(productId).Doc(u.ReviewId),
			Updates: []firestore.Update{
				{Path: SentimentFieldPath, Value: string(u.Sentiment)},
				{Path: SentimentScoreFieldPath, Value: u.Score},
				{Path: UpdatedAtFieldPath, Value: now},
			},
		})
	}

	if _, err := r.db.UpdateDocs(ctx, batch); err != nil {
		return fmt.Errorf("update review sentiments: %w, productId: %s", err, productId)
	}
	return nil
}
