// Package memory is a single-process record store. It backs STORE_BACKEND=memory and the
// pipeline tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/repository/filter"
	"go-firestore-sentiment/internal/repository/helper"
	"go-firestore-sentiment/internal/repository/ops"
	productRepository "go-firestore-sentiment/internal/repository/product"
	reviewRepository "go-firestore-sentiment/internal/repository/review"

	"github.com/google/uuid"
)

const channelWriteTimeout = time.Second * 3

type watcher struct {
	ctx    context.Context
	where  []filter.Where
	ch     chan productRepository.ProductEvent
	mu     sync.Mutex
	closed bool
}

func (w *watcher) deliver(p model.Product) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.ctx.Err() != nil || !matches(p, w.where) {
		return
	}
	helper.NonblockingWrite[productRepository.ProductEvent](w.ctx, channelWriteTimeout, w.ch, productRepository.ProductEvent{Product: p})
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	close(w.ch)
}

type Store struct {
	mu       sync.RWMutex
	products map[string]model.Product
	order    []string
	reviews  map[string]map[string]model.Review
	watchers []*watcher
}

func New() *Store {
	return &Store{
		products: make(map[string]model.Product),
		reviews:  make(map[string]map[string]model.Review),
	}
}

func (s *Store) Products() Products { return Products{s} }

func (s *Store) Reviews() Reviews { return Reviews{s} }

type Products struct{ s *Store }

var _ productRepository.IRepository = Products{}

func (r Products) GetById(_ context.Context, id string) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, ierr.NotFound
	}
	p.Reviews = append([]string(nil), p.Reviews...)
	return &p, nil
}

func (r Products) FindByPlatformId(_ context.Context, platform model.Platform, platformProductId string) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.findLocked(platform, platformProductId)
	if !ok {
		return nil, ierr.NotFound
	}
	return &p, nil
}

func (s *Store) findLocked(platform model.Platform, platformProductId string) (model.Product, bool) {
	for _, id := range s.order {
		p := s.products[id]
		if p.Platform == platform && p.PlatformProductId == platformProductId {
			p.Reviews = append([]string(nil), p.Reviews...)
			return p, true
		}
	}
	return model.Product{}, false
}

func (r Products) Create(_ context.Context, data model.Product) (model.Product, error) {
	r.s.mu.Lock()

	if p, ok := r.s.findLocked(data.Platform, data.PlatformProductId); ok {
		r.s.mu.Unlock()
		return p, fmt.Errorf("create product: %w, id: %s", ierr.AlreadyExists, p.Id)
	}

	if data.Id == "" {
		data.Id = uuid.NewString()
	}
	if _, ok := r.s.products[data.Id]; ok {
		r.s.mu.Unlock()
		return model.Product{}, fmt.Errorf("create product: %w, id: %s", ierr.AlreadyExists, data.Id)
	}

	data.CreatedAt = time.Now().UTC()
	data.UpdatedAt = data.CreatedAt
	if data.ScrapeStatus == "" {
		data.ScrapeStatus = model.ScrapeStatusPending
	}
	data.Reviews = append([]string{}, data.Reviews...)

	r.s.products[data.Id] = data
	r.s.order = append(r.s.order, data.Id)
	watchers := append([]*watcher(nil), r.s.watchers...)
	r.s.mu.Unlock()

	for _, w := range watchers {
		w.deliver(data)
	}

	return data, nil
}

func (r Products) Update(_ context.Context, id string, data model.ProductUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("update product: %w, id: %s", ierr.NotFound, id)
	}

	if data.TotalReviews != nil {
		p.TotalReviews = *data.TotalReviews
	}
	if data.PositiveCount != nil {
		p.PositiveCount = *data.PositiveCount
	}
	if data.NegativeCount != nil {
		p.NegativeCount = *data.NegativeCount
	}
	if data.NeutralCount != nil {
		p.NeutralCount = *data.NeutralCount
	}
	if data.LastScraped != nil {
		t := data.LastScraped.UTC()
		p.LastScraped = &t
	}
	if data.ScrapeStatus != nil {
		p.ScrapeStatus = *data.ScrapeStatus
	}
	if data.AwaitingBackfill != nil {
		p.AwaitingBackfill = *data.AwaitingBackfill
	}
	for _, reviewId := range data.AppendReviews {
		if !contains(p.Reviews, reviewId) {
			p.Reviews = append(p.Reviews, reviewId)
		}
	}
	p.UpdatedAt = time.Now().UTC()

	r.s.products[id] = p
	return nil
}

func (r Products) ListEligible(_ context.Context, platforms []model.Platform) ([]model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	products := []model.Product{}
	for _, id := range r.s.order {
		p := r.s.products[id]
		if p.ScrapeStatus == model.ScrapeStatusFailed {
			continue
		}
		for _, platform := range platforms {
			if p.Platform == platform {
				p.Reviews = append([]string(nil), p.Reviews...)
				products = append(products, p)
				break
			}
		}
	}
	return products, nil
}

// NotifyOnAdded streams products created after the call that match every where clause.
// Only the Equal operator is supported.
func (r Products) NotifyOnAdded(ctx context.Context, where []filter.Where) <-chan productRepository.ProductEvent {
	w := &watcher{ctx: ctx, where: where, ch: make(chan productRepository.ProductEvent)}

	r.s.mu.Lock()
	r.s.watchers = append(r.s.watchers, w)
	r.s.mu.Unlock()

	go func() {
		<-ctx.Done()

		r.s.mu.Lock()
		for i, other := range r.s.watchers {
			if other == w {
				r.s.watchers = append(r.s.watchers[:i], r.s.watchers[i+1:]...)
				break
			}
		}
		r.s.mu.Unlock()
		w.close()
	}()

	return w.ch
}

func matches(p model.Product, where []filter.Where) bool {
	for _, w := range where {
		if w.Op != ops.Equal {
			return false
		}

		var value interface{}
		switch w.Path {
		case productRepository.IdFieldPath:
			value = p.Id
		case productRepository.PlatformFieldPath:
			value = string(p.Platform)
		case productRepository.PlatformProductIdFieldPath:
			value = p.PlatformProductId
		case productRepository.ScrapeStatusFieldPath:
			value = string(p.ScrapeStatus)
		case productRepository.AwaitingBackfillFieldPath:
			value = p.AwaitingBackfill
		default:
			return false
		}

		if fmt.Sprint(value) != fmt.Sprint(w.Value) {
			return false
		}
	}
	return true
}

type Reviews struct{ s *Store }

var _ reviewRepository.IRepository = Reviews{}

func (r Reviews) ListByProduct(_ context.Context, productId string) ([]model.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rws := make([]model.Review, 0, len(r.s.reviews[productId]))
	for _, rw := range r.s.reviews[productId] {
		rws = append(rws, rw)
	}
	sort.Slice(rws, func(i, j int) bool {
		return rws[i].CreatedAt.Before(rws[j].CreatedAt) ||
			(rws[i].CreatedAt.Equal(rws[j].CreatedAt) && rws[i].Id < rws[j].Id)
	})
	return rws, nil
}

func (r Reviews) CreateMany(_ context.Context, productId string, reviews []model.Review) ([]model.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.reviews[productId]; !ok {
		r.s.reviews[productId] = make(map[string]model.Review)
	}

	now := time.Now().UTC()
	created := make([]model.Review, 0, len(reviews))
	for _, rw := range reviews {
		if rw.Id == "" {
			rw.Id = uuid.NewString()
		}
		if _, ok := r.s.reviews[productId][rw.Id]; ok {
			continue
		}
		rw.ProductId = productId
		if rw.Sentiment == "" {
			rw.Sentiment = model.SentimentNeutral
		}
		rw.CreatedAt = now
		rw.UpdatedAt = now

		r.s.reviews[productId][rw.Id] = rw
		created = append(created, rw)
	}
	return created, nil
}

func (r Reviews) UpdateSentiments(_ context.Context, productId string, updates []reviewRepository.SentimentUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for _, u := range updates {
		rw, ok := r.s.reviews[productId][u.ReviewId]
		if !ok {
			return fmt.Errorf("update review sentiments: %w, id: %s", ierr.NotFound, u.ReviewId)
		}
		score := u.Score
		rw.Sentiment = u.Sentiment
		rw.SentimentScore = &score
		rw.UpdatedAt = now
		r.s.reviews[productId][u.ReviewId] = rw
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
