package backfill

import (
	"context"
	"time"

	"go-firestore-sentiment/internal/dedup"
	"go-firestore-sentiment/internal/eventpublisher"
	"go-firestore-sentiment/internal/eventpublisher/event"
	"go-firestore-sentiment/internal/ingestion"
	"go-firestore-sentiment/internal/model"
	productRepository "go-firestore-sentiment/internal/repository/product"
	"go-firestore-sentiment/internal/utils"

	"github.com/rs/zerolog/log"
)

// maxConcurrentBackfills bounds the first scrapes running at once.
const maxConcurrentBackfills = 2

type ingester interface {
	Ingest(ctx context.Context, product model.Product, policy dedup.Policy, limit int) (ingestion.Result, error)
}

// Handler runs the first ingestion of products that were registered without one.
type Handler struct {
	productEventPublisher eventpublisher.Publisher
	productRepo           productRepository.IRepository
	ingester              ingester
	limit                 int
	productSubscriptionCh event.EventChannel
	slots                 chan struct{}
	now                   func() time.Time
}

func New(
	productEventPublisher eventpublisher.Publisher,
	productRepo productRepository.IRepository,
	ingester ingester,
	limit int) *Handler {

	return &Handler{
		productEventPublisher: productEventPublisher,
		productRepo:           productRepo,
		ingester:              ingester,
		limit:                 limit,
		productSubscriptionCh: make(event.EventChannel),
		slots:                 make(chan struct{}, maxConcurrentBackfills),
		now:                   time.Now,
	}
}

func (h *Handler) subscribeToEvents() {
	h.productEventPublisher.Subscribe(h.eventChannel())
}

func (h *Handler) unsubscribeFromEvents() {
	h.productEventPublisher.Unsubscribe(h.eventChannel())
}

func (h *Handler) eventChannel() chan<- event.Event {
	return h.productSubscriptionCh
}

func (h *Handler) EventHandler(ctx context.Context) error {

	h.subscribeToEvents()
	defer h.unsubscribeFromEvents()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-h.productSubscriptionCh:
			if !ok {
				return nil
			}

			if event.Err != nil {
				log.Error().Err(event.Err).Msg("backfill handler: error reading events")
				return event.Err
			}

			product, ok := event.Message.(model.Product)
			if !ok {
				continue
			}

			go func() {
				select {
				case h.slots <- struct{}{}:
					defer func() { <-h.slots }()
				case <-ctx.Done():
					return
				}
				h.handle(ctx, product)
			}()
		}
	}
}

func (h *Handler) handle(ctx context.Context, product model.Product) error {

	// the listener replays documents on reconnect, read the current state first
	current, err := h.productRepo.GetById(ctx, product.Id)
	if err != nil {
		log.Error().Err(err).Str("productId", product.Id).Msg("backfill handler: failed to load product")
		return err
	}
	if !current.AwaitingBackfill {
		log.Debug().Str("productId", product.Id).Msg("backfill already done")
		return nil
	}

	log.Debug().Str("productId", product.Id).Msg("backfill started")
	result, ingestErr := h.ingester.Ingest(ctx, *current, dedup.CompositeKey{}, h.limit)

	status := model.ScrapeStatusSuccess
	if ingestErr != nil {
		status = model.ScrapeStatusFailed
		log.Error().Err(ingestErr).Str("productId", product.Id).Msg("backfill handler: ingestion failed")
	}

	now := h.now().UTC()
	if err := h.productRepo.Update(ctx, product.Id, model.ProductUpdate{
		LastScraped:      &now,
		ScrapeStatus:     &status,
		AwaitingBackfill: utils.BoolToPointer(false),
	}); err != nil {
		log.Error().Err(err).Str("productId", product.Id).Msg("backfill handler: failed to update product")
		return err
	}

	if ingestErr != nil {
		return ingestErr
	}

	log.Info().Str("productId", product.Id).Int("new", result.NewCount).Msg("backfill finished")
	return nil
}
