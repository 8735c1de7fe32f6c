package product

import (
	"context"
	"time"

	"go-firestore-sentiment/internal/eventpublisher"
	"go-firestore-sentiment/internal/eventpublisher/common"
	"go-firestore-sentiment/internal/eventpublisher/event"
	productRepo "go-firestore-sentiment/internal/repository/product"

	"github.com/rs/zerolog/log"
)

const (
	writeTimeout          = time.Second
	writeFailureThreshold = 3
)

type eventFunc func(context.Context) <-chan productRepo.ProductEvent

type ProductPublisher interface {
	eventpublisher.Publisher
	Start(ctx context.Context) error
}

type productPublisher struct {
	eventFn    eventFunc
	submanager *common.SubManager
	publisher  *common.PublisherWithFailureThreshold
}

func newPublisher(fn eventFunc) ProductPublisher {
	return &productPublisher{
		eventFn:    fn,
		submanager: common.NewSubManager(),
		publisher:  common.NewPublisherWithFailureThreshold(writeTimeout, writeFailureThreshold),
	}
}

func (p *productPublisher) Subscribe(subscriber event.EventWChannel) {
	p.submanager.Subscribe(subscriber)
}

func (p *productPublisher) Unsubscribe(subscriber event.EventWChannel) {
	if p.submanager.Unsubscribe(subscriber) {
		p.publisher.Forget(subscriber)
	}
}

func (p *productPublisher) publish(ctx context.Context, productEvent productRepo.ProductEvent) {
	p.submanager.OnSubscribers(func(subscriber event.EventWChannel) {
		go func() {
			if err := p.publisher.Publish(ctx,
				subscriber,
				event.Event{Message: productEvent.Product, Err: productEvent.Err}); err != nil {
				log.Error().Err(err).Msg("product publisher: dropping slow subscriber")
				p.Unsubscribe(subscriber)
			}
		}()
	})
}

// Start fans the repository's product events out to the subscribers until ctx is done or
// the event source closes. Every subscriber channel is closed on return.
func (p *productPublisher) Start(ctx context.Context) error {
	defer p.submanager.UnsubscribeAll()

	eventsCh := p.eventFn(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("ProductPublisher stopped")
			return ctx.Err()
		case e, ok := <-eventsCh:
			if !ok {
				return nil
			}
			log.Debug().Str("productId", e.Product.Id).Msg("publish product")
			p.publish(ctx, e)
		}
	}
}
