package poller

import (
	"context"
	"time"

	"go-firestore-sentiment/internal/config"
	"go-firestore-sentiment/internal/dedup"
	"go-firestore-sentiment/internal/ingestion"
	"go-firestore-sentiment/internal/model"
	productRepository "go-firestore-sentiment/internal/repository/product"

	"github.com/rs/zerolog/log"
)

type ingester interface {
	Ingest(ctx context.Context, product model.Product, policy dedup.Policy, limit int) (ingestion.Result, error)
}

// Summary reports one pass over the eligible products.
type Summary struct {
	Eligible    int `json:"eligible"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	NewComments int `json:"newComments"`
}

// Poller re-ingests every eligible product on a fixed interval, one product at a time,
// with the high-water-mark policy.
type Poller struct {
	ingester     ingester
	productRepo  productRepository.IRepository
	platforms    []model.Platform
	interval     time.Duration
	resultsLimit int
	delay        time.Duration
	now          func() time.Time
}

func New(ingester ingester, productRepo productRepository.IRepository, cnf config.Poller) *Poller {
	platforms := make([]model.Platform, 0, len(cnf.Platforms))
	for _, p := range cnf.Platforms {
		platforms = append(platforms, model.Platform(p))
	}

	interval := cnf.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	return &Poller{
		ingester:     ingester,
		productRepo:  productRepo,
		platforms:    platforms,
		interval:     interval,
		resultsLimit: cnf.ResultsLimit,
		delay:        cnf.ProductDelay,
		now:          time.Now,
	}
}

// Start runs a pass on every tick until ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Interface("platforms", p.platforms).Msg("poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				log.Error().Err(err).Msg("poll pass aborted")
			}
		}
	}
}

// PollOnce processes the eligible products sequentially. A product's failure is logged and
// recorded on it; the pass moves on. Only a failed product listing or ctx aborts the pass.
func (p *Poller) PollOnce(ctx context.Context) (Summary, error) {
	products, err := p.productRepo.ListEligible(ctx, p.platforms)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Eligible: len(products)}
	log.Info().Int("eligible", len(products)).Msg("poll pass started")

	for i, product := range products {
		if i > 0 {
			if err := p.pause(ctx); err != nil {
				return summary, err
			}
		}

		newCount, err := p.poll(ctx, product)
		if err != nil {
			summary.Failed++
			log.Error().Err(err).Str("productId", product.Id).Str("name", product.Name).Msg("poll product failed")
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			continue
		}
		summary.Succeeded++
		summary.NewComments += newCount
	}

	log.Info().
		Int("eligible", summary.Eligible).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("new", summary.NewComments).
		Msg("poll pass finished")
	return summary, nil
}

// pause waits the product delay, counted from the end of the previous product.
func (p *Poller) pause(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Poller) poll(ctx context.Context, product model.Product) (int, error) {
	result, ingestErr := p.ingester.Ingest(ctx, product, dedup.HighWaterMark{}, p.resultsLimit)

	status := model.ScrapeStatusSuccess
	if ingestErr != nil {
		status = model.ScrapeStatusFailed
	}
	now := p.now().UTC()
	if err := p.productRepo.Update(ctx, product.Id, model.ProductUpdate{LastScraped: &now, ScrapeStatus: &status}); err != nil {
		if ingestErr != nil {
			return 0, ingestErr
		}
		return 0, err
	}

	if ingestErr != nil {
		return 0, ingestErr
	}

	log.Debug().Str("productId", product.Id).Int("new", result.NewCount).Str("outcome", string(result.Outcome)).Msg("product polled")
	return result.NewCount, nil
}
