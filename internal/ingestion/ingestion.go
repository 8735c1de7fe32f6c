package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-firestore-sentiment/internal/aggregation"
	"go-firestore-sentiment/internal/classifier"
	"go-firestore-sentiment/internal/dedup"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/normalize"
	productRepository "go-firestore-sentiment/internal/repository/product"
	reviewRepository "go-firestore-sentiment/internal/repository/review"
	"go-firestore-sentiment/internal/scraper"
	"go-firestore-sentiment/internal/utils"

	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	OutcomeNew  Outcome = "new"
	OutcomeNone Outcome = "none"
)

// Request starts an on-demand run for a source URL.
type Request struct {
	Url      string         `json:"url"`
	Platform model.Platform `json:"platform"`
	Name     string         `json:"name,omitempty"`
	Limit    int            `json:"resultsLimit,omitempty"`
}

type Result struct {
	ProductId  string  `json:"productId"`
	PostId     string  `json:"postId"`
	Outcome    Outcome `json:"outcome"`
	Scraped    int     `json:"scraped"`
	NewCount   int     `json:"newComments"`
	Classified int     `json:"classified"`
	// ClassifyErr is set when the batch could not be classified; the new reviews stay neutral.
	ClassifyErr error         `json:"-"`
	Product     model.Product `json:"product"`
}

type resolver interface {
	Resolve(platform model.Platform) (scraper.Scraper, error)
}

// Orchestrator runs one product through scrape, dedup, persist, classify and aggregate.
// Steps run one after another; nothing locks a product against a concurrent run.
type Orchestrator struct {
	scrapers     resolver
	productRepo  productRepository.IRepository
	reviewRepo   reviewRepository.IRepository
	classifier   classifier.Classifier
	aggregator   *aggregation.Engine
	defaultLimit int
	now          func() time.Time
}

func New(
	scrapers resolver,
	productRepo productRepository.IRepository,
	reviewRepo reviewRepository.IRepository,
	classifier classifier.Classifier,
	defaultLimit int) *Orchestrator {

	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &Orchestrator{
		scrapers:     scrapers,
		productRepo:  productRepo,
		reviewRepo:   reviewRepo,
		classifier:   classifier,
		aggregator:   aggregation.New(productRepo, reviewRepo),
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// Scrape is the on-demand path: composite-key dedup, product located or created by its
// platform id. A scrape failure is returned without touching the product.
func (o *Orchestrator) Scrape(ctx context.Context, req Request) (Result, error) {
	if !req.Platform.Valid() {
		return Result{}, ierr.NewScrapeFailure(req.Url, fmt.Errorf("unsupported platform %q", req.Platform))
	}

	s, err := o.scrapers.Resolve(req.Platform)
	if err != nil {
		return Result{}, err
	}

	postId, err := s.PostID(req.Url)
	if err != nil {
		return Result{}, err
	}

	raws, err := s.Scrape(ctx, req.Url, o.limit(req.Limit))
	if err != nil {
		return Result{}, fmt.Errorf("scrape product: %w", err)
	}

	product, err := o.locateOrCreate(ctx, req, postId)
	if err != nil {
		return Result{}, err
	}

	result, err := o.process(ctx, product, raws, dedup.CompositeKey{})
	if err != nil {
		return result, err
	}
	result.PostId = postId

	now := o.now().UTC()
	status := model.ScrapeStatusSuccess
	if err := o.productRepo.Update(ctx, product.Id, model.ProductUpdate{LastScraped: &now, ScrapeStatus: &status}); err != nil {
		return result, fmt.Errorf("update product status: %w, id: %s", err, product.Id)
	}

	return o.withProduct(ctx, result)
}

// Ingest scrapes a known product and stores what the policy selects. It leaves the
// product's scrape status to the caller.
func (o *Orchestrator) Ingest(ctx context.Context, product model.Product, policy dedup.Policy, limit int) (Result, error) {
	s, err := o.scrapers.Resolve(product.Platform)
	if err != nil {
		return Result{ProductId: product.Id}, err
	}

	raws, err := s.Scrape(ctx, product.Url, o.limit(limit))
	if err != nil {
		return Result{ProductId: product.Id}, fmt.Errorf("scrape product: %w, id: %s", err, product.Id)
	}

	result, err := o.process(ctx, product, raws, policy)
	if err != nil {
		return result, err
	}
	result.PostId = product.PlatformProductId
	return o.withProduct(ctx, result)
}

func (o *Orchestrator) limit(limit int) int {
	if limit <= 0 {
		return o.defaultLimit
	}
	return limit
}

func (o *Orchestrator) locateOrCreate(ctx context.Context, req Request, postId string) (model.Product, error) {
	product, err := o.productRepo.FindByPlatformId(ctx, req.Platform, postId)
	if err == nil {
		return *product, nil
	}
	if !errors.Is(err, ierr.NotFound) {
		return model.Product{}, fmt.Errorf("locate product: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("%s %s", req.Platform, postId)
	}

	created, err := o.productRepo.Create(ctx, model.Product{
		Name:              name,
		Url:               strings.TrimSpace(req.Url),
		Platform:          req.Platform,
		PlatformProductId: postId,
		ScrapeStatus:      model.ScrapeStatusPending,
	})
	if errors.Is(err, ierr.AlreadyExists) {
		// created by a concurrent run in between
		return created, nil
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("create product: %w", err)
	}

	log.Info().Str("productId", created.Id).Str("platform", string(created.Platform)).Msg("product created")
	return created, nil
}

func (o *Orchestrator) process(ctx context.Context, product model.Product, raws []model.RawComment, policy dedup.Policy) (Result, error) {
	result := Result{ProductId: product.Id, Scraped: len(raws), Outcome: OutcomeNone}

	existing, err := o.reviewRepo.ListByProduct(ctx, product.Id)
	if err != nil {
		return result, fmt.Errorf("load reviews: %w", err)
	}

	fresh := policy.Select(existing, normalize.All(raws, o.now()))
	log.Debug().
		Str("productId", product.Id).
		Str("policy", policy.Name()).
		Int("scraped", len(raws)).
		Int("stored", len(existing)).
		Int("new", len(fresh)).
		Msg("dedup done")

	if len(fresh) == 0 {
		return result, nil
	}

	created, err := o.reviewRepo.CreateMany(ctx, product.Id, toReviews(product, fresh))
	if err != nil {
		return result, fmt.Errorf("persist reviews: %w", err)
	}
	if len(created) == 0 {
		// a concurrent run stored them first
		return result, nil
	}
	result.Outcome = OutcomeNew
	result.NewCount = len(created)

	ids := make([]string, 0, len(created))
	texts := make([]string, 0, len(created))
	for _, rw := range created {
		ids = append(ids, rw.Id)
		texts = append(texts, rw.Comment)
	}

	total := len(existing) + len(created)
	if err := o.productRepo.Update(ctx, product.Id, model.ProductUpdate{TotalReviews: &total, AppendReviews: ids}); err != nil {
		return result, fmt.Errorf("update product reviews: %w, id: %s", err, product.Id)
	}

	if err := o.classify(ctx, product.Id, ids, texts); err != nil {
		if !ierr.IsClassificationFailure(err) {
			return result, err
		}
		log.Error().Err(err).Str("productId", product.Id).Int("reviews", len(ids)).Msg("classification failed, reviews left neutral")
		result.ClassifyErr = err
	} else {
		result.Classified = len(ids)
	}

	// runs after a classification failure too so the counts include the neutral defaults
	if _, err := o.aggregator.Recompute(ctx, product.Id); err != nil {
		return result, err
	}

	return result, nil
}

func (o *Orchestrator) classify(ctx context.Context, productId string, ids, texts []string) error {
	results, err := o.classifier.Classify(ctx, texts)
	if err != nil {
		return err
	}
	if len(results) != len(ids) {
		return ierr.NewClassificationFailure(fmt.Errorf("got %d results for %d reviews", len(results), len(ids)))
	}

	updates := make([]reviewRepository.SentimentUpdate, 0, len(ids))
	for i, r := range results {
		updates = append(updates, reviewRepository.SentimentUpdate{ReviewId: ids[i], Sentiment: r.Label, Score: r.Confidence})
	}

	if err := o.reviewRepo.UpdateSentiments(ctx, productId, updates); err != nil {
		return fmt.Errorf("persist sentiments: %w", err)
	}
	return nil
}

func (o *Orchestrator) withProduct(ctx context.Context, result Result) (Result, error) {
	product, err := o.productRepo.GetById(ctx, result.ProductId)
	if err != nil {
		return result, fmt.Errorf("reload product: %w, id: %s", err, result.ProductId)
	}
	result.Product = *product
	return result, nil
}

// toReviews maps new comments to reviews. The review id is derived from the dedup key,
// so storing the same comment twice addresses the same record.
func toReviews(product model.Product, comments []normalize.Comment) []model.Review {
	reviews := make([]model.Review, 0, len(comments))
	for _, c := range comments {
		reviews = append(reviews, model.Review{
			Id:                   utils.Hash(c.Key),
			ProductId:            product.Id,
			Comment:              c.RawText,
			AuthorName:           c.RawAuthor,
			AuthorProfile:        c.AuthorProfile,
			Platform:             product.Platform,
			Rating:               c.Rating,
			Likes:                c.Likes,
			Sentiment:            model.SentimentNeutral,
			CreatedAtPlatform:    c.Timestamp,
			TimestampApproximate: c.TimestampApproximate,
		})
	}
	return reviews
}
