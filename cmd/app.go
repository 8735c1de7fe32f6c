package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"go-firestore-sentiment/internal/classifier"
	"go-firestore-sentiment/internal/config"
	"go-firestore-sentiment/internal/database"
	"go-firestore-sentiment/internal/ingestion"
	"go-firestore-sentiment/internal/repository/memory"
	productRepository "go-firestore-sentiment/internal/repository/product"
	reviewRepository "go-firestore-sentiment/internal/repository/review"
	"go-firestore-sentiment/internal/scraper"
	"go-firestore-sentiment/internal/utils"

	gpt "go-firestore-sentiment/internal/gpt"
	gptutils "go-firestore-sentiment/internal/gpt/utils"

	Firestore "firebase.google.com/go/v4"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	products     productRepository.IRepository
	reviews      reviewRepository.IRepository
	scrapers     *scraper.Registry
	classifier   classifier.Classifier
	orchestrator *ingestion.Orchestrator
	closers      []func() error
}

func newApp(ctx context.Context, cnf config.Config) (*app, error) {
	a := &app{}

	if err := a.setupStore(ctx, cnf); err != nil {
		return nil, err
	}

	scrapers, err := newScraperRegistry(ctx, cnf)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.scrapers = scrapers

	cl, err := newClassifier(cnf)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.classifier = cl

	a.orchestrator = ingestion.New(a.scrapers, a.products, a.reviews, a.classifier, cnf.Scrape.DefaultLimit)
	return a, nil
}

func (a *app) setupStore(ctx context.Context, cnf config.Config) error {
	if cnf.StoreBackend == config.StoreMemory {
		log.Warn().Msg("using the in-memory store, data is lost on exit")
		store := memory.New()
		a.products = store.Products()
		a.reviews = store.Reviews()
		return nil
	}

	fbApp, err := createFirestoreApp(ctx, cnf.Firebase)
	if err != nil {
		return err
	}
	client, err := fbApp.Firestore(ctx)
	if err != nil {
		return fmt.Errorf("create firestore client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	db := database.New(client, cnf.WriteTimeoutSecond)
	a.products = productRepository.New(db)
	a.reviews = reviewRepository.New(db)
	return nil
}

func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
}

func createFirestoreApp(ctx context.Context, cnf config.Firebase) (*Firestore.App, error) {
	creds, err := json.Marshal(cnf)
	if err != nil {
		return nil, err
	}

	sa := option.WithCredentialsJSON(creds)
	app, err := Firestore.NewApp(ctx, &Firestore.Config{ProjectID: cnf.ProjectId}, sa)
	if err != nil {
		return nil, fmt.Errorf("create firebase app: %w", err)
	}
	return app, nil
}

func newScraperRegistry(ctx context.Context, cnf config.Config) (*scraper.Registry, error) {
	registry := scraper.NewRegistry(
		scraper.NewInstagram(cnf.Apify, nil),
		scraper.NewAmazon(cnf.Amazon, nil),
	)

	if cnf.Youtube.ApiKey == "" {
		log.Info().Msg("YOUTUBE_API_KEY is not set, youtube scraping disabled")
		return registry, nil
	}

	yt, err := scraper.NewYoutube(ctx, cnf.Youtube)
	if err != nil {
		return nil, err
	}
	registry.Register(yt)
	return registry, nil
}

func newClassifier(cnf config.Config) (classifier.Classifier, error) {
	if cnf.Classifier.Backend != config.BackendGPT {
		return classifier.NewHuggingFace(cnf.HuggingFace), nil
	}

	tokenizer, err := gptutils.NewTokenizer()
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}

	gptFactory, err := gpt.NewClientFactory(gpt.ClientConfig{
		ApiUrl:      cnf.GilasAI.ApiUrl,
		ApiKey:      cnf.GilasAI.ApiKey,
		Model:       cnf.GilasAI.Model,
		Temperature: utils.Float32ToPointer(0.1),
	})
	if err != nil {
		return nil, fmt.Errorf("create gpt client: %w", err)
	}

	return classifier.NewGPT(gptFactory, tokenizer, cnf.Classifier.MaxCommentTokens), nil
}
