package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-firestore-sentiment/internal/classifier"
	"go-firestore-sentiment/internal/config"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/ingestion"
	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/repository/memory"
	"go-firestore-sentiment/internal/scraper"
)

type fakeScrapes struct {
	err error
	got ingestion.Request
}

func (f *fakeScrapes) Scrape(_ context.Context, req ingestion.Request) (ingestion.Result, error) {
	f.got = req
	if f.err != nil {
		return ingestion.Result{}, f.err
	}
	return ingestion.Result{ProductId: "p1", PostId: "ABC", Outcome: ingestion.OutcomeNew, NewCount: 2}, nil
}

type fakeClassifier struct {
	err error
}

func (f fakeClassifier) Classify(_ context.Context, texts []string) ([]classifier.Result, error) {
	if f.err != nil {
		return nil, ierr.NewClassificationFailure(f.err)
	}
	results := make([]classifier.Result, len(texts))
	for i := range texts {
		results[i] = classifier.Result{Label: model.SentimentPositive, Confidence: 0.75}
	}
	return results, nil
}

func newTestServer(t *testing.T, scrapes *fakeScrapes, cl classifier.Classifier) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	registry := scraper.NewRegistry(scraper.NewInstagram(config.Apify{}, nil))
	ts := httptest.NewServer(New(scrapes, registry, store.Products(), store.Reviews(), cl))
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestScrapeEndpoint(t *testing.T) {
	scrapes := &fakeScrapes{}
	ts, _ := newTestServer(t, scrapes, fakeClassifier{})

	t.Run("ok", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/v1/products/scrape", `{"url":"https://www.instagram.com/p/ABC/","platform":"Instagram","resultsLimit":5}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if resp.Header.Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id header")
		}
		var got map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["success"] != true || got["productId"] != "p1" || got["newComments"] != float64(2) {
			t.Errorf("response = %v", got)
		}
		if scrapes.got.Limit != 5 || scrapes.got.Platform != model.PlatformInstagram {
			t.Errorf("request = %+v", scrapes.got)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/v1/products/scrape", `{"url":"https://www.instagram.com/someone/","platform":"instagram"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/v1/products/scrape", `{"platform":"instagram"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		scrapes.err = ierr.NewScrapeFailure("x", errors.New("actor failed"))
		defer func() { scrapes.err = nil }()

		resp := post(t, ts.URL+"/api/v1/products/scrape", `{"url":"https://www.instagram.com/p/ABC/","platform":"instagram"}`)
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", resp.StatusCode)
		}
	})
}

func TestRegisterEndpoint(t *testing.T) {
	ts, store := newTestServer(t, &fakeScrapes{}, fakeClassifier{})
	body := `{"url":"https://www.instagram.com/p/XYZ/","platform":"instagram","name":"launch post"}`

	resp := post(t, ts.URL+"/api/v1/products", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	p, err := store.Products().FindByPlatformId(context.Background(), model.PlatformInstagram, "XYZ")
	if err != nil {
		t.Fatalf("FindByPlatformId() error = %v", err)
	}
	if !p.AwaitingBackfill || p.ScrapeStatus != model.ScrapeStatusPending || p.Name != "launch post" {
		t.Errorf("registered product = %+v", p)
	}

	if resp := post(t, ts.URL+"/api/v1/products", body); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second register status = %d, want 409", resp.StatusCode)
	}
}

func TestProductReviewsEndpoint(t *testing.T) {
	ts, store := newTestServer(t, &fakeScrapes{}, fakeClassifier{})
	ctx := context.Background()

	p, _ := store.Products().Create(ctx, model.Product{Name: "post", Platform: model.PlatformInstagram, PlatformProductId: "R"})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Reviews().CreateMany(ctx, p.Id, []model.Review{
		{Comment: "old", CreatedAtPlatform: base},
		{Comment: "new", CreatedAtPlatform: base.Add(time.Hour)},
	})

	resp, err := http.Get(ts.URL + "/api/v1/products/" + p.Id + "/reviews")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got productReviewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Product.Id != p.Id || got.TotalReviews != 2 {
		t.Fatalf("response = %+v", got)
	}
	if got.Reviews[0].Comment != "new" {
		t.Errorf("reviews not sorted newest first: %s, %s", got.Reviews[0].Comment, got.Reviews[1].Comment)
	}

	missing, err := http.Get(ts.URL + "/api/v1/products/nope/reviews")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", missing.StatusCode)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, &fakeScrapes{}, fakeClassifier{})

	resp := post(t, ts.URL+"/api/v1/sentiment/analyze", `{"responses":["great","fine"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		Data []analyzeItem `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Data) != 2 || got.Data[1].Text != "fine" || got.Data[1].Sentiment != model.SentimentPositive {
		t.Fatalf("data = %+v", got.Data)
	}

	for _, body := range []string{`{}`, `{"responses":"great"}`, `{"responses":null}`} {
		if resp := post(t, ts.URL+"/api/v1/sentiment/analyze", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestAnalyzeEndpointProviderFailure(t *testing.T) {
	ts, _ := newTestServer(t, &fakeScrapes{}, fakeClassifier{err: errors.New("down")})

	resp := post(t, ts.URL+"/api/v1/sentiment/analyze", `{"responses":["great"]}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var got map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if !strings.Contains(got["error"].(string), "internal") {
		t.Errorf("error body = %v, want masked internal error", got)
	}
}
