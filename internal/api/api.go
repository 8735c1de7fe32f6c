// Package api is the HTTP trigger and read surface of the ingestion pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"go-firestore-sentiment/internal/classifier"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/ingestion"
	"go-firestore-sentiment/internal/model"
	productRepository "go-firestore-sentiment/internal/repository/product"
	reviewRepository "go-firestore-sentiment/internal/repository/review"
	"go-firestore-sentiment/internal/scraper"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

var (
	ErrInternal   = errors.New("internal server error")
	ErrBadInput   = errors.New("invalid input")
	ErrNotFound   = errors.New("product not found")
	ErrNoResponse = errors.New("responses must be an array")
)

// readTimeout bounds the store reads of the read endpoints. Scrapes use the request context.
const readTimeout = 10 * time.Second

type ctxKey int

const (
	requestID ctxKey = iota
)

type scrapeService interface {
	Scrape(ctx context.Context, req ingestion.Request) (ingestion.Result, error)
}

type resolver interface {
	Resolve(platform model.Platform) (scraper.Scraper, error)
}

type wideResponseWriter struct {
	http.ResponseWriter
	length, status int
	internalErr    error
}

func (w *wideResponseWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
}

func (w *wideResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.length += n
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return n, err
}

type API struct {
	router      *mux.Router
	scrapes     scrapeService
	scrapers    resolver
	productRepo productRepository.IRepository
	reviewRepo  reviewRepository.IRepository
	classifier  classifier.Classifier
}

func New(
	scrapes scrapeService,
	scrapers resolver,
	productRepo productRepository.IRepository,
	reviewRepo reviewRepository.IRepository,
	classifier classifier.Classifier) *API {

	api := API{
		router:      mux.NewRouter(),
		scrapes:     scrapes,
		scrapers:    scrapers,
		productRepo: productRepo,
		reviewRepo:  reviewRepo,
		classifier:  classifier,
	}
	api.endpoints()
	return &api
}

func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

func (api *API) endpoints() {
	api.router.Use(
		api.requestIDMiddleware,
		api.wideEventLogMiddleware,
		api.closerMiddleware,
		api.headersMiddleware,
	)

	v1 := api.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/products/scrape", api.handleScrape()).Methods(http.MethodPost)
	v1.HandleFunc("/products", api.handleProductRegister()).Methods(http.MethodPost)
	v1.HandleFunc("/products/{productId}/reviews", api.handleProductReviews()).Methods(http.MethodGet)
	v1.HandleFunc("/sentiment/analyze", api.handleAnalyze()).Methods(http.MethodPost)
	api.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}).Methods(http.MethodGet)
}

// closerMiddleware drains and closes the request body so the connection can be reused.
func (api *API) closerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	})
}

// requestIDMiddleware takes the X-Request-Id header or generates one.
func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestID, rid)))
	})
}

func (api *API) wideEventLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wideWriter := &wideResponseWriter{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(wideWriter, r)

		addr, _, _ := net.SplitHostPort(r.RemoteAddr)
		rid, _ := r.Context().Value(requestID).(string)
		log.Info().
			Str("request_id", rid).
			Int("status_code", wideWriter.status).
			Int("response_length", wideWriter.length).
			Int64("content_length", r.ContentLength).
			Str("method", r.Method).
			Str("remote_addr", addr).
			Str("uri", r.RequestURI).
			Dur("elapsed", time.Since(start)).
			AnErr("internal_error", wideWriter.internalErr).
			Msg("request received")
	})
}

func (api *API) headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (api *API) WriteJSONError(w http.ResponseWriter, err error, code int) {
	if wrw, ok := w.(*wideResponseWriter); ok {
		wrw.internalErr = err
	}
	w.WriteHeader(code)
	if code == http.StatusInternalServerError {
		err = ErrInternal
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
}

func (api *API) WriteJSON(w http.ResponseWriter, data any, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

type scrapeResponse struct {
	Success bool `json:"success"`
	ingestion.Result
	ClassificationError string `json:"classificationError,omitempty"`
}

func (api *API) handleScrape() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestion.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteJSONError(w, fmt.Errorf("%w: %v", ErrBadInput, err), http.StatusBadRequest)
			return
		}
		req.Platform = model.Platform(strings.ToLower(string(req.Platform)))
		if req.Platform == "" {
			req.Platform = model.PlatformInstagram
		}
		if err := api.validateSource(req.Url, req.Platform); err != nil {
			api.WriteJSONError(w, err, http.StatusBadRequest)
			return
		}

		result, err := api.scrapes.Scrape(r.Context(), req)
		if err != nil {
			if ierr.IsScrapeFailure(err) {
				api.WriteJSONError(w, err, http.StatusBadGateway)
				return
			}
			api.WriteJSONError(w, err, http.StatusInternalServerError)
			return
		}

		resp := scrapeResponse{Success: true, Result: result}
		if result.ClassifyErr != nil {
			resp.ClassificationError = result.ClassifyErr.Error()
		}
		api.WriteJSON(w, resp, http.StatusOK)
	}
}

type registerRequest struct {
	Url      string         `json:"url"`
	Platform model.Platform `json:"platform"`
	Name     string         `json:"name"`
}

func (api *API) handleProductRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteJSONError(w, fmt.Errorf("%w: %v", ErrBadInput, err), http.StatusBadRequest)
			return
		}
		req.Platform = model.Platform(strings.ToLower(string(req.Platform)))
		if err := api.validateSource(req.Url, req.Platform); err != nil {
			api.WriteJSONError(w, err, http.StatusBadRequest)
			return
		}

		product, err := Register(r.Context(), api.scrapers, api.productRepo, req.Url, req.Platform, req.Name)
		if errors.Is(err, ierr.AlreadyExists) {
			api.WriteJSONError(w, fmt.Errorf("product already registered: %s", product.Id), http.StatusConflict)
			return
		}
		if err != nil {
			api.WriteJSONError(w, err, http.StatusInternalServerError)
			return
		}

		api.WriteJSON(w, map[string]any{"success": true, "product": product}, http.StatusCreated)
	}
}

func (api *API) validateSource(url string, platform model.Platform) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: missing url", ErrBadInput)
	}
	if !platform.Valid() {
		return fmt.Errorf("%w: unsupported platform %q", ErrBadInput, platform)
	}
	s, err := api.scrapers.Resolve(platform)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	if _, err := s.PostID(url); err != nil {
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	return nil
}

// Register stores a product without scraping it; the backfill handler runs its first
// ingestion.
func Register(ctx context.Context, scrapers resolver, productRepo productRepository.IRepository, url string, platform model.Platform, name string) (model.Product, error) {
	s, err := scrapers.Resolve(platform)
	if err != nil {
		return model.Product{}, err
	}
	postId, err := s.PostID(url)
	if err != nil {
		return model.Product{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("%s %s", platform, postId)
	}

	return productRepo.Create(ctx, model.Product{
		Name:              strings.TrimSpace(name),
		Url:               strings.TrimSpace(url),
		Platform:          platform,
		PlatformProductId: postId,
		ScrapeStatus:      model.ScrapeStatusPending,
		AwaitingBackfill:  true,
	})
}

type productReviewsResponse struct {
	Success      bool           `json:"success"`
	Product      model.Product  `json:"product"`
	Reviews      []model.Review `json:"reviews"`
	TotalReviews int            `json:"totalReviews"`
}

func (api *API) handleProductReviews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productId := mux.Vars(r)["productId"]

		ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
		defer cancel()

		product, err := api.productRepo.GetById(ctx, productId)
		if errors.Is(err, ierr.NotFound) {
			api.WriteJSONError(w, ErrNotFound, http.StatusNotFound)
			return
		}
		if err != nil {
			api.WriteJSONError(w, err, http.StatusInternalServerError)
			return
		}

		reviews, err := api.reviewRepo.ListByProduct(ctx, productId)
		if err != nil {
			api.WriteJSONError(w, err, http.StatusInternalServerError)
			return
		}
		sort.SliceStable(reviews, func(i, j int) bool {
			return reviews[i].CreatedAtPlatform.After(reviews[j].CreatedAtPlatform)
		})

		api.WriteJSON(w, productReviewsResponse{
			Success:      true,
			Product:      *product,
			Reviews:      reviews,
			TotalReviews: len(reviews),
		}, http.StatusOK)
	}
}

type analyzeRequest struct {
	Responses json.RawMessage `json:"responses"`
}

type analyzeItem struct {
	Text       string          `json:"text"`
	Sentiment  model.Sentiment `json:"sentiment"`
	Confidence float64         `json:"confidence"`
}

func (api *API) handleAnalyze() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteJSONError(w, fmt.Errorf("%w: %v", ErrBadInput, err), http.StatusBadRequest)
			return
		}

		var texts []string
		if len(req.Responses) == 0 || json.Unmarshal(req.Responses, &texts) != nil || texts == nil {
			api.WriteJSONError(w, ErrNoResponse, http.StatusBadRequest)
			return
		}

		results, err := api.classifier.Classify(r.Context(), texts)
		if err != nil {
			log.Error().Err(err).Int("texts", len(texts)).Msg("sentiment analysis failed")
			api.WriteJSONError(w, err, http.StatusInternalServerError)
			return
		}

		data := make([]analyzeItem, 0, len(results))
		for i, res := range results {
			data = append(data, analyzeItem{Text: texts[i], Sentiment: res.Label, Confidence: res.Confidence})
		}
		api.WriteJSON(w, map[string]any{"success": true, "data": data}, http.StatusOK)
	}
}
