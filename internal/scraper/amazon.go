package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-firestore-sentiment/internal/config"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	asinExpr    = regexp.MustCompile(`^[A-Z0-9]{10}$`)
	reviewDate  = regexp.MustCompile(`[A-Z][a-z]+ \d{1,2}, \d{4}`)
	ratingExpr  = regexp.MustCompile(`(\d+(?:\.\d+)?) out of`)
	helpfulExpr = regexp.MustCompile(`^([\d,]+|One) (?:person|people)`)
)

// Amazon scrapes the public product-reviews pages of a listing.
type Amazon struct {
	baseUrl   string
	userAgent string
	maxPages  int
	client    *http.Client
	// one page request per PageDelay across all scrapes
	limiter *rate.Limiter
}

var _ Scraper = (*Amazon)(nil)

func NewAmazon(cnf config.Amazon, client *http.Client) *Amazon {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	maxPages := cnf.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}
	limit := rate.Inf
	if cnf.PageDelay > 0 {
		limit = rate.Every(cnf.PageDelay)
	}
	return &Amazon{
		baseUrl:   strings.TrimSuffix(cnf.BaseUrl, "/"),
		userAgent: cnf.UserAgent,
		maxPages:  maxPages,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

func (s *Amazon) Platform() model.Platform {
	return model.PlatformAmazon
}

func (s *Amazon) PostID(ref string) (string, error) {
	u, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	for _, marker := range []string{"/dp/", "/gp/product/", "/product-reviews/"} {
		if asin := strings.ToUpper(segmentAfter(u.Path, marker)); asinExpr.MatchString(asin) {
			return asin, nil
		}
	}
	return "", ierr.NewScrapeFailure(ref, fmt.Errorf("no ASIN in amazon url"))
}

func (s *Amazon) Scrape(ctx context.Context, ref string, limit int) ([]model.RawComment, error) {
	asin, err := s.PostID(ref)
	if err != nil {
		return nil, err
	}

	comments := make([]model.RawComment, 0)
	for page := 1; page <= s.maxPages && len(comments) < limit; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, ierr.NewScrapeFailure(ref, err)
		}

		doc, err := s.fetchDocument(ctx, fmt.Sprintf("%s/product-reviews/%s?sortBy=recent&pageNumber=%d", s.baseUrl, asin, page))
		if err != nil {
			return nil, ierr.NewScrapeFailure(ref, err)
		}

		pageComments := extractReviews(doc, s.baseUrl)
		if len(pageComments) == 0 {
			break
		}
		for _, c := range pageComments {
			comments = append(comments, c)
			if len(comments) == limit {
				break
			}
		}
	}

	log.Debug().Str("asin", asin).Int("count", len(comments)).Msg("amazon reviews scraped")
	return comments, nil
}

func (s *Amazon) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

func extractReviews(doc *goquery.Document, baseUrl string) []model.RawComment {
	comments := make([]model.RawComment, 0)
	doc.Find(`[data-hook="review"]`).Each(func(_ int, sel *goquery.Selection) {
		text := cleanText(sel.Find(`[data-hook="review-body"]`).Text())
		if text == "" {
			return
		}

		c := model.RawComment{
			Author:    cleanText(sel.Find(".a-profile-name").First().Text()),
			Text:      text,
			Timestamp: reviewDate.FindString(sel.Find(`[data-hook="review-date"]`).Text()),
			Likes:     parseHelpful(sel.Find(`[data-hook="helpful-vote-statement"]`).Text()),
			Rating:    parseRating(sel.Find(`[data-hook="review-star-rating"], [data-hook="cmps-review-star-rating"]`).First().Text()),
		}
		if href, ok := sel.Find("a.a-profile").Attr("href"); ok && href != "" {
			if strings.HasPrefix(href, "/") {
				href = baseUrl + href
			}
			c.AuthorProfile = href
		}
		if c.Author == "" {
			c.Author = notAvailable
		}

		comments = append(comments, c)
	})
	return comments
}

func parseRating(s string) *float64 {
	m := ratingExpr.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	rating, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &rating
}

func parseHelpful(s string) int {
	m := helpfulExpr.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	if m[1] == "One" {
		return 1
	}
	n, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	return n
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
