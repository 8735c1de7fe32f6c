package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-firestore-sentiment/internal/config"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"

	"github.com/rs/zerolog/log"
)

const notAvailable = "N/A"

// Instagram runs the Apify instagram comment actor synchronously and reads its dataset.
type Instagram struct {
	baseUrl string
	actor   string
	token   string
	http    *http.Client
}

var _ Scraper = (*Instagram)(nil)

func NewInstagram(cnf config.Apify, client *http.Client) *Instagram {
	if client == nil {
		// actor runs take minutes on large posts
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Instagram{
		baseUrl: strings.TrimSuffix(cnf.BaseUrl, "/"),
		actor:   cnf.Actor,
		token:   cnf.ApiToken,
		http:    client,
	}
}

func (s *Instagram) Platform() model.Platform {
	return model.PlatformInstagram
}

func (s *Instagram) PostID(ref string) (string, error) {
	u, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	for _, marker := range []string{"/p/", "/reel/"} {
		if id := segmentAfter(u.Path, marker); id != "" {
			return id, nil
		}
	}
	return "", ierr.NewScrapeFailure(ref, fmt.Errorf("not an instagram post url, must contain /p/"))
}

type apifyInput struct {
	DirectUrls   []string `json:"directUrls"`
	ResultsLimit int      `json:"resultsLimit"`
}

type apifyItem struct {
	OwnerUsername string `json:"ownerUsername"`
	Text          string `json:"text"`
	Timestamp     string `json:"timestamp"`
	LikesCount    int    `json:"likesCount"`
}

func (s *Instagram) Scrape(ctx context.Context, ref string, limit int) ([]model.RawComment, error) {
	if _, err := s.PostID(ref); err != nil {
		return nil, err
	}

	items, err := s.run(ctx, apifyInput{DirectUrls: []string{ref}, ResultsLimit: limit})
	if err != nil {
		return nil, ierr.NewScrapeFailure(ref, err)
	}
	log.Debug().Str("url", ref).Int("count", len(items)).Msg("instagram comments scraped")

	comments := make([]model.RawComment, 0, len(items))
	for _, item := range items {
		c := model.RawComment{
			Author:    item.OwnerUsername,
			Text:      item.Text,
			Timestamp: item.Timestamp,
			Likes:     item.LikesCount,
		}
		if c.Author == "" {
			c.Author = notAvailable
		} else {
			c.AuthorProfile = "https://www.instagram.com/" + c.Author + "/"
		}
		if c.Text == "" {
			c.Text = notAvailable
		}
		comments = append(comments, c)
	}

	return comments, nil
}

func (s *Instagram) run(ctx context.Context, input apifyInput) ([]apifyItem, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items?token=%s", s.baseUrl, s.actor, url.QueryEscape(s.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run actor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("apify returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	items := []apifyItem{}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode dataset items: %w", err)
	}
	return items, nil
}
