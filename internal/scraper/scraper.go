package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"
)

// Scraper fetches the comments of one source item. Failures are *errors.ScrapeFailure and
// nothing is retried internally.
type Scraper interface {
	Platform() model.Platform
	// PostID extracts the platform-native id from the source URL.
	PostID(ref string) (string, error)
	Scrape(ctx context.Context, ref string, limit int) ([]model.RawComment, error)
}

// Registry keeps a mapping from platforms to their scrapers.
type Registry struct {
	scrapers map[model.Platform]Scraper
}

func NewRegistry(scrapers ...Scraper) *Registry {
	r := &Registry{scrapers: map[model.Platform]Scraper{}}
	for _, s := range scrapers {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the scraper of its platform.
func (r *Registry) Register(s Scraper) {
	if r.scrapers == nil {
		r.scrapers = map[model.Platform]Scraper{}
	}
	r.scrapers[s.Platform()] = s
}

func (r *Registry) Resolve(platform model.Platform) (Scraper, error) {
	if s, ok := r.scrapers[platform]; ok {
		return s, nil
	}
	return nil, ierr.NewScrapeFailure(string(platform), fmt.Errorf("no scraper registered for platform %q", platform))
}

func (r *Registry) Platforms() []model.Platform {
	platforms := make([]model.Platform, 0, len(r.scrapers))
	for p := range r.scrapers {
		platforms = append(platforms, p)
	}
	return platforms
}

func parseRef(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, ierr.NewScrapeFailure(ref, err)
	}
	if u.Host == "" {
		return nil, ierr.NewScrapeFailure(ref, fmt.Errorf("not an absolute url"))
	}
	return u, nil
}

// segmentAfter returns the path segment that follows marker, e.g. "/p/" in "/p/ABC/".
func segmentAfter(path, marker string) string {
	i := strings.Index(path, marker)
	if i < 0 {
		return ""
	}
	rest := path[i+len(marker):]
	if j := strings.Index(rest, "/"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
