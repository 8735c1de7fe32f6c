package scraper

import (
	"context"
	"fmt"
	"strings"

	"go-firestore-sentiment/internal/config"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// the API caps a commentThreads page at 100 items
const youtubePageSize = 100

var youtubeScopes = []string{youtube.YoutubeReadonlyScope}

// Youtube reads top-level comment threads of a video through the Data API v3.
type Youtube struct {
	service *youtube.Service
}

var _ Scraper = (*Youtube)(nil)

func NewYoutube(ctx context.Context, cnf config.Youtube, opts ...option.ClientOption) (*Youtube, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(cnf.ApiKey), option.WithScopes(youtubeScopes...)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Youtube{service: service}, nil
}

func (s *Youtube) Platform() model.Platform {
	return model.PlatformYoutube
}

func (s *Youtube) PostID(ref string) (string, error) {
	u, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case strings.HasSuffix(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			id = v
		} else {
			id = segmentAfter(u.Path, "/shorts/")
		}
	}

	if id == "" || strings.Contains(id, "/") {
		return "", ierr.NewScrapeFailure(ref, fmt.Errorf("not a youtube video url"))
	}
	return id, nil
}

func (s *Youtube) Scrape(ctx context.Context, ref string, limit int) ([]model.RawComment, error) {
	videoId, err := s.PostID(ref)
	if err != nil {
		return nil, err
	}

	comments := make([]model.RawComment, 0)
	pageToken := ""
	for len(comments) < limit {
		call := s.service.CommentThreads.List([]string{"snippet"}).
			VideoId(videoId).
			Order("time").
			TextFormat("plainText").
			MaxResults(int64(min(youtubePageSize, limit-len(comments)))).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, ierr.NewScrapeFailure(ref, fmt.Errorf("list comment threads: %w", err))
		}

		for _, item := range response.Items {
			if item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
				continue
			}
			c := item.Snippet.TopLevelComment.Snippet
			comments = append(comments, model.RawComment{
				Author:        c.AuthorDisplayName,
				AuthorProfile: c.AuthorChannelUrl,
				Text:          c.TextOriginal,
				Timestamp:     c.PublishedAt,
				Likes:         int(c.LikeCount),
			})
			if len(comments) == limit {
				break
			}
		}

		if response.NextPageToken == "" || len(response.Items) == 0 {
			break
		}
		pageToken = response.NextPageToken
	}

	log.Debug().Str("videoId", videoId).Int("count", len(comments)).Msg("youtube comments scraped")
	return comments, nil
}
