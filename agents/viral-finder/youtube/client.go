package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"viral-finder/internal/models"
	"viral-finder/shared/apierr"
	"viral-finder/shared/config"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	searchPageSize  = 20
	commentPageSize = 50
	// ids per videos.list / channels.list call
	batchSize = 50
)

// ErrEmptyKeyword is returned when a search is attempted without a keyword.
var ErrEmptyKeyword = errors.New("search keyword is required")

// Client talks to the YouTube Data API on behalf of whichever key the caller supplies.
type Client struct {
	endpoint string
}

func NewClient(cfg *config.YouTubeConfig) *Client {
	c := &Client{}
	if cfg != nil {
		c.endpoint = cfg.Endpoint
	}
	return c
}

func (c *Client) newService(ctx context.Context, apiKey string) (*youtube.Service, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &apierr.MissingCredentialError{Service: apierr.ServiceYouTube}
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return service, nil
}

// Discover searches for keyword, joins per-video and per-channel statistics and
// returns the results ranked by viral score. Nothing is returned on partial failure.
func (c *Client) Discover(ctx context.Context, keyword string, duration models.Duration, creds models.CredentialPair) ([]models.VideoRecord, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}

	service, err := c.newService(ctx, creds.YouTubeAPIKey)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("Searching YouTube for %q (duration: %s)", keyword, duration)
	results, err := search(ctx, service, keyword, duration)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Info().Msgf("No videos found for %q", keyword)
		return []models.VideoRecord{}, nil
	}

	videoIDs, channelIDs := collectIDs(results)

	var (
		stats map[string]*youtube.VideoStatistics
		subs  map[string]uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = videoStatistics(gctx, service, videoIDs)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = channelSubscribers(gctx, service, channelIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	videos := rankVideos(results, stats, subs)
	log.Info().Msgf("Ranked %d videos from %d channels for %q", len(videos), len(channelIDs), keyword)
	return videos, nil
}

// FetchComments returns up to 50 top-level comments in relevance order. An error
// reported by YouTube (comments disabled, video not found) yields an empty list.
func (c *Client) FetchComments(ctx context.Context, videoID string, creds models.CredentialPair) ([]models.CommentRecord, error) {
	service, err := c.newService(ctx, creds.YouTubeAPIKey)
	if err != nil {
		return nil, err
	}

	resp, err := service.CommentThreads.List([]string{"snippet"}).
		VideoId(videoID).
		MaxResults(commentPageSize).
		Order("relevance").
		Context(ctx).
		Do()
	if err != nil {
		classified := classifyError("comment threads", err)
		if apierr.IsUpstream(classified) {
			log.Warn().Err(classified).Msgf("Comments unavailable for video %s", videoID)
			return []models.CommentRecord{}, nil
		}
		return nil, classified
	}

	comments := make([]models.CommentRecord, 0, len(resp.Items))
	for _, thread := range resp.Items {
		if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil || thread.Snippet.TopLevelComment.Snippet == nil {
			continue
		}
		snippet := thread.Snippet.TopLevelComment.Snippet
		comments = append(comments, models.CommentRecord{
			Author:      snippet.AuthorDisplayName,
			Text:        snippet.TextDisplay,
			LikeCount:   snippet.LikeCount,
			PublishedAt: parseTime(snippet.PublishedAt),
		})
	}

	log.Debug().Msgf("Fetched %d comments for video %s", len(comments), videoID)
	return comments, nil
}

func search(ctx context.Context, service *youtube.Service, keyword string, duration models.Duration) ([]*youtube.SearchResult, error) {
	call := service.Search.List([]string{"snippet"}).
		Q(keyword).
		Type("video").
		MaxResults(searchPageSize)
	if facet := durationFacet(duration); facet != "" {
		call = call.VideoDuration(facet)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, classifyError("search", err)
	}

	results := make([]*youtube.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		if item.Snippet == nil {
			return nil, &apierr.UpstreamError{
				Service: apierr.ServiceYouTube,
				Err:     fmt.Errorf("search result %s has no snippet", item.Id.VideoId),
			}
		}
		results = append(results, item)
	}
	return results, nil
}

// durationFacet maps the UI duration onto the search videoDuration parameter.
// "any" means the parameter is omitted.
func durationFacet(d models.Duration) string {
	switch d {
	case models.DurationShort:
		return "short"
	case models.DurationLong:
		return "long"
	}
	return ""
}

func collectIDs(results []*youtube.SearchResult) (videoIDs, channelIDs []string) {
	seen := make(map[string]bool)
	for _, item := range results {
		videoIDs = append(videoIDs, item.Id.VideoId)
		if id := item.Snippet.ChannelId; id != "" && !seen[id] {
			seen[id] = true
			channelIDs = append(channelIDs, id)
		}
	}
	return videoIDs, channelIDs
}

func videoStatistics(ctx context.Context, service *youtube.Service, ids []string) (map[string]*youtube.VideoStatistics, error) {
	stats := make(map[string]*youtube.VideoStatistics, len(ids))
	for _, batch := range batches(ids) {
		resp, err := service.Videos.List([]string{"statistics"}).Id(batch...).Context(ctx).Do()
		if err != nil {
			return nil, classifyError("video statistics", err)
		}
		for _, item := range resp.Items {
			if item.Statistics != nil {
				stats[item.Id] = item.Statistics
			}
		}
	}
	return stats, nil
}

func channelSubscribers(ctx context.Context, service *youtube.Service, ids []string) (map[string]uint64, error) {
	subs := make(map[string]uint64, len(ids))
	for _, batch := range batches(ids) {
		resp, err := service.Channels.List([]string{"statistics"}).Id(batch...).Context(ctx).Do()
		if err != nil {
			return nil, classifyError("channel statistics", err)
		}
		for _, item := range resp.Items {
			if item.Statistics != nil && !item.Statistics.HiddenSubscriberCount {
				subs[item.Id] = item.Statistics.SubscriberCount
			}
		}
	}
	return subs, nil
}

func batches(ids []string) [][]string {
	var out [][]string
	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[i:end])
	}
	return out
}

// classifyError turns a client-library error into the shared taxonomy. An explicit
// error payload keeps its message verbatim.
func classifyError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = fmt.Sprintf("YouTube %s request failed with status %d", op, gerr.Code)
		}
		return &apierr.UpstreamError{Service: apierr.ServiceYouTube, Message: msg, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &apierr.TransportError{Service: apierr.ServiceYouTube, Err: err}
	}

	return &apierr.UpstreamError{Service: apierr.ServiceYouTube, Err: fmt.Errorf("failed to decode %s response: %w", op, err)}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
