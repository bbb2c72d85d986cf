package youtube

import (
	"html"
	"math"
	"sort"

	"viral-finder/internal/models"

	"google.golang.org/api/youtube/v3"
)

// ViralScore is views per subscriber rounded to two decimals. Unknown or zero
// subscriber counts count as one subscriber so the ratio stays finite.
func ViralScore(views, subscribers int64) float64 {
	if views < 0 {
		views = 0
	}
	if subscribers < 1 {
		subscribers = 1
	}
	return math.Round(float64(views)/float64(subscribers)*100) / 100
}

// rankVideos joins search results with their statistics and sorts them by viral
// score, highest first. Ties keep search order.
func rankVideos(results []*youtube.SearchResult, stats map[string]*youtube.VideoStatistics, subs map[string]uint64) []models.VideoRecord {
	videos := make([]models.VideoRecord, 0, len(results))
	for _, item := range results {
		video := models.VideoRecord{
			ID:           item.Id.VideoId,
			Title:        html.UnescapeString(item.Snippet.Title),
			Description:  html.UnescapeString(item.Snippet.Description),
			Thumbnail:    thumbnailURL(item.Snippet.Thumbnails),
			PublishedAt:  parseTime(item.Snippet.PublishedAt),
			ChannelID:    item.Snippet.ChannelId,
			ChannelTitle: html.UnescapeString(item.Snippet.ChannelTitle),
		}

		if s, ok := stats[video.ID]; ok {
			video.ViewCount = clampInt64(s.ViewCount)
			video.LikeCount = clampInt64(s.LikeCount)
			video.CommentCount = clampInt64(s.CommentCount)
		}

		video.SubscriberCount = clampInt64(subs[video.ChannelID])
		if video.SubscriberCount < 1 {
			video.SubscriberCount = 1
		}

		video.ViralScore = ViralScore(video.ViewCount, video.SubscriberCount)
		videos = append(videos, video)
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].ViralScore > videos[j].ViralScore
	})
	return videos
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
