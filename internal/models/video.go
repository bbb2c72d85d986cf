package models

import (
	"fmt"
	"strings"
	"time"
)

// Duration is the search duration facet offered to the user.
type Duration string

const (
	DurationAny   Duration = "any"
	DurationShort Duration = "short"
	DurationLong  Duration = "long"
)

// ParseDuration accepts any, short or long (case-insensitive). An empty string means any.
func ParseDuration(s string) (Duration, error) {
	switch Duration(strings.ToLower(strings.TrimSpace(s))) {
	case "", DurationAny:
		return DurationAny, nil
	case DurationShort:
		return DurationShort, nil
	case DurationLong:
		return DurationLong, nil
	}
	return "", fmt.Errorf("invalid duration %q (want any, short or long)", s)
}

// VideoRecord is one discovered video enriched with statistics and its viral score.
type VideoRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Thumbnail       string    `json:"thumbnail"`
	PublishedAt     time.Time `json:"published_at"`
	ChannelID       string    `json:"channel_id"`
	ChannelTitle    string    `json:"channel_title"`
	ViewCount       int64     `json:"view_count"`
	LikeCount       int64     `json:"like_count"`
	CommentCount    int64     `json:"comment_count"`
	SubscriberCount int64     `json:"subscriber_count"`
	ViralScore      float64   `json:"viral_score"` // views / subscribers, 2 decimals
}

// URL returns the watch page of the video.
func (v VideoRecord) URL() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", v.ID)
}

type CommentRecord struct {
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	LikeCount   int64     `json:"like_count"`
	PublishedAt time.Time `json:"published_at"`
}

type ContentIdea struct {
	Title          string `json:"title"`
	Strategy       string `json:"strategy"`
	TargetAudience string `json:"targetAudience"`
}

// AnalysisResult is the structured insight produced for a single video.
type AnalysisResult struct {
	Summary             string        `json:"summary"`
	PainPoints          []string      `json:"painPoints"`
	TrendingKeywords    []string      `json:"trendingKeywords"`
	RecommendedKeywords []string      `json:"recommendedKeywords"`
	ContentIdeas        []ContentIdea `json:"contentIdeas"`
}

type ScriptSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ScriptOutline struct {
	Keyword  string          `json:"keyword"`
	Sections []ScriptSection `json:"sections"`
}

// CredentialPair holds the two API keys of the session.
type CredentialPair struct {
	YouTubeAPIKey string `json:"youtube_api_key"`
	GeminiAPIKey  string `json:"gemini_api_key"`
}

// DigestReport is the watch-mode e-mail payload.
type DigestReport struct {
	Date     time.Time       `json:"date"`
	Sections []DigestSection `json:"sections"`
	Total    int             `json:"total_found"`
	Selected int             `json:"selected"`
}

type DigestSection struct {
	Keyword string        `json:"keyword"`
	Videos  []VideoRecord `json:"videos"`
}
