package viralfinder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"viral-finder/agents/viral-finder/youtube"
	"viral-finder/internal/models"
	"viral-finder/shared/apierr"
	"viral-finder/shared/config"
	"viral-finder/shared/email"
	"viral-finder/shared/scheduler"
	"viral-finder/shared/storage"

	"github.com/rs/zerolog/log"
)

// WatchMetrics represents the metrics collected during a watch run
type WatchMetrics struct {
	Keywords       int  `json:"keywords"`
	FailedKeywords int  `json:"failed_keywords"`
	VideosFound    int  `json:"videos_found"`
	AboveThreshold int  `json:"above_threshold"`
	Skipped        int  `json:"skipped"`
	NewVideos      int  `json:"new_videos"`
	EmailSent      bool `json:"email_sent"`
}

// GetSummary implements the scheduler.Metrics interface
func (m WatchMetrics) GetSummary() string {
	return fmt.Sprintf("checked %d keywords, found %d videos, reported %d new above threshold",
		m.Keywords, m.VideosFound, m.NewVideos)
}

type DigestSender interface {
	SendDigest(report *models.DigestReport) error
}

type ReportTracker interface {
	IsReported(videoID string) bool
	MarkReported(videoIDs []string) error
	Count() int
}

// WatchAgent implements the scheduler.Agent interface. Each run searches every
// configured keyword and mails the videos that cleared the threshold and were not
// reported recently.
type WatchAgent struct {
	config      *config.Config
	credentials models.CredentialPair
	discoverer  Discoverer
	emailSender DigestSender
	tracker     ReportTracker
	now         func() time.Time
}

var _ scheduler.Agent = (*WatchAgent)(nil)

func NewWatchAgent(cfg *config.Config, creds models.CredentialPair) *WatchAgent {
	return &WatchAgent{
		config:      cfg,
		credentials: creds,
		now:         time.Now,
	}
}

func (w *WatchAgent) Name() string {
	return "Viral Keyword Watch"
}

func (w *WatchAgent) Initialize() error {
	log.Info().Msgf("Initializing %s...", w.Name())

	if _, err := models.ParseDuration(w.config.Watch.Duration); err != nil {
		return fmt.Errorf("invalid watch duration: %w", err)
	}

	if w.discoverer == nil {
		w.discoverer = youtube.NewClient(&w.config.YouTube)
		log.Debug().Msg("YouTube client initialized")
	}

	if w.emailSender == nil {
		w.emailSender = email.NewSender(&w.config.Email)
		log.Debug().Msg("Email sender initialized")
	}

	if w.tracker == nil {
		maxAge := time.Duration(w.config.Watch.RememberDays) * 24 * time.Hour
		tracker, err := storage.NewVideoTracker(w.config.Storage.DataDir, maxAge)
		if err != nil {
			return fmt.Errorf("failed to create video tracker: %w", err)
		}
		w.tracker = tracker
		log.Info().Msgf("Video tracker initialized (%d videos remembered)", tracker.Count())
	}

	return nil
}

func (w *WatchAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()

	if strings.TrimSpace(w.credentials.YouTubeAPIKey) == "" {
		return &apierr.MissingCredentialError{Service: apierr.ServiceYouTube}
	}

	facet, err := models.ParseDuration(w.config.Watch.Duration)
	if err != nil {
		return err
	}

	metrics := WatchMetrics{Keywords: len(w.config.Watch.Keywords)}
	report := &models.DigestReport{Date: w.now()}
	seen := make(map[string]bool)
	var lastErr error

	for _, keyword := range w.config.Watch.Keywords {
		videos, err := w.discoverer.Discover(ctx, keyword, facet, w.credentials)
		if err != nil {
			log.Warn().Err(err).Msgf("Search failed for keyword %q", keyword)
			metrics.FailedKeywords++
			lastErr = err
			continue
		}
		metrics.VideosFound += len(videos)

		section := models.DigestSection{Keyword: keyword}
		for _, v := range FilterByScore(videos, w.config.Watch.MinViralScore) {
			metrics.AboveThreshold++
			if seen[v.ID] || w.tracker.IsReported(v.ID) {
				metrics.Skipped++
				continue
			}
			seen[v.ID] = true
			section.Videos = append(section.Videos, v)
		}

		log.Info().Msgf("Keyword %q: %d videos, %d new above %.1f", keyword, len(videos), len(section.Videos), w.config.Watch.MinViralScore)
		if len(section.Videos) > 0 {
			report.Sections = append(report.Sections, section)
			metrics.NewVideos += len(section.Videos)
		}
	}

	if metrics.Keywords > 0 && metrics.FailedKeywords == metrics.Keywords {
		return fmt.Errorf("all %d keyword searches failed: %w", metrics.Keywords, lastErr)
	}

	report.Total = metrics.VideosFound
	report.Selected = metrics.NewVideos

	if report.Selected > 0 {
		log.Info().Msgf("Sending digest with %d videos", report.Selected)
		if err := w.emailSender.SendDigest(report); err != nil {
			return fmt.Errorf("failed to send digest email: %w", err)
		}
		metrics.EmailSent = true

		var ids []string
		for _, section := range report.Sections {
			for _, v := range section.Videos {
				ids = append(ids, v.ID)
			}
		}
		if err := w.tracker.MarkReported(ids); err != nil {
			log.Warn().Err(err).Msg("Failed to remember reported videos")
		}
	} else {
		log.Info().Msg("No new videos above threshold, skipping email")
	}

	elapsed := time.Since(startTime)
	if metrics.FailedKeywords > 0 {
		events.OnPartialFailure(
			fmt.Errorf("%d of %d keyword searches failed: %w", metrics.FailedKeywords, metrics.Keywords, lastErr),
			elapsed,
		)
	}
	events.OnSuccess(metrics, elapsed)
	return nil
}
