package viralfinder

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"viral-finder/internal/models"
	"viral-finder/shared/apierr"

	"github.com/rs/zerolog/log"
)

const (
	MinScoreFloor   = 0.0
	MinScoreCeiling = 5.0
	MinScoreStep    = 0.5
	DefaultMinScore = 1.0
)

var (
	// ErrBusy is returned when the identical action is already in flight.
	ErrBusy = errors.New("operation already in progress")

	// ErrStale is returned when a newer action superseded this one; its result was dropped.
	ErrStale = errors.New("result superseded by a newer request")

	ErrVideoNotFound = errors.New("video not found in current results")
	ErrEmptyKeyword  = errors.New("keyword is required")
)

type Discoverer interface {
	Discover(ctx context.Context, keyword string, duration models.Duration, creds models.CredentialPair) ([]models.VideoRecord, error)
}

type CommentFetcher interface {
	FetchComments(ctx context.Context, videoID string, creds models.CredentialPair) ([]models.CommentRecord, error)
}

type InsightGenerator interface {
	Analyze(ctx context.Context, video models.VideoRecord, comments []models.CommentRecord, creds models.CredentialPair) (*models.AnalysisResult, error)
	Outline(ctx context.Context, keyword, referenceTitle string, creds models.CredentialPair) (*models.ScriptOutline, error)
}

type CredentialSaver interface {
	SaveYouTubeKey(key string) error
	SaveGeminiKey(key string) error
}

// State is one immutable snapshot of the application. Analysis and Outline point at
// results that are never modified after they are stored.
type State struct {
	Version        uint64                 `json:"version"`
	Keyword        string                 `json:"keyword"`
	Duration       models.Duration        `json:"duration"`
	MinViralScore  float64                `json:"min_viral_score"`
	Videos         []models.VideoRecord   `json:"videos"`
	Searching      bool                   `json:"searching"`
	Analyzing      bool                   `json:"analyzing"`
	Outlining      bool                   `json:"outlining"`
	Selected       *models.VideoRecord    `json:"selected,omitempty"`
	CommentCount   int                    `json:"comment_count"`
	Analysis       *models.AnalysisResult `json:"analysis,omitempty"`
	OutlineKeyword string                 `json:"outline_keyword,omitempty"`
	Outline        *models.ScriptOutline  `json:"outline,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Credentials    models.CredentialPair  `json:"-"`
}

// Visible is the fetched list narrowed by the minimum score, without a new search.
func (s State) Visible() []models.VideoRecord {
	return FilterByScore(s.Videos, s.MinViralScore)
}

// Busy reports whether any action is in flight.
func (s State) Busy() bool {
	return s.Searching || s.Analyzing || s.Outlining
}

// FilterByScore keeps videos scoring at least minScore, in their original order.
func FilterByScore(videos []models.VideoRecord, minScore float64) []models.VideoRecord {
	filtered := make([]models.VideoRecord, 0, len(videos))
	for _, v := range videos {
		if v.ViralScore >= minScore {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

type searchRequest struct {
	keyword  string
	duration models.Duration
}

// Controller owns the application state. Every action handler mutates it under the
// lock and never holds the lock across a network call.
type Controller struct {
	discoverer Discoverer
	comments   CommentFetcher
	insights   InsightGenerator
	keys       CredentialSaver

	mu              sync.Mutex
	state           State
	searchSeq       uint64
	analyzeSeq      uint64
	outlineSeq      uint64
	inflightSearch  searchRequest
	inflightVideo   string
	inflightKeyword string
}

func NewController(d Discoverer, c CommentFetcher, i InsightGenerator, keys CredentialSaver, creds models.CredentialPair) *Controller {
	return &Controller{
		discoverer: d,
		comments:   c,
		insights:   i,
		keys:       keys,
		state: State{
			Duration:      models.DurationAny,
			MinViralScore: DefaultMinScore,
			Videos:        []models.VideoRecord{},
			Credentials:   creds,
		},
	}
}

// Snapshot returns a copy that later actions will not modify.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Videos = append([]models.VideoRecord(nil), c.state.Videos...)
	if c.state.Selected != nil {
		selected := *c.state.Selected
		s.Selected = &selected
	}
	return s
}

// commit applies fn and bumps the version; callers hold c.mu.
func (c *Controller) commit(fn func(s *State)) {
	fn(&c.state)
	c.state.Version++
}

// Search runs discovery for keyword and replaces the result list. A search for the
// same keyword and duration that is already running is rejected with ErrBusy; a
// different one supersedes it.
func (c *Controller) Search(ctx context.Context, keyword string, duration models.Duration) error {
	keyword = strings.TrimSpace(keyword)
	if duration == "" {
		duration = models.DurationAny
	}

	c.mu.Lock()
	if keyword == "" {
		c.mu.Unlock()
		return ErrEmptyKeyword
	}
	if c.state.Credentials.YouTubeAPIKey == "" {
		err := &apierr.MissingCredentialError{Service: apierr.ServiceYouTube}
		c.commit(func(s *State) { s.Error = err.Error() })
		c.mu.Unlock()
		return err
	}

	req := searchRequest{keyword: keyword, duration: duration}
	if c.state.Searching && c.inflightSearch == req {
		c.mu.Unlock()
		return ErrBusy
	}

	c.searchSeq++
	seq := c.searchSeq
	c.inflightSearch = req
	creds := c.state.Credentials
	c.commit(func(s *State) {
		s.Keyword = keyword
		s.Duration = duration
		s.Searching = true
		s.Error = ""
	})
	c.mu.Unlock()

	videos, err := c.discoverer.Discover(ctx, keyword, duration, creds)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.searchSeq {
		log.Debug().Msgf("Dropping stale search result for %q", keyword)
		return ErrStale
	}

	c.commit(func(s *State) {
		s.Searching = false
		if err != nil {
			s.Error = err.Error()
			return
		}
		s.Videos = videos
		s.Error = ""
	})
	return err
}

// Analyze selects videoID from the current results, fetches its comments and asks
// for an analysis.
func (c *Controller) Analyze(ctx context.Context, videoID string) error {
	c.mu.Lock()

	var video *models.VideoRecord
	for i := range c.state.Videos {
		if c.state.Videos[i].ID == videoID {
			v := c.state.Videos[i]
			video = &v
			break
		}
	}
	if video == nil {
		c.mu.Unlock()
		return ErrVideoNotFound
	}
	if c.state.Analyzing && c.inflightVideo == videoID {
		c.mu.Unlock()
		return ErrBusy
	}

	c.analyzeSeq++
	c.outlineSeq++
	seq := c.analyzeSeq
	c.inflightVideo = videoID
	creds := c.state.Credentials
	c.commit(func(s *State) {
		s.Selected = video
		s.CommentCount = 0
		s.Analysis = nil
		s.Outline = nil
		s.OutlineKeyword = ""
		s.Outlining = false
		s.Analyzing = true
		s.Error = ""
	})
	c.mu.Unlock()

	comments, err := c.comments.FetchComments(ctx, videoID, creds)
	var result *models.AnalysisResult
	if err == nil {
		result, err = c.insights.Analyze(ctx, *video, comments, creds)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.analyzeSeq {
		log.Debug().Msgf("Dropping stale analysis for video %s", videoID)
		return ErrStale
	}

	c.commit(func(s *State) {
		s.Analyzing = false
		s.CommentCount = len(comments)
		if err != nil {
			s.Error = err.Error()
			return
		}
		s.Analysis = result
		s.Error = ""
	})
	return err
}

// Outline generates a script outline for keyword, using the selected video's title
// as the reference.
func (c *Controller) Outline(ctx context.Context, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return ErrEmptyKeyword
	}

	c.mu.Lock()
	if c.state.Outlining && c.inflightKeyword == keyword {
		c.mu.Unlock()
		return ErrBusy
	}

	var referenceTitle string
	if c.state.Selected != nil {
		referenceTitle = c.state.Selected.Title
	}

	c.outlineSeq++
	seq := c.outlineSeq
	c.inflightKeyword = keyword
	creds := c.state.Credentials
	c.commit(func(s *State) {
		s.OutlineKeyword = keyword
		s.Outline = nil
		s.Outlining = true
		s.Error = ""
	})
	c.mu.Unlock()

	outline, err := c.insights.Outline(ctx, keyword, referenceTitle, creds)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.outlineSeq {
		log.Debug().Msgf("Dropping stale outline for %q", keyword)
		return ErrStale
	}

	c.commit(func(s *State) {
		s.Outlining = false
		if err != nil {
			s.Error = err.Error()
			return
		}
		s.Outline = outline
		s.Error = ""
	})
	return err
}

// SetMinViralScore clamps v to [0, 5] and snaps it to the 0.5 grid.
func (c *Controller) SetMinViralScore(v float64) {
	if math.IsNaN(v) {
		v = DefaultMinScore
	}
	v = math.Max(MinScoreFloor, math.Min(MinScoreCeiling, v))
	v = math.Round(v/MinScoreStep) * MinScoreStep

	c.mu.Lock()
	defer c.mu.Unlock()
	c.commit(func(s *State) { s.MinViralScore = v })
}

func (c *Controller) SetYouTubeKey(key string) error {
	return c.setKey(key, func(s *State) { s.Credentials.YouTubeAPIKey = key }, c.keys.SaveYouTubeKey)
}

func (c *Controller) SetGeminiKey(key string) error {
	return c.setKey(key, func(s *State) { s.Credentials.GeminiAPIKey = key }, c.keys.SaveGeminiKey)
}

func (c *Controller) setKey(key string, apply func(s *State), save func(string) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commit(apply)
	if err := save(key); err != nil {
		c.commit(func(s *State) { s.Error = "failed to save API key: " + err.Error() })
		return err
	}
	return nil
}

func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commit(func(s *State) { s.Error = "" })
}

// CloseDetail clears the selection; analyses and outlines still in flight are dropped.
func (c *Controller) CloseDetail() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.analyzeSeq++
	c.outlineSeq++
	c.commit(func(s *State) {
		s.Selected = nil
		s.CommentCount = 0
		s.Analysis = nil
		s.Outline = nil
		s.OutlineKeyword = ""
		s.Analyzing = false
		s.Outlining = false
	})
}
