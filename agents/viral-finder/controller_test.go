package viralfinder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"viral-finder/internal/models"
	"viral-finder/shared/apierr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	results map[string][]models.VideoRecord
	gates   map[string]chan struct{}
	errs    map[string]error
	err     error
	calls   []string
}

func (f *fakeDiscoverer) Discover(ctx context.Context, keyword string, duration models.Duration, creds models.CredentialPair) ([]models.VideoRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, keyword)
	gate := f.gates[keyword]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err := f.errs[keyword]; err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[keyword], nil
}

type fakeComments struct {
	comments []models.CommentRecord
	err      error
}

func (f *fakeComments) FetchComments(ctx context.Context, videoID string, creds models.CredentialPair) ([]models.CommentRecord, error) {
	return f.comments, f.err
}

type fakeInsights struct {
	analysis     *models.AnalysisResult
	outline      *models.ScriptOutline
	err          error
	gate         chan struct{}
	lastRefTitle string
}

func (f *fakeInsights) Analyze(ctx context.Context, video models.VideoRecord, comments []models.CommentRecord, creds models.CredentialPair) (*models.AnalysisResult, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.analysis, f.err
}

func (f *fakeInsights) Outline(ctx context.Context, keyword, referenceTitle string, creds models.CredentialPair) (*models.ScriptOutline, error) {
	f.lastRefTitle = referenceTitle
	return f.outline, f.err
}

type memoryKeys struct {
	youtube, gemini string
	err             error
}

func (m *memoryKeys) SaveYouTubeKey(key string) error {
	if m.err != nil {
		return m.err
	}
	m.youtube = key
	return nil
}

func (m *memoryKeys) SaveGeminiKey(key string) error {
	if m.err != nil {
		return m.err
	}
	m.gemini = key
	return nil
}

func scored(id string, score float64) models.VideoRecord {
	return models.VideoRecord{ID: id, Title: "title " + id, ViralScore: score}
}

func newTestController(d *fakeDiscoverer, i *fakeInsights) *Controller {
	if d == nil {
		d = &fakeDiscoverer{}
	}
	if i == nil {
		i = &fakeInsights{}
	}
	return NewController(d, &fakeComments{}, i, &memoryKeys{}, models.CredentialPair{YouTubeAPIKey: "yt"})
}

func TestFilterByScore(t *testing.T) {
	videos := []models.VideoRecord{scored("a", 0.2), scored("b", 1.3), scored("c", 2.0), scored("d", 0.6)}

	filtered := FilterByScore(videos, 1.0)
	require.Len(t, filtered, 2)
	assert.Equal(t, "b", filtered[0].ID)
	assert.Equal(t, "c", filtered[1].ID)

	assert.Len(t, FilterByScore(videos, 0), 4)
	assert.Empty(t, FilterByScore(videos, 5))
	assert.NotNil(t, FilterByScore(nil, 1))
}

func TestSearch(t *testing.T) {
	d := &fakeDiscoverer{results: map[string][]models.VideoRecord{
		"camping": {scored("b", 2.0), scored("a", 0.5)},
	}}
	c := newTestController(d, nil)

	err := c.Search(context.Background(), "  camping ", models.DurationShort)
	require.NoError(t, err)

	s := c.Snapshot()
	assert.Equal(t, "camping", s.Keyword)
	assert.Equal(t, models.DurationShort, s.Duration)
	assert.False(t, s.Searching)
	assert.Empty(t, s.Error)
	assert.Len(t, s.Videos, 2)

	// default threshold 1.0 hides the 0.5 video without a new search
	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "b", visible[0].ID)

	c.SetMinViralScore(0)
	assert.Len(t, c.Snapshot().Visible(), 2)
	assert.Equal(t, []string{"camping"}, d.calls)
}

func TestSearchEmptyKeyword(t *testing.T) {
	d := &fakeDiscoverer{}
	c := newTestController(d, nil)

	err := c.Search(context.Background(), "   ", models.DurationAny)
	assert.ErrorIs(t, err, ErrEmptyKeyword)
	assert.Empty(t, d.calls)
}

func TestSearchMissingYouTubeKey(t *testing.T) {
	d := &fakeDiscoverer{}
	c := NewController(d, &fakeComments{}, &fakeInsights{}, &memoryKeys{}, models.CredentialPair{})

	err := c.Search(context.Background(), "camping", models.DurationAny)
	require.Error(t, err)
	assert.True(t, apierr.IsMissingCredential(err))
	assert.Empty(t, d.calls)
	assert.Equal(t, "YouTube API key is missing. Please set it in settings.", c.Snapshot().Error)
}

func TestSearchErrorKeepsPreviousResults(t *testing.T) {
	d := &fakeDiscoverer{results: map[string][]models.VideoRecord{"camping": {scored("a", 3)}}}
	c := newTestController(d, nil)
	require.NoError(t, c.Search(context.Background(), "camping", models.DurationAny))

	d.err = &apierr.UpstreamError{Service: apierr.ServiceYouTube, Message: "quota exceeded"}
	err := c.Search(context.Background(), "camping", models.DurationAny)
	require.Error(t, err)

	s := c.Snapshot()
	assert.Equal(t, "quota exceeded", s.Error)
	assert.False(t, s.Searching)
	assert.Len(t, s.Videos, 1)

	d.err = nil
	require.NoError(t, c.Search(context.Background(), "camping", models.DurationAny))
	assert.Empty(t, c.Snapshot().Error, "a successful search clears the error")
}

func TestSearchDropsStaleResult(t *testing.T) {
	slow := make(chan struct{})
	d := &fakeDiscoverer{
		results: map[string][]models.VideoRecord{
			"first":  {scored("old", 9)},
			"second": {scored("new", 2)},
		},
		gates: map[string]chan struct{}{"first": slow},
	}
	c := newTestController(d, nil)

	done := make(chan error, 1)
	go func() { done <- c.Search(context.Background(), "first", models.DurationAny) }()

	require.Eventually(t, func() bool { return c.Snapshot().Searching }, testWait, testTick)
	require.NoError(t, c.Search(context.Background(), "second", models.DurationAny))

	close(slow)
	assert.ErrorIs(t, <-done, ErrStale)

	s := c.Snapshot()
	require.Len(t, s.Videos, 1)
	assert.Equal(t, "new", s.Videos[0].ID)
	assert.Equal(t, "second", s.Keyword)
}

func TestSearchRejectsDuplicateInFlight(t *testing.T) {
	gate := make(chan struct{})
	d := &fakeDiscoverer{gates: map[string]chan struct{}{"camping": gate}}
	c := newTestController(d, nil)

	done := make(chan error, 1)
	go func() { done <- c.Search(context.Background(), "camping", models.DurationAny) }()
	require.Eventually(t, func() bool { return c.Snapshot().Searching }, testWait, testTick)

	assert.ErrorIs(t, c.Search(context.Background(), "camping", models.DurationAny), ErrBusy)

	close(gate)
	assert.NoError(t, <-done)
}

func TestSnapshotIsIsolated(t *testing.T) {
	d := &fakeDiscoverer{results: map[string][]models.VideoRecord{"camping": {scored("a", 3)}}}
	c := newTestController(d, nil)
	require.NoError(t, c.Search(context.Background(), "camping", models.DurationAny))

	s := c.Snapshot()
	s.Videos[0].Title = "changed"

	assert.Equal(t, "title a", c.Snapshot().Videos[0].Title)
	assert.Greater(t, c.Snapshot().Version, uint64(0))
}

func TestAnalyze(t *testing.T) {
	d := &fakeDiscoverer{results: map[string][]models.VideoRecord{"camping": {scored("a", 3)}}}
	analysis := &models.AnalysisResult{Summary: "works"}
	c := NewController(d, &fakeComments{comments: []models.CommentRecord{{Text: "nice"}, {Text: "more"}}},
		&fakeInsights{analysis: analysis}, &memoryKeys{}, models.CredentialPair{YouTubeAPIKey: "yt"})
	require.NoError(t, c.Search(context.Background(), "camping", models.DurationAny))

	require.NoError(t, c.Analyze(context.Background(), "a"))

	s := c.Snapshot()
	require.NotNil(t, s.Selected)
	assert.Equal(t, "a", s.Selected.ID)
	assert.Equal(t, "works", s.Analysis.Summary)
	assert.Equal(t, 2, s.CommentCount)
	assert.False(t, s.Analyzing)

	assert.ErrorIs(t, c.Analyze(context.Background(), "missing"), ErrVideoNotFound)
}

func TestAnalyzeFailureSetsError(t *testing.T) {
	d := &fakeDiscoverer{results: map[string][]models.VideoRecord{"camping": {scored("a", 3)}}}
	i := &fakeInsights{err: &apierr.MissingCredentialError{Service: apierr.ServiceGemini}}
	c := newTestController(d, i)
	require.NoError(t, c.Search(context.Background(), "camping", models.DurationAny))

	err := c.Analyze(context.Background(), "a")
	require.Error(t, err)

	s := c.Snapshot()
	assert.Equal(t, "Gemini API key is missing. Please set it in settings.", s.Error)
	assert.Nil(t, s.Analysis)
	assert.False(t, s.Analyzing)

	c.DismissError()
	assert.Empty(t, c.Snapshot().Error)
}

func TestCloseDetailDropsInFlightAnalysis(t *testing.T) {
	gate := make(chan struct{})
	d := &fakeDiscoverer{results: map[string][]models.VideoRecord{"camping": {scored("a", 3)}}}
	i := &fakeInsights{analysis: &models.AnalysisResult{Summary: "late"}, gate: gate}
	c := newTestController(d, i)
	require.NoError(t, c.Search(context.Background(), "camping", models.DurationAny))

	done := make(chan error, 1)
	go func() { done <- c.Analyze(context.Background(), "a") }()
	require.Eventually(t, func() bool { return c.Snapshot().Analyzing }, testWait, testTick)

	c.CloseDetail()
	close(gate)
	assert.ErrorIs(t, <-done, ErrStale)

	s := c.Snapshot()
	assert.Nil(t, s.Selected)
	assert.Nil(t, s.Analysis)
	assert.False(t, s.Analyzing)
}

func TestOutline(t *testing.T) {
	d := &fakeDiscoverer{results: map[string][]models.VideoRecord{"camping": {scored("a", 3)}}}
	i := &fakeInsights{
		analysis: &models.AnalysisResult{Summary: "ok"},
		outline:  &models.ScriptOutline{Keyword: "tent", Sections: []models.ScriptSection{{Title: "Hook", Content: "Go"}}},
	}
	c := newTestController(d, i)
	require.NoError(t, c.Search(context.Background(), "camping", models.DurationAny))
	require.NoError(t, c.Analyze(context.Background(), "a"))

	require.NoError(t, c.Outline(context.Background(), "tent"))

	s := c.Snapshot()
	assert.Equal(t, "tent", s.OutlineKeyword)
	require.NotNil(t, s.Outline)
	assert.Equal(t, "Hook", s.Outline.Sections[0].Title)
	assert.Equal(t, "title a", i.lastRefTitle)
	assert.NotNil(t, s.Analysis, "outline keeps the analysis")

	assert.ErrorIs(t, c.Outline(context.Background(), " "), ErrEmptyKeyword)
}

func TestSetMinViralScore(t *testing.T) {
	c := newTestController(nil, nil)
	assert.Equal(t, DefaultMinScore, c.Snapshot().MinViralScore)

	tests := []struct {
		in       float64
		expected float64
	}{
		{2.5, 2.5},
		{2.3, 2.5},
		{-1, 0},
		{7, 5},
		{0.2, 0},
	}
	for _, tt := range tests {
		c.SetMinViralScore(tt.in)
		assert.Equal(t, tt.expected, c.Snapshot().MinViralScore, "input %v", tt.in)
	}
}

func TestSetKeysPersist(t *testing.T) {
	keys := &memoryKeys{}
	c := NewController(&fakeDiscoverer{}, &fakeComments{}, &fakeInsights{}, keys, models.CredentialPair{})

	require.NoError(t, c.SetYouTubeKey("yt-key"))
	require.NoError(t, c.SetGeminiKey("gm-key"))

	assert.Equal(t, "yt-key", keys.youtube)
	assert.Equal(t, "gm-key", keys.gemini)
	assert.Equal(t, models.CredentialPair{YouTubeAPIKey: "yt-key", GeminiAPIKey: "gm-key"}, c.Snapshot().Credentials)
}

func TestSetKeySaveFailure(t *testing.T) {
	keys := &memoryKeys{err: errors.New("disk full")}
	c := NewController(&fakeDiscoverer{}, &fakeComments{}, &fakeInsights{}, keys, models.CredentialPair{})

	err := c.SetYouTubeKey("yt-key")
	require.Error(t, err)

	s := c.Snapshot()
	assert.Equal(t, "yt-key", s.Credentials.YouTubeAPIKey, "the key still applies to this session")
	assert.Contains(t, s.Error, "disk full")
}
