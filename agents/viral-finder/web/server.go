package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	viralfinder "viral-finder/agents/viral-finder"
	"viral-finder/internal/models"
	"viral-finder/shared/apierr"
	"viral-finder/shared/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server exposes the controller as a small local web UI. Form posts start the action
// in the background and redirect back to the page, which refreshes while busy.
type Server struct {
	controller *viralfinder.Controller
	router     *gin.Engine

	baseCtx context.Context
	pending sync.WaitGroup
}

func NewServer(ctx context.Context, controller *viralfinder.Controller, monitor *monitoring.Monitor) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		controller: controller,
		baseCtx:    ctx,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.index)
	router.POST("/search", s.search)
	router.POST("/filter", s.filter)
	router.POST("/keys", s.keys)
	router.POST("/analyze/:id", s.analyze)
	router.POST("/outline", s.outline)
	router.POST("/dismiss", s.dismiss)
	router.POST("/close", s.closeDetail)
	router.GET("/api/state", s.state)
	router.POST("/api/search", s.apiSearch)
	router.POST("/api/analyze/:id", s.apiAnalyze)
	router.POST("/api/outline", s.apiOutline)
	monitor.RegisterRoutes(router)

	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Web UI listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.pending.Wait()
	return nil
}

// background runs fn detached from the request; its outcome lands in the state.
func (s *Server) background(requestID, action string, fn func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := fn(s.baseCtx); err != nil && !errors.Is(err, viralfinder.ErrStale) {
			log.Warn().Err(err).Str("request_id", requestID).Msgf("%s failed", action)
		}
	}()
}

type pageData struct {
	State         viralfinder.State
	Visible       []models.VideoRecord
	Durations     []models.Duration
	ScoreSteps    []float64
	HasYouTubeKey bool
	HasGeminiKey  bool
}

func scoreSteps() []float64 {
	var steps []float64
	for v := viralfinder.MinScoreFloor; v <= viralfinder.MinScoreCeiling; v += viralfinder.MinScoreStep {
		steps = append(steps, v)
	}
	return steps
}

func (s *Server) index(c *gin.Context) {
	snap := s.controller.Snapshot()
	c.HTML(http.StatusOK, "index.html", pageData{
		State:         snap,
		Visible:       snap.Visible(),
		Durations:     []models.Duration{models.DurationAny, models.DurationShort, models.DurationLong},
		ScoreSteps:    scoreSteps(),
		HasYouTubeKey: snap.Credentials.YouTubeAPIKey != "",
		HasGeminiKey:  snap.Credentials.GeminiAPIKey != "",
	})
}

func (s *Server) search(c *gin.Context) {
	keyword := c.PostForm("keyword")
	duration, err := models.ParseDuration(c.PostForm("duration"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	s.background(requestID(c), "search", func(ctx context.Context) error {
		return s.controller.Search(ctx, keyword, duration)
	})
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) filter(c *gin.Context) {
	v, err := strconv.ParseFloat(c.PostForm("min_score"), 64)
	if err != nil {
		c.String(http.StatusBadRequest, "min_score must be a number")
		return
	}
	s.controller.SetMinViralScore(v)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) keys(c *gin.Context) {
	if key, ok := c.GetPostForm("youtube_api_key"); ok {
		if err := s.controller.SetYouTubeKey(key); err != nil {
			log.Error().Err(err).Str("request_id", requestID(c)).Msg("Failed to save YouTube key")
		}
	}
	if key, ok := c.GetPostForm("gemini_api_key"); ok {
		if err := s.controller.SetGeminiKey(key); err != nil {
			log.Error().Err(err).Str("request_id", requestID(c)).Msg("Failed to save Gemini key")
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) analyze(c *gin.Context) {
	videoID := c.Param("id")
	s.background(requestID(c), "analyze", func(ctx context.Context) error {
		return s.controller.Analyze(ctx, videoID)
	})
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) outline(c *gin.Context) {
	keyword := c.PostForm("keyword")
	s.background(requestID(c), "outline", func(ctx context.Context) error {
		return s.controller.Outline(ctx, keyword)
	})
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) dismiss(c *gin.Context) {
	s.controller.DismissError()
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) closeDetail(c *gin.Context) {
	s.controller.CloseDetail()
	c.Redirect(http.StatusSeeOther, "/")
}

type stateResponse struct {
	viralfinder.State
	Visible       []models.VideoRecord `json:"visible"`
	HasYouTubeKey bool                 `json:"has_youtube_key"`
	HasGeminiKey  bool                 `json:"has_gemini_key"`
}

func (s *Server) state(c *gin.Context) {
	snap := s.controller.Snapshot()
	c.JSON(http.StatusOK, stateResponse{
		State:         snap,
		Visible:       snap.Visible(),
		HasYouTubeKey: snap.Credentials.YouTubeAPIKey != "",
		HasGeminiKey:  snap.Credentials.GeminiAPIKey != "",
	})
}

type searchRequest struct {
	Keyword  string `json:"keyword" binding:"required"`
	Duration string `json:"duration"`
}

type outlineRequest struct {
	Keyword string `json:"keyword" binding:"required"`
}

// The api handlers run the action within the request and answer with the new state.
func (s *Server) apiSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	duration, err := models.ParseDuration(req.Duration)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respond(c, s.controller.Search(c.Request.Context(), req.Keyword, duration))
}

func (s *Server) apiAnalyze(c *gin.Context) {
	s.respond(c, s.controller.Analyze(c.Request.Context(), c.Param("id")))
}

func (s *Server) apiOutline(c *gin.Context) {
	var req outlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	s.respond(c, s.controller.Outline(c.Request.Context(), req.Keyword))
}

func (s *Server) respond(c *gin.Context, err error) {
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID(c)).Str("path", c.Request.URL.Path).Msg("Action failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	s.state(c)
}

// statusFor maps an action error to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, viralfinder.ErrEmptyKeyword):
		return http.StatusBadRequest
	case errors.Is(err, viralfinder.ErrVideoNotFound):
		return http.StatusNotFound
	case errors.Is(err, viralfinder.ErrBusy), errors.Is(err, viralfinder.ErrStale):
		return http.StatusConflict
	case apierr.IsMissingCredential(err):
		return http.StatusPreconditionRequired
	case apierr.IsTransport(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
