package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type HealthServer struct {
	monitor *Monitor
	port    string
	server  *http.Server
}

func NewHealthServer(monitor *Monitor, port string) *HealthServer {
	if port == "" || port == "0" {
		port = "8081"
	}
	return &HealthServer{
		monitor: monitor,
		port:    port,
	}
}

// RegisterRoutes mounts /health and /status on an existing router.
func (m *Monitor) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", m.healthHandler)
	r.GET("/status", m.statusHandler)
}

// Start serves the health routes in the background until Stop is called.
func (h *HealthServer) Start() {
	router := gin.New()
	router.Use(gin.Recovery())
	h.monitor.RegisterRoutes(router)

	h.server = &http.Server{
		Addr:              ":" + h.port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Msgf("Health check server starting on port %s", h.port)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Health server error")
		}
	}()
}

func (h *HealthServer) Stop(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (m *Monitor) healthHandler(c *gin.Context) {
	if m.IsHealthy() {
		c.String(http.StatusOK, fmt.Sprintf("OK - %s", m.GetStatusSummary()))
		return
	}
	c.String(http.StatusServiceUnavailable, fmt.Sprintf("Service unhealthy - %s", m.GetStatusSummary()))
}

func (m *Monitor) statusHandler(c *gin.Context) {
	c.String(http.StatusOK, m.GetStatusSummary())
}
