package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/database"
	"github.com/queryproctor/backend/internal/metrics"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/timing"
)

const healthTimeout = 2 * time.Second

// SystemHandler serves health, server time and Prometheus metrics.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	clock     clock.Clock
	startTime time.Time
	log       zerolog.Logger
	metrics   http.Handler
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, clk clock.Clock, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		clock:     clk,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
		metrics:   promhttp.Handler(),
	}
}

// Health godoc
// GET /health
// Reports 503 when Postgres or Redis does not answer.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	deps := database.Ready(ctx, h.pool, h.rdb)
	status := http.StatusOK
	for _, v := range deps {
		if v != "ok" {
			status = http.StatusServiceUnavailable
		}
	}

	response.Success(c, status, gin.H{
		"status":       http.StatusText(status),
		"dependencies": deps,
		"uptime":       time.Since(h.startTime).Round(time.Second).String(),
	})
}

// ServerTime godoc
// GET /api/v1/public/time
// Lets clients measure their clock offset without entering an assessment.
func (h *SystemHandler) ServerTime(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"server_time": timing.FormatInstant(h.clock.Now()),
	})
}

// Metrics godoc
// GET /metrics
func (h *SystemHandler) Metrics(c *gin.Context) {
	h.refreshQueueDepth(c.Request.Context())
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// refreshQueueDepth samples the worker queues (pipelined LLEN).
func (h *SystemHandler) refreshQueueDepth(ctx context.Context) {
	queues := []string{config.WorkerKey.MailQueue, config.WorkerKey.GradingQueue}

	pipe := h.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(queues))
	for i, q := range queues {
		cmds[i] = pipe.LLen(ctx, q)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to sample queue depth")
		return
	}
	for i, q := range queues {
		metrics.QueueDepth.WithLabelValues(q).Set(float64(cmds[i].Val()))
	}
}
