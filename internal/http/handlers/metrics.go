package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/stats"
	"github.com/gin-gonic/gin"
)

type StatsReader interface {
	Counts(ctx context.Context) (stats.Counts, error)
}

// MetricsHandler serves the admin dashboard counters, not the Prometheus endpoint.
type MetricsHandler struct {
	stats StatsReader
}

func NewMetricsHandler(s StatsReader) *MetricsHandler {
	return &MetricsHandler{stats: s}
}

func (h *MetricsHandler) Get(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	counts, err := h.stats.Counts(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not fetch metrics", err)
		return
	}

	ctx.JSON(http.StatusOK, counts)
}
