package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fraudreview/internal/services"
)

// StatsHandler serves the dashboard aggregates.
type StatsHandler struct {
	statsService services.StatsServicer
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService services.StatsServicer) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetStats handles the dashboard statistics
// @Summary     Dashboard statistics
// @Description Get statement and transaction totals, flagged count and resolved disputes
// @Tags        stats
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.DashboardStats "Statistics"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	stats, err := h.statsService.Stats(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetStatementRollups handles the per-statement live counts
// @Summary     Statement rollups
// @Description Get the current transaction and flagged counts of every statement, newest upload first
// @Tags        stats,statements
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.StatementRollup "Rollups"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements/rollups [get]
func (h *StatsHandler) GetStatementRollups(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rollups, err := h.statsService.StatementRollups(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statements": rollups})
}
