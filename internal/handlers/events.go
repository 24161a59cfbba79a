package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"marpelink-escrow-server/internal/journal"
	"marpelink-escrow-server/internal/utils"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventHandler serves the receipt journal.
type EventHandler struct {
	Journal *journal.Journal
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(j *journal.Journal) *EventHandler {
	return &EventHandler{Journal: j}
}

// ListEvents returns receipts after ?since= height, oldest first, at most ?limit=.
func (h *EventHandler) ListEvents(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "Invalid since parameter")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultEventLimit)))
	if err != nil || limit < 1 {
		utils.BadRequest(c, "Invalid limit parameter")
		return
	}
	limit = min(limit, maxEventLimit)

	receipts, err := h.Journal.Since(since, limit)
	if err != nil {
		utils.InternalServerError(c, "Failed to read journal: "+err.Error())
		return
	}
	utils.Success(c, "Events fetched successfully", receipts)
}

// GetEventByHash returns the receipt with a transaction hash.
func (h *EventHandler) GetEventByHash(c *gin.Context) {
	receipt, err := h.Journal.ByHash(c.Param("hash"))
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			utils.NotFound(c, "Transaction not found")
		} else {
			utils.InternalServerError(c, "Failed to read journal: "+err.Error())
		}
		return
	}
	utils.Success(c, "Event fetched successfully", receipt)
}
