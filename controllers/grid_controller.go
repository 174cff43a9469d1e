package controllers

import (
	"context"
	"net/http"
	"time"

	"dow_tracker_backend/models"
	"dow_tracker_backend/services/archive"
	"dow_tracker_backend/services/notify"
	"dow_tracker_backend/services/snapshot"
	"dow_tracker_backend/services/workbook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GridController serves the per-day price grid to the presentation layer.
type GridController struct {
	store     *workbook.Store
	snapshots *snapshot.Service
	archive   *archive.Store
	hub       *notify.Hub
	slots     []models.Slot
	basket    []string
	log       *zap.SugaredLogger
}

// NewGridController creates a grid controller.
func NewGridController(store *workbook.Store, snapshots *snapshot.Service, arch *archive.Store, hub *notify.Hub, slots []models.Slot, basket []string, log *zap.SugaredLogger) *GridController {
	return &GridController{
		store:     store,
		snapshots: snapshots,
		archive:   arch,
		hub:       hub,
		slots:     slots,
		basket:    basket,
		log:       log,
	}
}

// GetGrid returns the current per-day table.
// GET /api/v1/grid?date=MM-DD-YYYY (defaults to today)
func (gc *GridController) GetGrid(c *gin.Context) {
	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected MM-DD-YYYY"})
			return
		}
		day = parsed
	}

	grid, err := gc.store.Grid(day)
	if err != nil {
		gc.log.Errorw("Failed to read grid", "date", day.Format(models.DateLayout), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read grid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": grid, "version": gc.hub.Version()})
}

// RefreshNow fires an immediate historical fetch of all due-or-current
// slots, equivalent to the tray "Refresh Now" action.
// POST /api/v1/refresh
func (gc *GridController) RefreshNow(c *gin.Context) {
	now := time.Now()

	due := 0
	for _, slot := range gc.slots {
		if slot.Hour <= now.Hour() {
			due++
		}
	}

	go gc.snapshots.RefreshDue(context.Background(), now)

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "refresh started",
		"due_slots": due,
	})
}

// GetVersion returns the monotonic grid version for poll-model consumers.
// GET /api/v1/version
func (gc *GridController) GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": gc.hub.Version()})
}

// GetSlots returns the configured slot table in column order.
// GET /api/v1/slots
func (gc *GridController) GetSlots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gc.slots})
}

// GetBasket returns the tracked symbols in row order.
// GET /api/v1/basket
func (gc *GridController) GetBasket(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gc.basket})
}

// GetArchive returns the archived raw samples for a date.
// GET /api/v1/archive/:date
func (gc *GridController) GetArchive(c *gin.Context) {
	if gc.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Archive not available"})
		return
	}

	day, err := time.ParseInLocation(models.DateLayout, c.Param("date"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected MM-DD-YYYY"})
		return
	}

	records, err := gc.archive.LoadDay(day)
	if err != nil {
		gc.log.Errorw("Failed to load archive", "date", c.Param("date"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load archive"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// HandleWebSocket attaches the client to the notify hub.
// GET /ws
func (gc *GridController) HandleWebSocket(c *gin.Context) {
	gc.hub.HandleWebSocket(c.Writer, c.Request)
}
