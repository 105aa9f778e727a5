package api

import (
	"net/http"
	"time"

	"github.com/casecompass/case-compass/internal/config"
	"github.com/casecompass/case-compass/internal/database"
	"github.com/casecompass/case-compass/internal/status"
	"github.com/casecompass/case-compass/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	db     *database.Manager
	logger *logger.Logger
	cfg    *config.Config
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *database.Manager, logger *logger.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}
}

// acquire gets a connection for the request or writes the error response.
func (h *Handlers) acquire(c *gin.Context) (*database.Conn, bool) {
	conn, err := h.db.Acquire(c.Request.Context())
	if err != nil {
		h.respondError(c, "Database connection failed", err)
		return nil, false
	}
	return conn, true
}

// HealthCheck answers without touching the database.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "UP",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.cfg.Environment,
		"pooled":      h.db.Pooled(),
	})
}

// TestConnection runs a trivial query through the connection manager.
func (h *Handlers) TestConnection(c *gin.Context) {
	rows, err := h.db.Ping(c.Request.Context())
	timestamp := time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		h.logger.Error("Database connection error", "error", err)
		body := gin.H{
			"success":   false,
			"message":   "Failed to connect to database",
			"timestamp": timestamp,
		}
		if h.cfg.ExposeDBErrors {
			body["error"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Database connection successful",
		"data":      rows,
		"timestamp": timestamp,
	})
}

// Stats returns the dashboard numbers.
func (h *Handlers) Stats(c *gin.Context) {
	conn, ok := h.acquire(c)
	if !ok {
		return
	}
	defer h.db.Release(conn)

	var byStatus []struct {
		Status string
		Count  int64
	}
	err := conn.DB.Table(database.Cases.Table).
		Select("status, COUNT(*) AS count").Group("status").
		Scan(&byStatus).Error
	if err != nil {
		h.respondError(c, "Failed to compute stats", err)
		return
	}
	cases := map[string]int64{}
	for _, s := range status.Case.States() {
		cases[s] = 0
	}
	for _, row := range byStatus {
		cases[row.Status] = row.Count
	}

	var victims, pendingAid, upcoming int64
	if err := conn.DB.Table(database.Victims.Table).Count(&victims).Error; err != nil {
		h.respondError(c, "Failed to compute stats", err)
		return
	}
	if err := conn.DB.Table(database.FinancialAids.Table).
		Where("status = ?", status.AidPending).Count(&pendingAid).Error; err != nil {
		h.respondError(c, "Failed to compute stats", err)
		return
	}
	if err := conn.DB.Table(database.Appointments.Table).
		Where("starts_at > ? AND status IN ?", time.Now().UTC(),
			[]string{status.AppointmentPending, status.AppointmentConfirmed}).
		Count(&upcoming).Error; err != nil {
		h.respondError(c, "Failed to compute stats", err)
		return
	}

	var granted []database.FinancialAid
	if err := conn.DB.Table(database.FinancialAids.Table).
		Where("status IN ?", []string{status.AidApproved, status.AidPartiallyApproved}).
		Find(&granted).Error; err != nil {
		h.respondError(c, "Failed to compute stats", err)
		return
	}
	approved := decimal.Zero
	for _, aid := range granted {
		approved = approved.Add(aid.AmountApproved)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"cases":                cases,
			"victims":              victims,
			"pendingAidRequests":   pendingAid,
			"approvedAidTotal":     approved.StringFixed(2),
			"upcomingAppointments": upcoming,
		},
	})
}
