package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/casecompass/case-compass/internal/database"
	"github.com/casecompass/case-compass/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// mutate loads row :id of desc, applies fn and saves the row in one
// transaction. It writes the error response itself and reports ok=false.
func mutate[T any](h *Handlers, c *gin.Context, desc database.Descriptor, fn func(tx *gorm.DB, row *T) error) (*T, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}

	conn, ok := h.acquire(c)
	if !ok {
		return nil, false
	}
	defer h.db.Release(conn)

	var row T
	err := conn.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(desc.Table).Where(desc.PrimaryKey+" = ?", id).Take(&row).Error; err != nil {
			return err
		}
		if err := fn(tx, &row); err != nil {
			return err
		}
		return tx.Table(desc.Table).Model(&row).Select("*").Updates(&row).Error
	})
	if err != nil {
		h.respondError(c, "Failed to update "+desc.Path, err)
		return nil, false
	}
	return &row, true
}

func (h *Handlers) moveAppointment(to string) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, ok := mutate(h, c, database.Appointments, func(tx *gorm.DB, a *database.Appointment) error {
			if err := status.Appointment.Check(a.Status, to); err != nil {
				return err
			}
			a.Status = to
			return nil
		})
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
	}
}

// ConfirmAppointment moves an appointment to confirmed.
func (h *Handlers) ConfirmAppointment(c *gin.Context) {
	h.moveAppointment(status.AppointmentConfirmed)(c)
}

// CancelAppointment moves an appointment to cancelled.
func (h *Handlers) CancelAppointment(c *gin.Context) {
	h.moveAppointment(status.AppointmentCancelled)(c)
}

// RequestReschedule asks for a confirmed appointment to be moved.
func (h *Handlers) RequestReschedule(c *gin.Context) {
	h.moveAppointment(status.AppointmentRescheduleRequested)(c)
}

// SignConsent signs a pending consent form; signing a signed form changes
// nothing. A form past its expiry date is marked expired instead and the
// call fails with 409.
func (h *Handlers) SignConsent(c *gin.Context) {
	now := time.Now().UTC()
	row, ok := mutate(h, c, database.Consents, func(tx *gorm.DB, f *database.Consent) error {
		if f.Status == status.ConsentSigned {
			return nil
		}
		if f.Expired(now) && f.Status == status.ConsentPending {
			f.Status = status.ConsentExpired
			return nil
		}
		if err := status.Consent.Check(f.Status, status.ConsentSigned); err != nil {
			return err
		}
		f.Status = status.ConsentSigned
		f.SignedDate = &now
		return nil
	})
	if !ok {
		return
	}
	if row.Status == status.ConsentExpired {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Consent form has expired", "data": row})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

type approveRequest struct {
	Full           bool             `json:"full"`
	AmountApproved *decimal.Decimal `json:"amountApproved"`
}

// ApproveAid grants a pending aid request. Full approval grants the
// requested amount; partial approval grants the given amount or half the
// requested amount.
func (h *Handlers) ApproveAid(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}

	now := time.Now().UTC()
	row, ok := mutate(h, c, database.FinancialAids, func(tx *gorm.DB, aid *database.FinancialAid) error {
		if !aid.Amount.IsPositive() {
			return badRequest("Requested amount %s must be more than 0", aid.Amount.StringFixed(2))
		}
		to := status.AidApproved
		granted := aid.Amount
		if !req.Full {
			to = status.AidPartiallyApproved
			granted = aid.Amount.Div(decimal.NewFromInt(2)).Round(2)
			if req.AmountApproved != nil {
				granted = req.AmountApproved.Round(2)
			}
			if !granted.IsPositive() || !granted.LessThan(aid.Amount) {
				return badRequest("Partial approval must be more than 0 and less than the requested %s", aid.Amount.StringFixed(2))
			}
		}
		if err := status.Aid.Check(aid.Status, to); err != nil {
			return err
		}
		aid.Status = to
		aid.AmountApproved = granted
		aid.DecisionDate = &now
		return nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// RejectAid declines a pending aid request.
func (h *Handlers) RejectAid(c *gin.Context) {
	now := time.Now().UTC()
	row, ok := mutate(h, c, database.FinancialAids, func(tx *gorm.DB, aid *database.FinancialAid) error {
		if err := status.Aid.Check(aid.Status, status.AidRejected); err != nil {
			return err
		}
		aid.Status = status.AidRejected
		aid.AmountApproved = decimal.Zero
		aid.DecisionDate = &now
		return nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// MarkNotificationRead sets the read flag.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	row, ok := mutate(h, c, database.Notifications, func(tx *gorm.DB, n *database.Notification) error {
		n.Read = true
		return nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}
