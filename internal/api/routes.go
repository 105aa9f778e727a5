package api

import (
	"github.com/casecompass/case-compass/internal/config"
	"github.com/casecompass/case-compass/internal/database"
	"github.com/casecompass/case-compass/internal/status"
	"github.com/casecompass/case-compass/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, db *database.Manager, logger *logger.Logger, cfg *config.Config) {
	h := NewHandlers(db, logger, cfg)

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/test-connection", h.TestConnection)
		api.GET("/stats", h.Stats)

		Register(api, h, database.Victims, Options[database.Victim]{
			Status:   func(v *database.Victim) *string { return &v.Status },
			Machine:  status.Victim,
			ReadOnly: []string{"casesCount"},
		})
		Register(api, h, database.Cases, Options[database.Case]{
			Status:  func(c *database.Case) *string { return &c.Status },
			Machine: status.Case,
		})
		Register(api, h, database.Doctors, Options[database.Doctor]{})
		Register(api, h, database.Appointments, Options[database.Appointment]{
			Status:  func(a *database.Appointment) *string { return &a.Status },
			Machine: status.Appointment,
		})
		Register(api, h, database.Consents, Options[database.Consent]{
			Status:   func(f *database.Consent) *string { return &f.Status },
			Machine:  status.Consent,
			ReadOnly: []string{"status", "signedDate"},
		})
		Register(api, h, database.CaseNotes, Options[database.CaseNote]{})
		Register(api, h, database.MedicalRecords, Options[database.MedicalRecord]{})
		Register(api, h, database.LegalDocuments, Options[database.LegalDocument]{})
		Register(api, h, database.Documents, Options[database.Document]{})
		Register(api, h, database.FinancialAids, Options[database.FinancialAid]{
			Status:   func(a *database.FinancialAid) *string { return &a.Status },
			Machine:  status.Aid,
			ReadOnly: []string{"status", "amountApproved", "decisionDate"},
		})
		Register(api, h, database.Users, Options[database.User]{
			WriteOnly: map[string]string{"password": "password_hash"},
		})
		Register(api, h, database.Roles, Options[database.Role]{})
		Register(api, h, database.UserRoles, Options[database.UserRole]{})
		Register(api, h, database.Notifications, Options[database.Notification]{})

		// Workflow actions
		api.POST("/appointments/:id/confirm", h.ConfirmAppointment)
		api.POST("/appointments/:id/cancel", h.CancelAppointment)
		api.POST("/appointments/:id/reschedule", h.RequestReschedule)
		api.POST("/consents/:id/sign", h.SignConsent)
		api.POST("/financial-aid/:id/approve", h.ApproveAid)
		api.POST("/financial-aid/:id/reject", h.RejectAid)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)
	}
}
