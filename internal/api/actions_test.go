package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/casecompass/case-compass/internal/database"
	"github.com/shopspring/decimal"
)

func TestAppointmentActions(t *testing.T) {
	router, _ := setupTestRouter(t)

	id := create(t, router, "/api/appointments", map[string]interface{}{
		"title": "Follow-up", "startsAt": "2030-03-01T14:00:00Z",
	})
	base := fmt.Sprintf("/api/appointments/%d", id)

	steps := []struct {
		action     string
		wantStatus int
		wantState  string
	}{
		{action: "reschedule", wantStatus: http.StatusConflict, wantState: "pending"},
		{action: "confirm", wantStatus: http.StatusOK, wantState: "confirmed"},
		{action: "reschedule", wantStatus: http.StatusOK, wantState: "reschedule_requested"},
		{action: "confirm", wantStatus: http.StatusOK, wantState: "confirmed"},
		{action: "cancel", wantStatus: http.StatusOK, wantState: "cancelled"},
		{action: "confirm", wantStatus: http.StatusConflict, wantState: "cancelled"},
	}

	for _, step := range steps {
		w, _ := doJSON(t, router, "POST", base+"/"+step.action, nil)
		if w.Code != step.wantStatus {
			t.Fatalf("%s: expected status %d, got %d: %s", step.action, step.wantStatus, w.Code, w.Body.String())
		}
		if got := fetch(t, router, base)["status"]; got != step.wantState {
			t.Fatalf("%s: expected state %s, got %v", step.action, step.wantState, got)
		}
	}

	w, _ := doJSON(t, router, "POST", "/api/appointments/999/confirm", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestSignConsent(t *testing.T) {
	router, _ := setupTestRouter(t)

	id := create(t, router, "/api/consents", map[string]interface{}{"title": "Treatment", "version": "1.0"})
	path := fmt.Sprintf("/api/consents/%d", id)

	w, response := doJSON(t, router, "POST", path+"/sign", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	data := response["data"].(map[string]interface{})
	if data["status"] != "signed" || data["signedDate"] == nil {
		t.Errorf("Expected a signed consent, got %v", data)
	}

	w, _ = doJSON(t, router, "POST", path+"/sign", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Signing twice is a no-op, got %d", w.Code)
	}
}

func TestSignExpiredConsent(t *testing.T) {
	router, _ := setupTestRouter(t)

	yesterday := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	id := create(t, router, "/api/consents", map[string]interface{}{"title": "Research", "expiryDate": yesterday})
	path := fmt.Sprintf("/api/consents/%d", id)

	w, _ := doJSON(t, router, "POST", path+"/sign", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	data := fetch(t, router, path)
	if data["status"] != "expired" {
		t.Errorf("Expected consent to be marked expired, got %v", data["status"])
	}
	if data["signedDate"] != nil {
		t.Errorf("Expired consent must stay unsigned, got %v", data["signedDate"])
	}
}

func TestConsentStatusOnlyChangesThroughSign(t *testing.T) {
	router, _ := setupTestRouter(t)

	yesterday := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	id := create(t, router, "/api/consents", map[string]interface{}{"title": "Research", "expiryDate": yesterday})
	path := fmt.Sprintf("/api/consents/%d", id)

	w, _ := doJSON(t, router, "PUT", path, map[string]interface{}{"status": "signed", "version": "2.0"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	data := fetch(t, router, path)
	if data["status"] != "pending" {
		t.Errorf("Expected status to stay pending, got %v", data["status"])
	}
	if data["signedDate"] != nil {
		t.Errorf("Expected no signed date, got %v", data["signedDate"])
	}
	if data["version"] != "2.0" {
		t.Errorf("Expected version update, got %v", data["version"])
	}

	w, _ = doJSON(t, router, "POST", path+"/sign", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected expired consent to refuse signing, got %d", w.Code)
	}
}

func TestApproveAidRequiresPositiveAmount(t *testing.T) {
	router, db := setupTestRouter(t)

	conn, err := db.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	row := database.FinancialAid{ID: 500, Type: "Legacy", Amount: decimal.Zero, Status: "pending"}
	if err := conn.DB.Create(&row).Error; err != nil {
		t.Fatalf("Failed to insert row: %v", err)
	}
	db.Release(conn)

	w, _ := doJSON(t, router, "POST", "/api/financial-aid/500/approve", map[string]interface{}{"full": true})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if got := fetch(t, router, "/api/financial-aid/500")["status"]; got != "pending" {
		t.Errorf("Expected status to stay pending, got %v", got)
	}
}

func TestApproveAid(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name         string
		body         interface{}
		wantStatus   int
		wantState    string
		wantApproved string
	}{
		{name: "full", body: map[string]interface{}{"full": true}, wantStatus: http.StatusOK, wantState: "approved", wantApproved: "3000"},
		{name: "partial default half", body: map[string]interface{}{"full": false}, wantStatus: http.StatusOK, wantState: "partially_approved", wantApproved: "1500"},
		{name: "partial no body", body: nil, wantStatus: http.StatusOK, wantState: "partially_approved", wantApproved: "1500"},
		{name: "partial amount", body: map[string]interface{}{"amountApproved": "1200.50"}, wantStatus: http.StatusOK, wantState: "partially_approved", wantApproved: "1200.5"},
		{name: "partial too large", body: map[string]interface{}{"amountApproved": 3000}, wantStatus: http.StatusBadRequest, wantState: "pending", wantApproved: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := create(t, router, "/api/financial-aid", map[string]interface{}{"type": "Housing", "amount": 3000})
			path := fmt.Sprintf("/api/financial-aid/%d", id)

			w, _ := doJSON(t, router, "POST", path+"/approve", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			data := fetch(t, router, path)
			if data["status"] != tt.wantState {
				t.Errorf("Expected state %s, got %v", tt.wantState, data["status"])
			}
			if data["amountApproved"] != tt.wantApproved {
				t.Errorf("Expected approved amount %s, got %v", tt.wantApproved, data["amountApproved"])
			}
		})
	}
}

func TestRejectAidIsFinal(t *testing.T) {
	router, _ := setupTestRouter(t)

	id := create(t, router, "/api/financial-aid", map[string]interface{}{"type": "Legal", "amount": 500})
	path := fmt.Sprintf("/api/financial-aid/%d", id)

	w, _ := doJSON(t, router, "POST", path+"/reject", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	w, _ = doJSON(t, router, "POST", path+"/approve", map[string]interface{}{"full": true})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	// Status is only moved through the decision endpoints.
	doJSON(t, router, "PUT", path, map[string]interface{}{"status": "approved", "purpose": "Court fees"})
	data := fetch(t, router, path)
	if data["status"] != "rejected" {
		t.Errorf("Expected status to stay rejected, got %v", data["status"])
	}
	if data["purpose"] != "Court fees" {
		t.Errorf("Expected purpose update, got %v", data["purpose"])
	}
}

func TestMarkNotificationRead(t *testing.T) {
	router, _ := setupTestRouter(t)

	id := create(t, router, "/api/notifications", map[string]interface{}{"subject": "Update", "channel": "email"})

	w, response := doJSON(t, router, "POST", fmt.Sprintf("/api/notifications/%d/read", id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if response["data"].(map[string]interface{})["read"] != true {
		t.Error("Expected notification to be read")
	}
}

func TestStats(t *testing.T) {
	router, _ := setupTestRouter(t)

	create(t, router, "/api/victims", map[string]interface{}{"name": "A"})
	create(t, router, "/api/cases", map[string]interface{}{"title": "one"})
	closed := create(t, router, "/api/cases", map[string]interface{}{"title": "two"})
	doJSON(t, router, "PUT", fmt.Sprintf("/api/cases/%d", closed), map[string]interface{}{"status": "closed"})

	aid := create(t, router, "/api/financial-aid", map[string]interface{}{"type": "Medical", "amount": 100})
	doJSON(t, router, "POST", fmt.Sprintf("/api/financial-aid/%d/approve", aid), map[string]interface{}{"full": true})
	create(t, router, "/api/financial-aid", map[string]interface{}{"type": "Medical", "amount": 40})
	create(t, router, "/api/appointments", map[string]interface{}{"title": "Later", "startsAt": "2099-01-01T00:00:00Z"})

	w, response := doJSON(t, router, "GET", "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	data := response["data"].(map[string]interface{})
	cases := data["cases"].(map[string]interface{})
	if cases["open"].(float64) != 1 || cases["closed"].(float64) != 1 || cases["in-progress"].(float64) != 0 {
		t.Errorf("Unexpected case counts %v", cases)
	}
	if data["victims"].(float64) != 1 {
		t.Errorf("Expected 1 victim, got %v", data["victims"])
	}
	if data["pendingAidRequests"].(float64) != 1 {
		t.Errorf("Expected 1 pending request, got %v", data["pendingAidRequests"])
	}
	if data["approvedAidTotal"] != "100.00" {
		t.Errorf("Expected approved total 100.00, got %v", data["approvedAidTotal"])
	}
	if data["upcomingAppointments"].(float64) != 1 {
		t.Errorf("Expected 1 upcoming appointment, got %v", data["upcomingAppointments"])
	}
}
