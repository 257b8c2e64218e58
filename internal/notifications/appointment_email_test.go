package notifications

import (
	"strings"
	"testing"

	"vetcare-backend/internal/appointments"
)

func TestBuildDecisionHTML(t *testing.T) {
	approved := appointments.Appointment{
		OwnerName: "Jane Cruz", PetName: "Bella", Service: "Vaccination",
		Date: "2025-10-12", Time: "9:00 AM", Status: appointments.StatusApproved,
	}
	html, err := buildDecisionHTML(approved)
	if err != nil {
		t.Fatalf("buildDecisionHTML error: %v", err)
	}
	if !strings.Contains(html, "approved") || !strings.Contains(html, "Bella") {
		t.Fatalf("approved email missing details: %s", html)
	}

	declined := approved
	declined.Status = appointments.StatusDeclined
	declined.DeclineNotes = "Clinic closed"
	html, err = buildDecisionHTML(declined)
	if err != nil {
		t.Fatalf("buildDecisionHTML error: %v", err)
	}
	if !strings.Contains(html, "declined") || !strings.Contains(html, "Clinic closed") {
		t.Fatalf("declined email missing reason: %s", html)
	}
}

func TestBuildPasswordResetHTMLEscapes(t *testing.T) {
	html, err := buildPasswordResetHTML("<script>", "123456")
	if err != nil {
		t.Fatalf("buildPasswordResetHTML error: %v", err)
	}
	if !strings.Contains(html, "123456") {
		t.Fatalf("code missing: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("name not escaped: %s", html)
	}
}
