package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestManager() *Manager {
	return &Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Issuer:     "vetcare-backend",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()
	token, err := m.NewAccessToken("user-123", "user")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("expected subject user-123, got %q", claims.Subject)
	}
	if claims.Role != "user" {
		t.Fatalf("expected role user, got %q", claims.Role)
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	m := newTestManager()
	refresh, err := m.NewRefreshToken("user-123", "user")
	if err != nil {
		t.Fatalf("NewRefreshToken error: %v", err)
	}

	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
	if _, err := m.ParseRefresh(refresh); err != nil {
		t.Fatalf("ParseRefresh error: %v", err)
	}
}

func TestAccessTokenRejectedAsRefresh(t *testing.T) {
	m := newTestManager()
	access, err := m.NewAccessToken("user-123", "user")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}
	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := newTestManager()
	token, err := m.NewAccessToken("user-123", "admin")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	other := &Manager{Secret: []byte("other-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "vetcare-backend"}
	if _, err := other.ParseAccess(token); err == nil {
		t.Fatal("expected parse to fail with wrong secret")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := newTestManager()
	m.AccessTTL = -1 * time.Minute
	token, err := m.NewAccessToken("user-123", "user")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected parse to fail for expired token")
	}
}
