package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
		err  bool
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712345678/vetcare/pets/abc123.jpg", "vetcare/pets/abc123", false},
		{"https://res.cloudinary.com/demo/image/upload/abc123.png", "abc123", false},
		{"https://res.cloudinary.com/demo/image/upload/vetcare/abc123", "vetcare/abc123", false},
		{"https://example.com/not-cloudinary.jpg", "", true},
		{"https://res.cloudinary.com/demo/image/other/abc.jpg", "", true},
	}
	for _, tc := range tests {
		got, err := PublicIDFromURL(tc.url)
		if tc.err {
			if !errors.Is(err, ErrNotManaged) {
				t.Errorf("%s: expected ErrNotManaged, got %v", tc.url, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.url, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q want %q", tc.url, got, tc.want)
		}
	}
}

func TestNewCloudinaryClientRequiresCredentials(t *testing.T) {
	if c := NewCloudinaryClient("", "key", "secret", ""); c != nil {
		t.Fatal("expected nil client without cloud name")
	}
	if c := NewCloudinaryClient("demo", "key", "", ""); c != nil {
		t.Fatal("expected nil client without secret")
	}
	if c := NewCloudinaryClient("demo", "key", "secret", "pets"); c == nil {
		t.Fatal("expected client with full credentials")
	}
}

func TestUploadBase64SignsRequest(t *testing.T) {
	var seen struct {
		publicID  string
		timestamp string
		signature string
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		seen.publicID = r.PostFormValue("public_id")
		seen.timestamp = r.PostFormValue("timestamp")
		seen.signature = r.PostFormValue("signature")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secure_url":"https://res.cloudinary.com/demo/image/upload/v1/pets/p1.jpg"}`))
	}))
	defer server.Close()

	client := NewCloudinaryClient("demo", "key", "secret", "pets")
	client.baseURL = server.URL
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	served, err := client.UploadBase64(context.Background(), "data:image/png;base64,aGVsbG8=", "p1")
	if err != nil {
		t.Fatalf("UploadBase64 error: %v", err)
	}
	if served != "https://res.cloudinary.com/demo/image/upload/v1/pets/p1.jpg" {
		t.Fatalf("unexpected url %q", served)
	}
	if seen.publicID != "pets/p1" {
		t.Fatalf("expected folder-qualified public id, got %q", seen.publicID)
	}
	if seen.timestamp != "1700000000" {
		t.Fatalf("unexpected timestamp %q", seen.timestamp)
	}
	want := client.sign("pets/p1", "1700000000")
	if seen.signature != want {
		t.Fatalf("signature mismatch: got %q want %q", seen.signature, want)
	}
}

func TestUploadBase64RejectsEmptyData(t *testing.T) {
	client := NewCloudinaryClient("demo", "key", "secret", "")
	if _, err := client.UploadBase64(context.Background(), "   ", "p1"); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestDestroyReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"error"}`))
	}))
	defer server.Close()

	client := NewCloudinaryClient("demo", "key", "secret", "pets")
	client.baseURL = server.URL

	err := client.Destroy(context.Background(), "https://res.cloudinary.com/demo/image/upload/v1/pets/p1.jpg")
	if err == nil {
		t.Fatal("expected error for non-ok result")
	}
}
