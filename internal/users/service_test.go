package users

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepository struct {
	users  map[string]User
	resets map[string]PasswordReset
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:  make(map[string]User),
		resets: make(map[string]PasswordReset),
	}
}

func (f *fakeRepository) Create(ctx context.Context, user User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeRepository) GetByID(ctx context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, mongo.ErrNoDocuments
	}
	return u, nil
}

func (f *fakeRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, mongo.ErrNoDocuments
}

func (f *fakeRepository) List(ctx context.Context, limit, offset int64) ([]User, error) {
	items := make([]User, 0, len(f.users))
	for _, u := range f.users {
		items = append(items, u)
	}
	return items, nil
}

func (f *fakeRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepository) UpdateProfile(ctx context.Context, id, name, phone string, now time.Time) (bool, error) {
	u, ok := f.users[id]
	if !ok {
		return false, nil
	}
	u.Name, u.Phone, u.UpdatedAt = name, phone, now
	f.users[id] = u
	return true, nil
}

func (f *fakeRepository) SetPhotoURL(ctx context.Context, id, photoURL string) (bool, error) {
	u, ok := f.users[id]
	if !ok {
		return false, nil
	}
	u.PhotoURL = photoURL
	f.users[id] = u
	return true, nil
}

func (f *fakeRepository) SetPasswordHash(ctx context.Context, id, hash string, now time.Time) (bool, error) {
	u, ok := f.users[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	u.UpdatedAt = now
	f.users[id] = u
	return true, nil
}

func (f *fakeRepository) CreateReset(ctx context.Context, reset PasswordReset) error {
	f.resets[reset.ID] = reset
	return nil
}

func (f *fakeRepository) LatestResetByEmail(ctx context.Context, email string) (PasswordReset, error) {
	var latest PasswordReset
	found := false
	for _, r := range f.resets {
		if r.Email != email {
			continue
		}
		if !found || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
			found = true
		}
	}
	if !found {
		return PasswordReset{}, mongo.ErrNoDocuments
	}
	return latest, nil
}

func (f *fakeRepository) DeleteResetsForEmail(ctx context.Context, email string) error {
	for id, r := range f.resets {
		if r.Email == email {
			delete(f.resets, id)
		}
	}
	return nil
}

type fakeMailer struct {
	codes []string
	to    []string
}

func (f *fakeMailer) SendPasswordResetCode(ctx context.Context, toEmail, toName, code string) (string, error) {
	f.codes = append(f.codes, code)
	f.to = append(f.to, toEmail)
	return "msg-1", nil
}

func newTestService(t *testing.T) (*Service, *fakeRepository, *fakeMailer) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	repo := newFakeRepository()
	mailer := &fakeMailer{}
	return NewService(repo, mailer, nil, loc, 10*time.Minute, slog.Default()), repo, mailer
}

func TestRegisterNormalizesEmailAndHashesPassword(t *testing.T) {
	svc, repo, _ := newTestService(t)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email: "  Jane@Example.COM ", Password: "hunter2hunter2", Name: "Jane Cruz",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.Email != "jane@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Role != RoleUser {
		t.Fatalf("expected role user, got %q", user.Role)
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter2hunter2" {
		t.Fatal("password not hashed")
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(repo.users))
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := RegisterRequest{Email: "jane@example.com", Password: "hunter2hunter2", Name: "Jane"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "jane@example.com", Password: "hunter2hunter2", Name: "Jane",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), "Jane@Example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "jane@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody@example.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestPasswordResetRoundTrip(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "jane@example.com", Password: "hunter2hunter2", Name: "Jane",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if err := svc.RequestPasswordReset(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}
	if len(mailer.codes) != 1 || len(mailer.codes[0]) != 6 {
		t.Fatalf("expected one 6-digit code, got %v", mailer.codes)
	}
	code := mailer.codes[0]

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if err := svc.ConfirmPasswordReset(context.Background(), "jane@example.com", wrong, "newpassword1"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for wrong code, got %v", err)
	}

	if err := svc.ConfirmPasswordReset(context.Background(), "jane@example.com", code, "newpassword1"); err != nil {
		t.Fatalf("ConfirmPasswordReset error: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "jane@example.com", "newpassword1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "jane@example.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}

	// Codes are single-use.
	if err := svc.ConfirmPasswordReset(context.Background(), "jane@example.com", code, "anotherpass1"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode after use, got %v", err)
	}
	if len(repo.resets) != 0 {
		t.Fatalf("resets not burned: %d left", len(repo.resets))
	}
}

func TestPasswordResetExpiredCode(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "jane@example.com", Password: "hunter2hunter2", Name: "Jane",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := svc.RequestPasswordReset(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}

	for id, r := range repo.resets {
		r.ExpiresAt = time.Now().Add(-time.Minute)
		repo.resets[id] = r
	}

	err := svc.ConfirmPasswordReset(context.Background(), "jane@example.com", mailer.codes[0], "newpassword1")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for expired code, got %v", err)
	}
}

func TestResetForUnknownEmailIsSilent(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	if err := svc.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if len(mailer.codes) != 0 || len(repo.resets) != 0 {
		t.Fatal("nothing should be issued for unknown email")
	}
}

func TestNewRequestReplacesOldCode(t *testing.T) {
	svc, _, mailer := newTestService(t)
	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "jane@example.com", Password: "hunter2hunter2", Name: "Jane",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := svc.RequestPasswordReset(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}
	if err := svc.RequestPasswordReset(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}

	first, second := mailer.codes[0], mailer.codes[1]
	if first != second {
		if err := svc.ConfirmPasswordReset(context.Background(), "jane@example.com", first, "newpassword1"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected first code to be dead, got %v", err)
		}
	}
	if err := svc.ConfirmPasswordReset(context.Background(), "jane@example.com", second, "newpassword1"); err != nil {
		t.Fatalf("latest code rejected: %v", err)
	}
}

func TestHasAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	exists, err := svc.HasAdmin(context.Background())
	if err != nil || exists {
		t.Fatalf("expected no admin yet, got %v %v", exists, err)
	}
	if _, err := svc.CreateStaff(context.Background(), CreateStaffRequest{
		Email: "vet@example.com", Password: "hunter2hunter2", Name: "Dr. Reyes",
	}); err != nil {
		t.Fatalf("CreateStaff error: %v", err)
	}
	exists, err = svc.HasAdmin(context.Background())
	if err != nil || !exists {
		t.Fatalf("expected admin to exist, got %v %v", exists, err)
	}
}
