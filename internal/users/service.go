package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"vetcare-backend/internal/auth"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid or expired code")
)

// ResetMailer delivers the one-time reset code; implemented by the mail relay.
type ResetMailer interface {
	SendPasswordResetCode(ctx context.Context, toEmail, toName, code string) (string, error)
}

// PhotoStore holds profile photos; implemented by the media client.
type PhotoStore interface {
	UploadBase64(ctx context.Context, data, publicID string) (string, error)
	Destroy(ctx context.Context, imageURL string) error
}

type Service struct {
	repo     Repository
	mailer   ResetMailer
	photos   PhotoStore
	location *time.Location
	otpTTL   time.Duration
	log      *slog.Logger
}

func NewService(repo Repository, mailer ResetMailer, photos PhotoStore, location *time.Location, otpTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		mailer:   mailer,
		photos:   photos,
		location: location,
		otpTTL:   otpTTL,
		log:      log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	return s.create(ctx, req.Email, req.Password, req.Name, req.Phone, RoleUser)
}

// CreateStaff registers an admin account. Only reachable behind the staff guard.
func (s *Service) CreateStaff(ctx context.Context, req CreateStaffRequest) (User, error) {
	return s.create(ctx, req.Email, req.Password, req.Name, "", RoleAdmin)
}

func (s *Service) create(ctx context.Context, email, password, name, phone, role string) (User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}

	now := time.Now().In(s.location)
	user := User{
		ID:           primitive.NewObjectID().Hex(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies the password. A missing account and a wrong password
// produce the same error so login responses never leak which one it was.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	user, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (User, error) {
	now := time.Now().In(s.location)
	matched, err := s.repo.UpdateProfile(ctx, id, strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone), now)
	if err != nil {
		return User{}, err
	}
	if !matched {
		return User{}, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *Service) SetPhoto(ctx context.Context, id, data string) (User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if s.photos == nil {
		return User{}, errors.New("photo storage not configured")
	}

	served, err := s.photos.UploadBase64(ctx, data, "profiles/"+user.ID)
	if err != nil {
		return User{}, err
	}

	previous := user.PhotoURL
	matched, err := s.repo.SetPhotoURL(ctx, user.ID, served)
	if err != nil {
		return User{}, err
	}
	if !matched {
		return User{}, ErrNotFound
	}
	user.PhotoURL = served

	if previous != "" && previous != served {
		if err := s.photos.Destroy(ctx, previous); err != nil {
			s.log.Warn("users photo: old image cleanup failed",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, limit, offset int64) ([]User, int64, error) {
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// HasAdmin reports whether any staff account exists yet; the bootstrap
// endpoint only works while this is false.
func (s *Service) HasAdmin(ctx context.Context) (bool, error) {
	n, err := s.repo.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// RequestPasswordReset issues a fresh 6-digit code and emails it. Unknown
// addresses get the same outward result as known ones, so the endpoint cannot
// be used to probe which emails have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.log.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(code)
	if err != nil {
		return err
	}

	now := time.Now().In(s.location)
	// Any earlier code dies the moment a new one is issued.
	if err := s.repo.DeleteResetsForEmail(ctx, email); err != nil {
		return err
	}
	if err := s.repo.CreateReset(ctx, PasswordReset{
		ID:        primitive.NewObjectID().Hex(),
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.otpTTL),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if s.mailer == nil {
		return errors.New("mail relay not configured")
	}
	if _, err := s.mailer.SendPasswordResetCode(ctx, user.Email, user.Name, code); err != nil {
		return err
	}
	return nil
}

// ConfirmPasswordReset checks the code against the latest issue, replaces the
// password and burns every outstanding code for the address.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInvalidCode
		}
		return err
	}

	reset, err := s.repo.LatestResetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInvalidCode
		}
		return err
	}

	now := time.Now().In(s.location)
	if now.After(reset.ExpiresAt) {
		return ErrInvalidCode
	}
	if err := auth.ComparePassword(reset.CodeHash, code); err != nil {
		return ErrInvalidCode
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	matched, err := s.repo.SetPasswordHash(ctx, user.ID, hash, now)
	if err != nil {
		return err
	}
	if !matched {
		return ErrNotFound
	}
	return s.repo.DeleteResetsForEmail(ctx, email)
}
