package pets

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("pet not found")

// PhotoStore is the CDN that holds pet photos; implemented by the media client.
type PhotoStore interface {
	UploadBase64(ctx context.Context, data, publicID string) (string, error)
	Destroy(ctx context.Context, imageURL string) error
}

type Service struct {
	repo     Repository
	photos   PhotoStore
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, photos PhotoStore, location *time.Location, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		photos:   photos,
		location: location,
		log:      log,
	}
}

func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (Pet, error) {
	now := time.Now().In(s.location)
	pet := Pet{
		ID:         primitive.NewObjectID().Hex(),
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(req.Name),
		AnimalType: strings.TrimSpace(req.AnimalType),
		Breed:      strings.TrimSpace(req.Breed),
		Age:        strings.TrimSpace(req.Age),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, pet); err != nil {
		return Pet{}, err
	}
	return pet, nil
}

// get scopes every read to the owner; other accounts see not-found.
func (s *Service) get(ctx context.Context, ownerID, id string) (Pet, error) {
	pet, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Pet{}, ErrNotFound
		}
		return Pet{}, err
	}
	if pet.OwnerID != ownerID {
		return Pet{}, ErrNotFound
	}
	return pet, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (Pet, error) {
	return s.get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Pet, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *Service) Update(ctx context.Context, ownerID, id string, req UpdateRequest) (Pet, error) {
	pet, err := s.get(ctx, ownerID, id)
	if err != nil {
		return Pet{}, err
	}

	pet.Name = strings.TrimSpace(req.Name)
	pet.AnimalType = strings.TrimSpace(req.AnimalType)
	pet.Breed = strings.TrimSpace(req.Breed)
	pet.Age = strings.TrimSpace(req.Age)
	pet.UpdatedAt = time.Now().In(s.location)

	matched, err := s.repo.Update(ctx, pet)
	if err != nil {
		return Pet{}, err
	}
	if !matched {
		return Pet{}, ErrNotFound
	}
	return pet, nil
}

// SetPhoto uploads the image, stores the served URL and then drops the old
// photo best-effort; a stale object in the CDN is preferable to a record that
// points at nothing.
func (s *Service) SetPhoto(ctx context.Context, ownerID, id, data string) (Pet, error) {
	pet, err := s.get(ctx, ownerID, id)
	if err != nil {
		return Pet{}, err
	}
	if s.photos == nil {
		return Pet{}, errors.New("photo storage not configured")
	}

	served, err := s.photos.UploadBase64(ctx, data, "pets/"+pet.ID)
	if err != nil {
		return Pet{}, err
	}

	previous := pet.PhotoURL
	matched, err := s.repo.SetPhotoURL(ctx, pet.ID, served)
	if err != nil {
		return Pet{}, err
	}
	if !matched {
		return Pet{}, ErrNotFound
	}
	pet.PhotoURL = served

	if previous != "" && previous != served {
		if err := s.photos.Destroy(ctx, previous); err != nil {
			s.log.Warn("pets photo: old image cleanup failed",
				slog.String("pet_id", pet.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return pet, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	pet, err := s.get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, pet.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	if pet.PhotoURL != "" && s.photos != nil {
		if err := s.photos.Destroy(ctx, pet.PhotoURL); err != nil {
			s.log.Warn("pets delete: image cleanup failed",
				slog.String("pet_id", pet.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
