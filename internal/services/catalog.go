package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"vetcare-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("service not found")
	ErrSlugTaken = errors.New("service already exists")
)

// Service is one catalog entry the booking screens offer. The slug doubles as
// the document id so seeding is idempotent.
type Service struct {
	ID              string    `bson:"_id" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Description     string    `bson:"description,omitempty" json:"description,omitempty"`
	DurationMinutes int       `bson:"durationMinutes" json:"durationMinutes"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

type UpsertRequest struct {
	Name            string `json:"name" validate:"required,max=120"`
	Description     string `json:"description" validate:"max=500"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,min=5,max=240"`
}

type Catalog struct {
	col      *mongo.Collection
	location *time.Location
}

func NewCatalog(col *mongo.Collection, location *time.Location) *Catalog {
	return &Catalog{col: col, location: location}
}

func (c *Catalog) List(ctx context.Context) ([]Service, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := c.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Service, 0)
	for cursor.Next(ctx) {
		var svc Service
		if err := cursor.Decode(&svc); err != nil {
			return nil, err
		}
		items = append(items, svc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (c *Catalog) Create(ctx context.Context, req UpsertRequest) (Service, error) {
	now := time.Now().In(c.location)
	duration := req.DurationMinutes
	if duration == 0 {
		duration = 30
	}
	svc := Service{
		ID:              utils.Slugify(req.Name),
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		DurationMinutes: duration,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if svc.ID == "" {
		return Service{}, errors.New("service name produces an empty slug")
	}
	if _, err := c.col.InsertOne(ctx, svc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Service{}, ErrSlugTaken
		}
		return Service{}, err
	}
	return svc, nil
}

func (c *Catalog) Update(ctx context.Context, slug string, req UpsertRequest) (Service, error) {
	now := time.Now().In(c.location)
	set := bson.M{
		"name":      strings.TrimSpace(req.Name),
		"updatedAt": now,
	}
	if req.Description != "" {
		set["description"] = strings.TrimSpace(req.Description)
	}
	if req.DurationMinutes > 0 {
		set["durationMinutes"] = req.DurationMinutes
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Service
	err := c.col.FindOneAndUpdate(ctx, bson.M{"_id": strings.TrimSpace(slug)}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Service{}, ErrNotFound
		}
		return Service{}, err
	}
	return updated, nil
}

func (c *Catalog) Delete(ctx context.Context, slug string) error {
	res, err := c.col.DeleteOne(ctx, bson.M{"_id": strings.TrimSpace(slug)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts any of the given services that are missing. Existing entries
// are left untouched so manual edits survive redeploys.
func (c *Catalog) Seed(ctx context.Context, names []string) (int, error) {
	now := time.Now().In(c.location)
	inserted := 0
	for _, name := range names {
		svc := Service{
			ID:              utils.Slugify(name),
			Name:            name,
			DurationMinutes: 30,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if _, err := c.col.InsertOne(ctx, svc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
