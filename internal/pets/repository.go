package pets

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, pet Pet) error
	GetByID(ctx context.Context, id string) (Pet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Pet, error)
	Update(ctx context.Context, pet Pet) (bool, error)
	SetPhotoURL(ctx context.Context, id, photoURL string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type MongoRepository struct {
	pets *mongo.Collection
}

func NewRepository(pets *mongo.Collection) *MongoRepository {
	return &MongoRepository{pets: pets}
}

func (r *MongoRepository) Create(ctx context.Context, pet Pet) error {
	_, err := r.pets.InsertOne(ctx, pet)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Pet, error) {
	var pet Pet
	if err := r.pets.FindOne(ctx, bson.M{"_id": id}).Decode(&pet); err != nil {
		return Pet{}, err
	}
	return pet, nil
}

func (r *MongoRepository) ListByOwner(ctx context.Context, ownerID string) ([]Pet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.pets.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Pet, 0)
	for cursor.Next(ctx) {
		var pet Pet
		if err := cursor.Decode(&pet); err != nil {
			return nil, err
		}
		items = append(items, pet)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Update(ctx context.Context, pet Pet) (bool, error) {
	res, err := r.pets.UpdateOne(ctx,
		bson.M{"_id": pet.ID},
		bson.M{"$set": bson.M{
			"name":       pet.Name,
			"animalType": pet.AnimalType,
			"breed":      pet.Breed,
			"age":        pet.Age,
			"updatedAt":  pet.UpdatedAt,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) SetPhotoURL(ctx context.Context, id, photoURL string) (bool, error) {
	res, err := r.pets.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"photoUrl": photoURL}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.pets.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
