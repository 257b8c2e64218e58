package users

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, limit, offset int64) ([]User, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	UpdateProfile(ctx context.Context, id, name, phone string, now time.Time) (bool, error)
	SetPhotoURL(ctx context.Context, id, photoURL string) (bool, error)
	SetPasswordHash(ctx context.Context, id, hash string, now time.Time) (bool, error)
	CreateReset(ctx context.Context, reset PasswordReset) error
	LatestResetByEmail(ctx context.Context, email string) (PasswordReset, error)
	DeleteResetsForEmail(ctx context.Context, email string) error
}

type MongoRepository struct {
	users  *mongo.Collection
	resets *mongo.Collection
}

func NewRepository(users, resets *mongo.Collection) *MongoRepository {
	return &MongoRepository{users: users, resets: resets}
}

func (r *MongoRepository) Create(ctx context.Context, user User) error {
	_, err := r.users.InsertOne(ctx, user)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *MongoRepository) List(ctx context.Context, limit, offset int64) ([]User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]User, 0)
	for cursor.Next(ctx) {
		var user User
		if err := cursor.Decode(&user); err != nil {
			return nil, err
		}
		items = append(items, user)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{"role": role})
}

func (r *MongoRepository) UpdateProfile(ctx context.Context, id, name, phone string, now time.Time) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"name": name, "phone": phone, "updatedAt": now}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) SetPhotoURL(ctx context.Context, id, photoURL string) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"photoUrl": photoURL}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) SetPasswordHash(ctx context.Context, id, hash string, now time.Time) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": now}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) CreateReset(ctx context.Context, reset PasswordReset) error {
	_, err := r.resets.InsertOne(ctx, reset)
	return err
}

func (r *MongoRepository) LatestResetByEmail(ctx context.Context, email string) (PasswordReset, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var reset PasswordReset
	if err := r.resets.FindOne(ctx, bson.M{"email": email}, opts).Decode(&reset); err != nil {
		return PasswordReset{}, err
	}
	return reset, nil
}

func (r *MongoRepository) DeleteResetsForEmail(ctx context.Context, email string) error {
	_, err := r.resets.DeleteMany(ctx, bson.M{"email": email})
	return err
}
