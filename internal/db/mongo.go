package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Users             *mongo.Collection
	Pets              *mongo.Collection
	Services          *mongo.Collection
	Appointments      *mongo.Collection
	Medications       *mongo.Collection
	Threads           *mongo.Collection
	Messages          *mongo.Collection
	ReservationBlocks *mongo.Collection
	PasswordResets    *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	database := client.Database(dbName)

	cols := &Collections{
		Users:             database.Collection("users"),
		Pets:              database.Collection("pets"),
		Services:          database.Collection("services"),
		Appointments:      database.Collection("appointments"),
		Medications:       database.Collection("medications"),
		Threads:           database.Collection("threads"),
		Messages:          database.Collection("messages"),
		ReservationBlocks: database.Collection("reservation_blocks"),
		PasswordResets:    database.Collection("password_resets"),
	}

	return client, cols, nil
}

// slotHoldingStatuses enumerates the appointment states that keep their slot.
// Partial indexes cannot express status != declined, so the unique index
// filter lists the complement instead ($in needs MongoDB 6.0+).
var slotHoldingStatuses = []string{"pending", "approved", "followup", "completed"}

// appointmentIndexModels builds the appointment indexes. The unique date+time
// index is the last arbiter against double bookings; declined appointments
// fall outside the partial filter so a freed slot can be rebooked.
func appointmentIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"status": bson.M{"$in": slotHoldingStatuses}},
			),
		},
		{
			Keys: bson.D{{Key: "date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := cols.Users.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Pets.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Services.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Appointments.Indexes().CreateMany(indexTimeout, appointmentIndexModels())
	if err != nil {
		return err
	}

	_, err = cols.Medications.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "appointmentId", Value: 1}, {Key: "position", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Threads.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updatedAt", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Messages.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "threadId", Value: 1}, {Key: "createdAt", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.ReservationBlocks.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.PasswordResets.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	return nil
}
