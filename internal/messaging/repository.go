package messaging

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	EnsureThread(ctx context.Context, userID, userName string, now time.Time) (Thread, error)
	ThreadByID(ctx context.Context, id string) (Thread, error)
	ThreadByUser(ctx context.Context, userID string) (Thread, error)
	ListThreads(ctx context.Context, limit, offset int64) ([]Thread, error)
	CountThreads(ctx context.Context) (int64, error)
	InsertMessage(ctx context.Context, message Message) error
	UpdateSummary(ctx context.Context, threadID, lastMessage, lastSenderID string, now time.Time) error
	MessagesFor(ctx context.Context, threadID string, limit, offset int64) ([]Message, error)
	MarkSeen(ctx context.Context, threadID, viewerRole string) (int64, error)
}

type MongoRepository struct {
	threads  *mongo.Collection
	messages *mongo.Collection
}

func NewRepository(threads, messages *mongo.Collection) *MongoRepository {
	return &MongoRepository{threads: threads, messages: messages}
}

// EnsureThread returns the owner's thread, creating it on first contact. The
// upsert keeps concurrent first messages from racing into two threads.
func (r *MongoRepository) EnsureThread(ctx context.Context, userID, userName string, now time.Time) (Thread, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var thread Thread
	err := r.threads.FindOneAndUpdate(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$set": bson.M{"userName": userName},
			"$setOnInsert": bson.M{
				"_id":          newID(),
				"userId":       userID,
				"lastMessage":  "",
				"lastSenderId": "",
				"createdAt":    now,
				"updatedAt":    now,
			},
		},
		opts,
	).Decode(&thread)
	if err != nil {
		return Thread{}, err
	}
	return thread, nil
}

func (r *MongoRepository) ThreadByID(ctx context.Context, id string) (Thread, error) {
	var thread Thread
	if err := r.threads.FindOne(ctx, bson.M{"_id": id}).Decode(&thread); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

func (r *MongoRepository) ThreadByUser(ctx context.Context, userID string) (Thread, error) {
	var thread Thread
	if err := r.threads.FindOne(ctx, bson.M{"userId": userID}).Decode(&thread); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

func (r *MongoRepository) ListThreads(ctx context.Context, limit, offset int64) ([]Thread, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.threads.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Thread, 0)
	for cursor.Next(ctx) {
		var thread Thread
		if err := cursor.Decode(&thread); err != nil {
			return nil, err
		}
		items = append(items, thread)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) CountThreads(ctx context.Context) (int64, error) {
	return r.threads.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) InsertMessage(ctx context.Context, message Message) error {
	_, err := r.messages.InsertOne(ctx, message)
	return err
}

func (r *MongoRepository) UpdateSummary(ctx context.Context, threadID, lastMessage, lastSenderID string, now time.Time) error {
	_, err := r.threads.UpdateOne(ctx,
		bson.M{"_id": threadID},
		bson.M{"$set": bson.M{
			"lastMessage":  lastMessage,
			"lastSenderId": lastSenderID,
			"updatedAt":    now,
		}},
	)
	return err
}

func (r *MongoRepository) MessagesFor(ctx context.Context, threadID string, limit, offset int64) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.messages.Find(ctx, bson.M{"threadId": threadID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Message, 0)
	for cursor.Next(ctx) {
		var message Message
		if err := cursor.Decode(&message); err != nil {
			return nil, err
		}
		items = append(items, message)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// MarkSeen flags every unseen message written by the other side of the
// conversation. Re-running it matches nothing and is harmless.
func (r *MongoRepository) MarkSeen(ctx context.Context, threadID, viewerRole string) (int64, error) {
	res, err := r.messages.UpdateMany(ctx,
		bson.M{
			"threadId":   threadID,
			"senderRole": bson.M{"$ne": viewerRole},
			"seen":       false,
		},
		bson.M{"$set": bson.M{"seen": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
