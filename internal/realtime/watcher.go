package realtime

import (
	"context"
	"log/slog"
	"time"

	"vetcare-backend/internal/cache"
	"vetcare-backend/internal/messaging"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Watcher tails the store's change streams and turns writes into hub pushes,
// so clients learn about updates without polling. It also drops the cached
// availability for any date an appointment write touches, keeping the store
// the single source of truth.
type Watcher struct {
	appointmentsCol *mongo.Collection
	messagesCol     *mongo.Collection
	threadsCol      *mongo.Collection
	hub             *Hub
	cache           cache.Cache
	log             *slog.Logger
}

func NewWatcher(appointmentsCol, messagesCol, threadsCol *mongo.Collection, hub *Hub, c cache.Cache, log *slog.Logger) *Watcher {
	return &Watcher{
		appointmentsCol: appointmentsCol,
		messagesCol:     messagesCol,
		threadsCol:      threadsCol,
		hub:             hub,
		cache:           c,
		log:             log,
	}
}

// Run tails both streams until the context is cancelled. Change streams need
// a replica set; on standalone Mongo the streams fail once and Run degrades
// to a no-op with a warning, the rest of the server is unaffected.
func (w *Watcher) Run(ctx context.Context) {
	go w.watch(ctx, w.appointmentsCol, "appointments", w.handleAppointmentEvent)
	go w.watch(ctx, w.messagesCol, "messages", w.handleMessageEvent)
}

func (w *Watcher) watch(ctx context.Context, col *mongo.Collection, name string, handle func(ctx context.Context, doc bson.M)) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	for {
		stream, err := col.Watch(ctx, pipeline, opts)
		if err != nil {
			w.log.Warn("realtime watcher: stream unavailable",
				slog.String("collection", name),
				slog.String("error", err.Error()),
			)
			return
		}

		for stream.Next(ctx) {
			var change struct {
				FullDocument bson.M `bson:"fullDocument"`
			}
			if err := stream.Decode(&change); err != nil {
				continue
			}
			if change.FullDocument == nil {
				continue
			}
			handle(ctx, change.FullDocument)
		}

		err = stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.log.Warn("realtime watcher: stream interrupted, retrying",
				slog.String("collection", name),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (w *Watcher) handleAppointmentEvent(ctx context.Context, doc bson.M) {
	ownerID, _ := doc["ownerId"].(string)
	delete(doc, "ownerEmail")
	w.hub.Broadcast(Event{Type: EventAppointment, Data: doc}, ownerID)

	if date, ok := doc["date"].(string); ok && date != "" && w.cache != nil {
		_ = w.cache.Delete(ctx, "availability:"+date)
	}
}

func (w *Watcher) handleMessageEvent(ctx context.Context, doc bson.M) {
	threadID, _ := doc["threadId"].(string)
	if threadID == "" {
		return
	}

	// The message document carries the sender, not the owner; resolve the
	// thread so the owner's client gets the push either way.
	var thread messaging.Thread
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.threadsCol.FindOne(lookupCtx, bson.M{"_id": threadID}).Decode(&thread); err != nil {
		w.log.Warn("realtime watcher: thread lookup failed",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.hub.Broadcast(Event{Type: EventMessage, Data: doc}, thread.UserID)
}
