package appointments

import (
	"context"
	"time"

	"vetcare-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, appointment Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	SetStatus(ctx context.Context, id, from, to string, extra map[string]interface{}, now time.Time) (Appointment, error)
	AttachMedications(ctx context.Context, id, from string, meds []Medication, now time.Time) (Appointment, error)
	MedicationsFor(ctx context.Context, appointmentID string) ([]Medication, error)
	ReservedIntervals(ctx context.Context, date string) ([]schedule.Interval, error)
	CreateBlock(ctx context.Context, block ReservationBlock) error
	DeleteBlock(ctx context.Context, id string) (bool, error)
}

type MongoRepository struct {
	appointments *mongo.Collection
	medications  *mongo.Collection
	blocks       *mongo.Collection
}

func NewRepository(appointments, medications, blocks *mongo.Collection) *MongoRepository {
	return &MongoRepository{
		appointments: appointments,
		medications:  medications,
		blocks:       blocks,
	}
}

func (r *MongoRepository) Create(ctx context.Context, appointment Appointment) error {
	_, err := r.appointments.InsertOne(ctx, appointment)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	var appointment Appointment
	if err := r.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&appointment); err != nil {
		return Appointment{}, err
	}
	return appointment, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.appointments.Find(ctx, r.filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Appointment, 0)
	for cursor.Next(ctx) {
		var appointment Appointment
		if err := cursor.Decode(&appointment); err != nil {
			return nil, err
		}
		items = append(items, appointment)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.appointments.CountDocuments(ctx, r.filterToBSON(filter))
}

// SetStatus flips the lifecycle label only when the record still carries the
// expected prior status, so a racing admin action loses cleanly instead of
// overwriting.
func (r *MongoRepository) SetStatus(ctx context.Context, id, from, to string, extra map[string]interface{}, now time.Time) (Appointment, error) {
	set := bson.M{
		"status":    to,
		"updatedAt": now,
	}
	for k, v := range extra {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Appointment
	err := r.appointments.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		opts,
	).Decode(&updated)
	if err != nil {
		return Appointment{}, err
	}
	return updated, nil
}

// AttachMedications flips the status before inserting the rows, so an
// appointment that lost the race to another admin action gets no orphaned
// medications. If the inserts then fail, the flip is rolled back so the
// admin can retry.
func (r *MongoRepository) AttachMedications(ctx context.Context, id, from string, meds []Medication, now time.Time) (Appointment, error) {
	updated, err := r.SetStatus(ctx, id, from, StatusCompleted, map[string]interface{}{
		"medicationAdded": true,
	}, now)
	if err != nil {
		return Appointment{}, err
	}

	docs := make([]interface{}, 0, len(meds))
	for _, m := range meds {
		docs = append(docs, m)
	}
	if _, err := r.medications.InsertMany(ctx, docs); err != nil {
		_, _ = r.appointments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
			"status":          from,
			"medicationAdded": false,
			"updatedAt":       now,
		}})
		return Appointment{}, err
	}

	return updated, nil
}

func (r *MongoRepository) MedicationsFor(ctx context.Context, appointmentID string) ([]Medication, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cursor, err := r.medications.Find(ctx, bson.M{"appointmentId": appointmentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Medication, 0)
	for cursor.Next(ctx) {
		var med Medication
		if err := cursor.Decode(&med); err != nil {
			return nil, err
		}
		items = append(items, med)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// ReservedIntervals reports every slot on a date held by a live appointment or
// an admin block. Declined appointments free their slot.
func (r *MongoRepository) ReservedIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	intervals := make([]schedule.Interval, 0)

	cursor, err := r.appointments.Find(ctx, bson.M{
		"date":   date,
		"status": bson.M{"$ne": StatusDeclined},
	})
	if err != nil {
		return nil, err
	}
	for cursor.Next(ctx) {
		var appointment Appointment
		if err := cursor.Decode(&appointment); err != nil {
			continue
		}
		start, err := schedule.ParseClockToMinutes(appointment.Time)
		if err != nil {
			continue
		}
		intervals = append(intervals, schedule.Interval{Start: start, End: start + schedule.SlotMinutes})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	cursor.Close(ctx)

	blockCursor, err := r.blocks.Find(ctx, bson.M{"date": date})
	if err != nil {
		return nil, err
	}
	for blockCursor.Next(ctx) {
		var block ReservationBlock
		if err := blockCursor.Decode(&block); err != nil {
			continue
		}
		start, err := schedule.ParseClockToMinutes(block.Time)
		if err != nil {
			continue
		}
		intervals = append(intervals, schedule.Interval{Start: start, End: start + schedule.SlotMinutes})
	}
	if err := blockCursor.Err(); err != nil {
		return nil, err
	}
	blockCursor.Close(ctx)

	return intervals, nil
}

func (r *MongoRepository) CreateBlock(ctx context.Context, block ReservationBlock) error {
	_, err := r.blocks.InsertOne(ctx, block)
	return err
}

func (r *MongoRepository) DeleteBlock(ctx context.Context, id string) (bool, error) {
	res, err := r.blocks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.OwnerID != "" {
		query["ownerId"] = filter.OwnerID
	}
	if filter.Date != "" {
		query["date"] = filter.Date
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}
