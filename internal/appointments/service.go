package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"vetcare-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyReason       = errors.New("decline reason is required")
	ErrNoMedications     = errors.New("no medications with a name given")
	ErrDateInPast        = errors.New("date in the past")
	ErrSlotNotOffered    = errors.New("slot outside clinic hours")
	ErrSlotPassed        = errors.New("slot already passed")
	ErrSlotTaken         = errors.New("slot already booked")
	ErrBlockNotFound     = errors.New("block not found")
)

type Notifier interface {
	SendBookingReceived(ctx context.Context, appointment Appointment) (string, error)
	SendAppointmentApproved(ctx context.Context, appointment Appointment) (string, error)
	SendAppointmentDeclined(ctx context.Context, appointment Appointment) (string, error)
}

type Service struct {
	repo     Repository
	location *time.Location
	notifier Notifier
}

func NewService(repo Repository, location *time.Location, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		location: location,
		notifier: notifier,
	}
}

func (s *Service) NotifyBookingReceived(ctx context.Context, appointment Appointment) error {
	if s.notifier == nil {
		return nil
	}
	_, err := s.notifier.SendBookingReceived(ctx, appointment)
	return err
}

func (s *Service) NotifyDecision(ctx context.Context, appointment Appointment) error {
	if s.notifier == nil {
		return nil
	}
	var err error
	switch appointment.Status {
	case StatusApproved:
		_, err = s.notifier.SendAppointmentApproved(ctx, appointment)
	case StatusDeclined:
		_, err = s.notifier.SendAppointmentDeclined(ctx, appointment)
	}
	return err
}

// Owner identifies the account booking or owning an appointment.
type Owner struct {
	ID    string
	Name  string
	Email string
}

// Book creates a pending appointment. The slot is checked against the store,
// never against client-held state; the unique date+time index settles whatever
// race remains between the check and the insert.
func (s *Service) Book(ctx context.Context, owner Owner, req BookingRequest) (Appointment, error) {
	now := time.Now().In(s.location)

	past, err := schedule.IsDatePast(req.Date, s.location, now)
	if err != nil {
		return Appointment{}, err
	}
	if past {
		return Appointment{}, ErrDateInPast
	}

	allowed, err := schedule.IsSlotAllowed(req.Date, req.Time, s.location)
	if err != nil {
		return Appointment{}, err
	}
	if !allowed {
		return Appointment{}, ErrSlotNotOffered
	}

	pastSlot, err := schedule.IsSlotPast(req.Date, req.Time, s.location, now)
	if err != nil {
		return Appointment{}, err
	}
	if pastSlot {
		return Appointment{}, ErrSlotPassed
	}

	reserved, err := s.repo.ReservedIntervals(ctx, req.Date)
	if err != nil {
		return Appointment{}, err
	}
	startMin, err := schedule.ParseClockToMinutes(req.Time)
	if err != nil {
		return Appointment{}, err
	}
	current := schedule.Interval{Start: startMin, End: startMin + schedule.SlotMinutes}
	for _, interval := range reserved {
		if schedule.Overlaps(current, interval) {
			return Appointment{}, ErrSlotTaken
		}
	}

	appointment := Appointment{
		ID:         primitive.NewObjectID().Hex(),
		OwnerID:    owner.ID,
		OwnerName:  owner.Name,
		OwnerEmail: owner.Email,
		PetName:    strings.TrimSpace(req.PetName),
		AnimalType: strings.TrimSpace(req.AnimalType),
		PetAge:     strings.TrimSpace(req.PetAge),
		Breed:      strings.TrimSpace(req.Breed),
		Service:    strings.TrimSpace(req.Service),
		Date:       req.Date,
		Time:       req.Time,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, err
	}

	return appointment, nil
}

func (s *Service) Get(ctx context.Context, id string) (Appointment, []Medication, error) {
	appointment, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, nil, ErrNotFound
		}
		return Appointment{}, nil, err
	}

	var meds []Medication
	if appointment.MedicationAdded {
		meds, err = s.repo.MedicationsFor(ctx, appointment.ID)
		if err != nil {
			return Appointment{}, nil, err
		}
	}
	return appointment, meds, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, int64, error) {
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidTransition
	}
	items, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Approve re-reads the record immediately before writing so an appointment the
// owner deleted in the meantime surfaces as not-found instead of a silent
// no-op, then writes with a status=pending guard.
func (s *Service) Approve(ctx context.Context, id string) (Appointment, error) {
	return s.transition(ctx, id, StatusApproved, nil)
}

func (s *Service) Decline(ctx context.Context, id, reason string) (Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Appointment{}, ErrEmptyReason
	}
	return s.transition(ctx, id, StatusDeclined, map[string]interface{}{
		"declineNotes": reason,
	})
}

func (s *Service) ScheduleFollowUp(ctx context.Context, id string, req FollowUpRequest) (Appointment, error) {
	if _, err := schedule.ParseDate(req.Date, s.location); err != nil {
		return Appointment{}, err
	}
	return s.transition(ctx, id, StatusFollowup, map[string]interface{}{
		"followUpDate":  req.Date,
		"followUpNotes": strings.TrimSpace(req.Notes),
	})
}

// AttachMedications completes an approved appointment with its prescription.
// Rows without a name are dropped before anything is written; positions keep
// the rows in the order the admin entered them.
func (s *Service) AttachMedications(ctx context.Context, id string, rows []MedicationRow) (Appointment, []Medication, error) {
	appointment, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, nil, ErrNotFound
		}
		return Appointment{}, nil, err
	}
	if !CanTransition(appointment.Status, StatusCompleted) {
		return Appointment{}, nil, ErrInvalidTransition
	}

	now := time.Now().In(s.location)
	meds := make([]Medication, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		meds = append(meds, Medication{
			ID:            primitive.NewObjectID().Hex(),
			AppointmentID: appointment.ID,
			Name:          name,
			Dosage:        strings.TrimSpace(row.Dosage),
			Unit:          strings.TrimSpace(row.Unit),
			Interval:      strings.TrimSpace(row.Interval),
			Notes:         strings.TrimSpace(row.Notes),
			Position:      len(meds),
			CreatedAt:     now,
		})
	}
	if len(meds) == 0 {
		return Appointment{}, nil, ErrNoMedications
	}

	updated, err := s.repo.AttachMedications(ctx, appointment.ID, appointment.Status, meds, now)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, nil, ErrNotFound
		}
		return Appointment{}, nil, err
	}
	return updated, meds, nil
}

func (s *Service) transition(ctx context.Context, id, to string, extra map[string]interface{}) (Appointment, error) {
	appointment, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	if !CanTransition(appointment.Status, to) {
		return Appointment{}, ErrInvalidTransition
	}

	updated, err := s.repo.SetStatus(ctx, appointment.ID, appointment.Status, to, extra, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The record changed or vanished between the read and the write.
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return updated, nil
}

func (s *Service) AvailableSlots(ctx context.Context, date string, now time.Time) ([]string, error) {
	slots, err := schedule.GenerateSlots(date, s.location)
	if err != nil {
		return nil, err
	}

	reserved, err := s.repo.ReservedIntervals(ctx, date)
	if err != nil {
		return nil, err
	}

	slots, err = schedule.FilterOverlapping(slots, schedule.SlotMinutes, reserved)
	if err != nil {
		return nil, err
	}

	return schedule.FilterPastSlots(date, slots, s.location, now)
}

func (s *Service) CreateBlock(ctx context.Context, req BlockRequest) (ReservationBlock, error) {
	now := time.Now().In(s.location)

	past, err := schedule.IsDatePast(req.Date, s.location, now)
	if err != nil {
		return ReservationBlock{}, err
	}
	if past {
		return ReservationBlock{}, ErrDateInPast
	}

	allowed, err := schedule.IsSlotAllowed(req.Date, req.Time, s.location)
	if err != nil {
		return ReservationBlock{}, err
	}
	if !allowed {
		return ReservationBlock{}, ErrSlotNotOffered
	}

	block := ReservationBlock{
		ID:        primitive.NewObjectID().Hex(),
		Date:      req.Date,
		Time:      req.Time,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedAt: now,
	}
	if err := s.repo.CreateBlock(ctx, block); err != nil {
		return ReservationBlock{}, err
	}
	return block, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteBlock(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !deleted {
		return ErrBlockNotFound
	}
	return nil
}
