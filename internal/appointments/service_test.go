package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"vetcare-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepository struct {
	appointments map[string]Appointment
	medications  []Medication
	blocks       map[string]ReservationBlock
	writes       int

	// beforeAttach runs inside AttachMedications, before the guarded status
	// flip, to let tests race another admin action against it.
	beforeAttach func()
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		appointments: make(map[string]Appointment),
		blocks:       make(map[string]ReservationBlock),
	}
}

func (f *fakeRepository) Create(ctx context.Context, appointment Appointment) error {
	f.writes++
	f.appointments[appointment.ID] = appointment
	return nil
}

func (f *fakeRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return Appointment{}, mongo.ErrNoDocuments
	}
	return a, nil
}

func (f *fakeRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error) {
	items := make([]Appointment, 0)
	for _, a := range f.appointments {
		if filter.OwnerID != "" && a.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Date != "" && a.Date != filter.Date {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		items = append(items, a)
	}
	return items, nil
}

func (f *fakeRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	items, _ := f.List(ctx, filter, 0, 0)
	return int64(len(items)), nil
}

func (f *fakeRepository) SetStatus(ctx context.Context, id, from, to string, extra map[string]interface{}, now time.Time) (Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return Appointment{}, mongo.ErrNoDocuments
	}
	f.writes++
	a.Status = to
	a.UpdatedAt = now
	if v, ok := extra["declineNotes"].(string); ok {
		a.DeclineNotes = v
	}
	if v, ok := extra["followUpDate"].(string); ok {
		a.FollowUpDate = v
	}
	if v, ok := extra["followUpNotes"].(string); ok {
		a.FollowUpNotes = v
	}
	if v, ok := extra["medicationAdded"].(bool); ok {
		a.MedicationAdded = v
	}
	f.appointments[id] = a
	return a, nil
}

// AttachMedications mirrors the Mongo repository's write order: the guarded
// status flip decides the race, rows land only after it succeeds.
func (f *fakeRepository) AttachMedications(ctx context.Context, id, from string, meds []Medication, now time.Time) (Appointment, error) {
	if f.beforeAttach != nil {
		f.beforeAttach()
	}
	updated, err := f.SetStatus(ctx, id, from, StatusCompleted, map[string]interface{}{"medicationAdded": true}, now)
	if err != nil {
		return Appointment{}, err
	}
	f.writes++
	f.medications = append(f.medications, meds...)
	return updated, nil
}

func (f *fakeRepository) MedicationsFor(ctx context.Context, appointmentID string) ([]Medication, error) {
	items := make([]Medication, 0)
	for _, m := range f.medications {
		if m.AppointmentID == appointmentID {
			items = append(items, m)
		}
	}
	return items, nil
}

func (f *fakeRepository) ReservedIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	intervals := make([]schedule.Interval, 0)
	for _, a := range f.appointments {
		if a.Date != date || a.Status == StatusDeclined {
			continue
		}
		start, err := schedule.ParseClockToMinutes(a.Time)
		if err != nil {
			continue
		}
		intervals = append(intervals, schedule.Interval{Start: start, End: start + schedule.SlotMinutes})
	}
	for _, b := range f.blocks {
		if b.Date != date {
			continue
		}
		start, err := schedule.ParseClockToMinutes(b.Time)
		if err != nil {
			continue
		}
		intervals = append(intervals, schedule.Interval{Start: start, End: start + schedule.SlotMinutes})
	}
	return intervals, nil
}

func (f *fakeRepository) CreateBlock(ctx context.Context, block ReservationBlock) error {
	f.writes++
	f.blocks[block.ID] = block
	return nil
}

func (f *fakeRepository) DeleteBlock(ctx context.Context, id string) (bool, error) {
	if _, ok := f.blocks[id]; !ok {
		return false, nil
	}
	delete(f.blocks, id)
	return true, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepository) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	repo := newFakeRepository()
	return NewService(repo, loc, nil), repo
}

// futureDate returns an upcoming weekday at least a year out so bookings never
// trip the past-date or past-slot checks.
func futureDate(t *testing.T) string {
	t.Helper()
	d := time.Now().AddDate(1, 0, 0)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func TestBookStoresFieldsVerbatim(t *testing.T) {
	svc, repo := newTestService(t)
	date := futureDate(t)

	owner := Owner{ID: "owner-1", Name: "Jane Cruz", Email: "jane@example.com"}
	req := BookingRequest{
		AnimalType: "Dog",
		PetName:    "Bella",
		PetAge:     "3",
		Breed:      "Labrador",
		Service:    "Vaccination",
		Date:       date,
		Time:       "9:00 AM",
	}

	appointment, err := svc.Book(context.Background(), owner, req)
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if appointment.Status != StatusPending {
		t.Fatalf("expected status pending, got %q", appointment.Status)
	}
	if appointment.PetName != "Bella" || appointment.Service != "Vaccination" ||
		appointment.Date != date || appointment.Time != "9:00 AM" || appointment.AnimalType != "Dog" {
		t.Fatalf("booking fields not stored verbatim: %+v", appointment)
	}
	if appointment.OwnerID != "owner-1" || appointment.OwnerName != "Jane Cruz" {
		t.Fatalf("owner not recorded: %+v", appointment)
	}
	if _, ok := repo.appointments[appointment.ID]; !ok {
		t.Fatal("appointment not persisted")
	}
}

func TestBookRejectsPastDate(t *testing.T) {
	svc, repo := newTestService(t)
	_, err := svc.Book(context.Background(), Owner{ID: "owner-1"}, BookingRequest{
		AnimalType: "Cat", PetName: "Mimi", Service: "Check-up",
		Date: "2020-01-06", Time: "9:00 AM",
	})
	if !errors.Is(err, ErrDateInPast) {
		t.Fatalf("expected ErrDateInPast, got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("expected no writes, got %d", repo.writes)
	}
}

func TestBookRejectsTakenSlot(t *testing.T) {
	svc, repo := newTestService(t)
	date := futureDate(t)

	first, err := svc.Book(context.Background(), Owner{ID: "owner-1"}, BookingRequest{
		AnimalType: "Dog", PetName: "Rex", Service: "Grooming",
		Date: date, Time: "10:00 AM",
	})
	if err != nil {
		t.Fatalf("first Book error: %v", err)
	}

	_, err = svc.Book(context.Background(), Owner{ID: "owner-2"}, BookingRequest{
		AnimalType: "Cat", PetName: "Mimi", Service: "Check-up",
		Date: date, Time: "10:00 AM",
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// A declined appointment frees its slot.
	seeded := repo.appointments[first.ID]
	seeded.Status = StatusDeclined
	repo.appointments[first.ID] = seeded
	if _, err := svc.Book(context.Background(), Owner{ID: "owner-2"}, BookingRequest{
		AnimalType: "Cat", PetName: "Mimi", Service: "Check-up",
		Date: date, Time: "10:00 AM",
	}); err != nil {
		t.Fatalf("expected freed slot to be bookable, got %v", err)
	}
}

func TestBookRejectsSlotOutsideHours(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Book(context.Background(), Owner{ID: "owner-1"}, BookingRequest{
		AnimalType: "Dog", PetName: "Rex", Service: "Grooming",
		Date: futureDate(t), Time: "7:00 AM",
	})
	if !errors.Is(err, ErrSlotNotOffered) {
		t.Fatalf("expected ErrSlotNotOffered, got %v", err)
	}
}

func seedAppointment(repo *fakeRepository, id, status string) Appointment {
	a := Appointment{
		ID: id, OwnerID: "owner-1", OwnerName: "Jane Cruz",
		PetName: "Bella", AnimalType: "Dog", Service: "Vaccination",
		Date: "2030-06-03", Time: "9:00 AM", Status: status,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	repo.appointments[id] = a
	return a
}

func TestApprovePending(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusPending)

	updated, err := svc.Approve(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("expected approved, got %q", updated.Status)
	}
}

func TestApproveDeletedAppointment(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Approve(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("expected no writes, got %d", repo.writes)
	}
}

func TestApproveTwiceRejected(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusApproved)

	_, err := svc.Approve(context.Background(), "a1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDeclineRequiresReason(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusPending)

	for _, reason := range []string{"", "   "} {
		if _, err := svc.Decline(context.Background(), "a1", reason); !errors.Is(err, ErrEmptyReason) {
			t.Fatalf("expected ErrEmptyReason for %q, got %v", reason, err)
		}
	}
	if repo.writes != 0 {
		t.Fatalf("expected no writes before validation, got %d", repo.writes)
	}
}

func TestDeclineSetsNotes(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusPending)

	updated, err := svc.Decline(context.Background(), "a1", "Clinic closed")
	if err != nil {
		t.Fatalf("Decline error: %v", err)
	}
	if updated.Status != StatusDeclined {
		t.Fatalf("expected declined, got %q", updated.Status)
	}
	if updated.DeclineNotes != "Clinic closed" {
		t.Fatalf("expected decline notes %q, got %q", "Clinic closed", updated.DeclineNotes)
	}
}

func TestFollowUpFromApproved(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusApproved)

	updated, err := svc.ScheduleFollowUp(context.Background(), "a1", FollowUpRequest{
		Date:  "2030-07-01",
		Notes: "Recheck stitches",
	})
	if err != nil {
		t.Fatalf("ScheduleFollowUp error: %v", err)
	}
	if updated.Status != StatusFollowup {
		t.Fatalf("expected followup, got %q", updated.Status)
	}
	if updated.FollowUpDate != "2030-07-01" || updated.FollowUpNotes != "Recheck stitches" {
		t.Fatalf("follow-up fields not set: %+v", updated)
	}
}

func TestFollowUpFromPendingRejected(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusPending)

	_, err := svc.ScheduleFollowUp(context.Background(), "a1", FollowUpRequest{Date: "2030-07-01"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAttachMedicationsSkipsEmptyNames(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusApproved)

	updated, meds, err := svc.AttachMedications(context.Background(), "a1", []MedicationRow{
		{Name: "Amoxicillin", Dosage: "250", Unit: "mg", Interval: "every 8 hours"},
		{Name: "   ", Dosage: "10", Unit: "ml"},
	})
	if err != nil {
		t.Fatalf("AttachMedications error: %v", err)
	}
	if len(meds) != 1 {
		t.Fatalf("expected 1 persisted medication, got %d", len(meds))
	}
	if meds[0].Name != "Amoxicillin" || meds[0].Position != 0 {
		t.Fatalf("unexpected medication row: %+v", meds[0])
	}
	if updated.Status != StatusCompleted || !updated.MedicationAdded {
		t.Fatalf("expected completed with medicationAdded, got %+v", updated)
	}
}

func TestAttachMedicationsAllEmptyRejected(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusApproved)

	_, _, err := svc.AttachMedications(context.Background(), "a1", []MedicationRow{{Name: ""}, {Name: "  "}})
	if !errors.Is(err, ErrNoMedications) {
		t.Fatalf("expected ErrNoMedications, got %v", err)
	}
	if len(repo.medications) != 0 {
		t.Fatalf("expected no medications persisted, got %d", len(repo.medications))
	}
}

func TestAttachMedicationsKeepsOrder(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusApproved)

	_, meds, err := svc.AttachMedications(context.Background(), "a1", []MedicationRow{
		{Name: "Amoxicillin"},
		{Name: ""},
		{Name: "Carprofen"},
		{Name: "Drontal"},
	})
	if err != nil {
		t.Fatalf("AttachMedications error: %v", err)
	}
	want := []string{"Amoxicillin", "Carprofen", "Drontal"}
	if len(meds) != len(want) {
		t.Fatalf("expected %d medications, got %d", len(want), len(meds))
	}
	for i, name := range want {
		if meds[i].Name != name || meds[i].Position != i {
			t.Fatalf("row %d out of order: %+v", i, meds[i])
		}
	}
}

func TestAttachMedicationsLostRaceWritesNoRows(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusApproved)

	// Another admin completes the appointment between the read and the write.
	repo.beforeAttach = func() {
		a := repo.appointments["a1"]
		a.Status = StatusCompleted
		repo.appointments["a1"] = a
	}

	_, _, err := svc.AttachMedications(context.Background(), "a1", []MedicationRow{{Name: "Amoxicillin"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(repo.medications) != 0 {
		t.Fatalf("expected no orphaned medications, got %d", len(repo.medications))
	}
}

func TestAttachMedicationsFromPendingRejected(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusPending)

	_, _, err := svc.AttachMedications(context.Background(), "a1", []MedicationRow{{Name: "Amoxicillin"}})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAvailableSlotsExcludesReservedAndBlocked(t *testing.T) {
	svc, _ := newTestService(t)
	date := futureDate(t)

	if _, err := svc.Book(context.Background(), Owner{ID: "owner-1"}, BookingRequest{
		AnimalType: "Dog", PetName: "Rex", Service: "Grooming",
		Date: date, Time: "9:00 AM",
	}); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if _, err := svc.CreateBlock(context.Background(), BlockRequest{
		Date: date, Time: "1:00 PM", Reason: "surgery",
	}); err != nil {
		t.Fatalf("CreateBlock error: %v", err)
	}

	slots, err := svc.AvailableSlots(context.Background(), date, time.Now())
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	for _, s := range slots {
		if s == "9:00 AM" || s == "1:00 PM" {
			t.Fatalf("reserved slot %q still offered: %v", s, slots)
		}
	}
	if len(slots) != 12 {
		t.Fatalf("expected 12 open slots, got %d: %v", len(slots), slots)
	}
}

func TestDeclinedRecordInvariant(t *testing.T) {
	svc, repo := newTestService(t)
	seedAppointment(repo, "a1", StatusPending)
	seedAppointment(repo, "a2", StatusPending)

	if _, err := svc.Approve(context.Background(), "a1"); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if _, err := svc.Decline(context.Background(), "a2", "Clinic closed"); err != nil {
		t.Fatalf("Decline error: %v", err)
	}

	for id, a := range repo.appointments {
		if !IsValidStatus(a.Status) {
			t.Fatalf("appointment %s has invalid status %q", id, a.Status)
		}
		hasNotes := a.DeclineNotes != ""
		if hasNotes != (a.Status == StatusDeclined) {
			t.Fatalf("appointment %s violates declineNotes invariant: %+v", id, a)
		}
	}
}
