package appointments

import "time"

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDeclined  = "declined"
	StatusFollowup  = "followup"
	StatusCompleted = "completed"
)

var validStatuses = map[string]struct{}{
	StatusPending:   {},
	StatusApproved:  {},
	StatusDeclined:  {},
	StatusFollowup:  {},
	StatusCompleted: {},
}

// allowedTransitions is the canonical lifecycle: pending is triaged to approved
// or declined, approved either gets a follow-up visit or is completed by
// attaching the prescription. Terminal states have no exits.
var allowedTransitions = map[string]map[string]struct{}{
	StatusPending:  {StatusApproved: {}, StatusDeclined: {}},
	StatusApproved: {StatusFollowup: {}, StatusCompleted: {}},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

type Appointment struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	OwnerID         string    `bson:"ownerId" json:"ownerId"`
	OwnerName       string    `bson:"ownerName" json:"ownerName"`
	OwnerEmail      string    `bson:"ownerEmail,omitempty" json:"-"`
	PetName         string    `bson:"petName" json:"petName"`
	AnimalType      string    `bson:"animalType" json:"animalType"`
	PetAge          string    `bson:"petAge,omitempty" json:"petAge,omitempty"`
	Breed           string    `bson:"breed,omitempty" json:"breed,omitempty"`
	Service         string    `bson:"service" json:"service"`
	Date            string    `bson:"date" json:"date"`
	Time            string    `bson:"time" json:"time"`
	Status          string    `bson:"status" json:"status"`
	DeclineNotes    string    `bson:"declineNotes,omitempty" json:"declineNotes,omitempty"`
	FollowUpDate    string    `bson:"followUpDate,omitempty" json:"followUpDate,omitempty"`
	FollowUpNotes   string    `bson:"followUpNotes,omitempty" json:"followUpNotes,omitempty"`
	MedicationAdded bool      `bson:"medicationAdded" json:"medicationAdded"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Medication struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	AppointmentID string    `bson:"appointmentId" json:"appointmentId"`
	Name          string    `bson:"name" json:"name"`
	Dosage        string    `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Unit          string    `bson:"unit,omitempty" json:"unit,omitempty"`
	Interval      string    `bson:"interval,omitempty" json:"interval,omitempty"`
	Notes         string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Position      int       `bson:"position" json:"position"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}

type ReservationBlock struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Date      string    `bson:"date" json:"date"`
	Time      string    `bson:"time" json:"time"`
	Reason    string    `bson:"reason" json:"reason"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type BookingRequest struct {
	AnimalType string `json:"animalType" validate:"required"`
	PetName    string `json:"petName" validate:"required"`
	PetAge     string `json:"petAge"`
	Breed      string `json:"breed"`
	Service    string `json:"service" validate:"required"`
	Date       string `json:"date" validate:"required,date"`
	Time       string `json:"time" validate:"required,clock12"`
}

type DeclineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type FollowUpRequest struct {
	Date  string `json:"date" validate:"required,date"`
	Notes string `json:"notes"`
}

type MedicationRow struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage"`
	Unit     string `json:"unit"`
	Interval string `json:"interval"`
	Notes    string `json:"notes"`
}

type AddMedicationsRequest struct {
	Medications []MedicationRow `json:"medications" validate:"required,min=1"`
}

type BlockRequest struct {
	Date   string `json:"date" validate:"required,date"`
	Time   string `json:"time" validate:"required,clock12"`
	Reason string `json:"reason" validate:"required"`
}

type ListFilter struct {
	OwnerID string
	Date    string
	Status  string
}
