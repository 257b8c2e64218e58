package messaging

import "time"

const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

// Thread is the single conversation between one pet owner and the clinic.
// There is at most one per owner; the unique userId index enforces it.
type Thread struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	UserID       string    `bson:"userId" json:"userId"`
	UserName     string    `bson:"userName" json:"userName"`
	LastMessage  string    `bson:"lastMessage" json:"lastMessage"`
	LastSenderID string    `bson:"lastSenderId" json:"lastSenderId"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Message struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	ThreadID   string    `bson:"threadId" json:"threadId"`
	SenderID   string    `bson:"senderId" json:"senderId"`
	SenderRole string    `bson:"senderRole" json:"senderRole"`
	Body       string    `bson:"body" json:"body"`
	Seen       bool      `bson:"seen" json:"seen"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

type SendRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// Sender identifies who is writing into a thread.
type Sender struct {
	ID   string
	Name string
	Role string
}
