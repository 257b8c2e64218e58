package users

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Name         string    `bson:"name" json:"name"`
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Role         string    `bson:"role" json:"role"`
	PhotoURL     string    `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PasswordReset holds one hashed reset code. The TTL index on expiresAt
// garbage-collects stale rows; the service still checks expiry itself because
// Mongo's sweep only runs about once a minute.
type PasswordReset struct {
	ID        string    `bson:"_id,omitempty"`
	Email     string    `bson:"email"`
	CodeHash  string    `bson:"codeHash"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"omitempty,phone"`
}

type PhotoRequest struct {
	Data string `json:"data" validate:"required"`
}

type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ConfirmResetRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type CreateStaffRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
}
