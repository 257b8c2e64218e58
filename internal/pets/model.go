package pets

import "time"

type Pet struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	OwnerID    string    `bson:"ownerId" json:"ownerId"`
	Name       string    `bson:"name" json:"name"`
	AnimalType string    `bson:"animalType" json:"animalType"`
	Breed      string    `bson:"breed,omitempty" json:"breed,omitempty"`
	Age        string    `bson:"age,omitempty" json:"age,omitempty"`
	PhotoURL   string    `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CreateRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	AnimalType string `json:"animalType" validate:"required,max=60"`
	Breed      string `json:"breed" validate:"max=120"`
	Age        string `json:"age" validate:"max=30"`
}

type UpdateRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	AnimalType string `json:"animalType" validate:"required,max=60"`
	Breed      string `json:"breed" validate:"max=120"`
	Age        string `json:"age" validate:"max=30"`
}

type PhotoRequest struct {
	Data string `json:"data" validate:"required"`
}
