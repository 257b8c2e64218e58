package main

import (
	"context"
	"log"
	"os"
	"time"

	"vetcare-backend/internal/auth"
	"vetcare-backend/internal/config"
	"vetcare-backend/internal/db"
	"vetcare-backend/internal/services"
	"vetcare-backend/internal/users"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var clinicServices = []string{
	"Vaccination",
	"Wellness Exam",
	"Dental Cleaning",
	"Deworming",
	"Spay & Neuter",
	"Grooming",
	"Laboratory Tests",
	"Surgery Consultation",
	"X-Ray",
	"Microchipping",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	catalog := services.NewCatalog(cols.Services, cfg.Timezone)
	inserted, err := catalog.Seed(ctx, clinicServices)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}
	log.Printf("seed services: %d inserted, %d already present", inserted, len(clinicServices)-inserted)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := envOrDefault("ADMIN_NAME", "Clinic Admin")
	if email == "" || password == "" {
		log.Println("seed admin: ADMIN_EMAIL or ADMIN_PASSWORD missing, skipping")
		log.Println("seed completed")
		return
	}

	if err := seedAdmin(ctx, cols, email, password, name, cfg.Timezone); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	log.Printf("seed admin: %s ready", email)
	log.Println("seed completed")
}

// seedAdmin upserts the staff account so re-running the seeder rotates the
// password instead of failing on the unique email index.
func seedAdmin(ctx context.Context, cols *db.Collections, email, password, name string, loc *time.Location) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	update := bson.M{
		"$set": bson.M{
			"passwordHash": hash,
			"name":         name,
			"role":         users.RoleAdmin,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID().Hex(),
			"email":     email,
			"createdAt": now,
		},
	}
	_, err = cols.Users.UpdateOne(ctx, bson.M{"email": email}, update, options.Update().SetUpsert(true))
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
