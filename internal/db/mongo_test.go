package db

import (
	"testing"

	"vetcare-backend/internal/appointments"

	"go.mongodb.org/mongo-driver/bson"
)

// The booking index filter must stick to operators a partial index accepts;
// mongod rejects $ne there with CannotCreateIndex, which would stop the
// server from booting at all.
func TestBookingIndexFilterUsesSupportedOperators(t *testing.T) {
	var filter bson.M
	for _, model := range appointmentIndexModels() {
		if model.Options == nil || model.Options.Unique == nil || !*model.Options.Unique {
			continue
		}
		f, ok := model.Options.PartialFilterExpression.(bson.M)
		if !ok {
			t.Fatalf("unexpected partial filter type %T", model.Options.PartialFilterExpression)
		}
		filter = f
	}
	if filter == nil {
		t.Fatal("no unique booking index defined")
	}

	clause, ok := filter["status"].(bson.M)
	if !ok {
		t.Fatalf("filter missing status clause: %v", filter)
	}
	for op := range clause {
		if op != "$in" {
			t.Fatalf("unsupported partial index operator %q", op)
		}
	}

	statuses, ok := clause["$in"].([]string)
	if !ok {
		t.Fatalf("status clause must enumerate values with $in, got %v", clause)
	}
	covered := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		if !appointments.IsValidStatus(s) {
			t.Fatalf("unknown status %q in index filter", s)
		}
		covered[s] = true
	}
	if covered[appointments.StatusDeclined] {
		t.Fatal("declined must stay outside the unique index so freed slots can be rebooked")
	}
	for _, s := range []string{
		appointments.StatusPending,
		appointments.StatusApproved,
		appointments.StatusFollowup,
		appointments.StatusCompleted,
	} {
		if !covered[s] {
			t.Fatalf("status %q holds a slot but is missing from the index filter", s)
		}
	}
}
