package schedule

import (
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestGenerateSlotsWeekday(t *testing.T) {
	loc := mustLoadLoc(t)
	// 2026-02-02 is a Monday.
	slots, err := GenerateSlots("2026-02-02", loc)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(slots))
	}
	if slots[0] != "9:00 AM" || slots[len(slots)-1] != "4:30 PM" {
		t.Fatalf("unexpected boundary slots: %v", slots)
	}
}

func TestGenerateSlotsSaturday(t *testing.T) {
	loc := mustLoadLoc(t)
	slots, err := GenerateSlots("2026-02-07", loc)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if slots[0] != "9:00 AM" || slots[len(slots)-1] != "11:30 AM" {
		t.Fatalf("unexpected boundary slots: %v", slots)
	}
}

func TestGenerateSlotsSundayClosed(t *testing.T) {
	loc := mustLoadLoc(t)
	slots, err := GenerateSlots("2026-02-01", loc)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots, got %d", len(slots))
	}
}

func TestParseClockToMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"9:00 AM", 540},
		{"12:00 PM", 720},
		{"12:30 PM", 750},
		{"4:30 PM", 990},
	}
	for _, c := range cases {
		got, err := ParseClockToMinutes(c.in)
		if err != nil {
			t.Fatalf("ParseClockToMinutes(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseClockToMinutes(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := ParseClockToMinutes("25:00"); err == nil {
		t.Fatal("expected error for 24h clock input")
	}
}

func TestMinutesToClockRoundTrip(t *testing.T) {
	for _, clock := range []string{"9:00 AM", "11:30 AM", "12:00 PM", "1:00 PM", "4:30 PM"} {
		minutes, err := ParseClockToMinutes(clock)
		if err != nil {
			t.Fatalf("ParseClockToMinutes(%q) error: %v", clock, err)
		}
		if got := MinutesToClock(minutes); got != clock {
			t.Fatalf("MinutesToClock(%d) = %q, want %q", minutes, got, clock)
		}
	}
}

func TestIsDatePast(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	past, err := IsDatePast("2026-02-03", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if !past {
		t.Fatal("expected date to be past")
	}

	past, err = IsDatePast("2026-02-04", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if past {
		t.Fatal("expected date to be not past")
	}
}

func TestIsSlotPast(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)

	past, err := IsSlotPast("2026-02-04", "9:30 AM", loc, now)
	if err != nil {
		t.Fatalf("IsSlotPast error: %v", err)
	}
	if !past {
		t.Fatal("expected 9:30 AM to be past at 10:00")
	}

	past, err = IsSlotPast("2026-02-04", "10:30 AM", loc, now)
	if err != nil {
		t.Fatalf("IsSlotPast error: %v", err)
	}
	if past {
		t.Fatal("expected 10:30 AM to be upcoming at 10:00")
	}
}

func TestOverlaps(t *testing.T) {
	a := Interval{Start: 540, End: 570}
	if !Overlaps(a, Interval{Start: 560, End: 590}) {
		t.Fatal("expected overlap")
	}
	if Overlaps(a, Interval{Start: 570, End: 600}) {
		t.Fatal("adjacent intervals must not overlap")
	}
}

func TestFilterOverlapping(t *testing.T) {
	slots := []string{"9:00 AM", "9:30 AM", "10:00 AM"}
	reserved := []Interval{{Start: 570, End: 600}} // 9:30-10:00
	filtered, err := FilterOverlapping(slots, SlotMinutes, reserved)
	if err != nil {
		t.Fatalf("FilterOverlapping error: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 slots, got %d: %v", len(filtered), filtered)
	}
	if filtered[0] != "9:00 AM" || filtered[1] != "10:00 AM" {
		t.Fatalf("unexpected slots: %v", filtered)
	}
}
