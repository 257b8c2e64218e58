package schedule

import (
	"errors"
	"time"
)

const SlotMinutes = 30

var (
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidTime     = errors.New("invalid time format")
	ErrInvalidDuration = errors.New("invalid duration")
)

type TimeRange struct {
	Start string
	End   string
}

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func ParseDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if _, err := time.Parse("3:04 PM", timeStr); err != nil {
		return time.Time{}, ErrInvalidTime
	}
	if _, err := ParseDate(dateStr, loc); err != nil {
		return time.Time{}, err
	}

	parsed, err := time.ParseInLocation("2006-01-02 3:04 PM", dateStr+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}

	return parsed, nil
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse("3:04 PM", timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	tm := time.Date(2000, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC)
	return tm.Format("3:04 PM")
}

func IsDatePast(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false, err
	}
	startToday := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	return date.Before(startToday), nil
}

func IsSlotPast(dateStr, timeStr string, loc *time.Location, now time.Time) (bool, error) {
	slot, err := ParseDateTime(dateStr, timeStr, loc)
	if err != nil {
		return false, err
	}
	return !slot.After(now.In(loc)), nil
}

// Consultation hours: weekdays with a lunch break, Saturday mornings, closed Sunday.
func dayRanges(day time.Weekday) []TimeRange {
	switch day {
	case time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday:
		return []TimeRange{{Start: "9:00 AM", End: "12:00 PM"}, {Start: "1:00 PM", End: "5:00 PM"}}
	case time.Saturday:
		return []TimeRange{{Start: "9:00 AM", End: "12:00 PM"}}
	default:
		return nil
	}
}

func GenerateSlots(dateStr string, loc *time.Location) ([]string, error) {
	return GenerateSlotsWithDuration(dateStr, SlotMinutes, loc)
}

func GenerateSlotsWithDuration(dateStr string, duration int, loc *time.Location) ([]string, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	ranges := dayRanges(date.Weekday())
	if len(ranges) == 0 {
		return []string{}, nil
	}

	slots := make([]string, 0)
	for _, tr := range ranges {
		startMin, err := ParseClockToMinutes(tr.Start)
		if err != nil {
			return nil, err
		}
		endMin, err := ParseClockToMinutes(tr.End)
		if err != nil {
			return nil, err
		}

		for cursor := startMin; cursor+duration <= endMin; cursor += duration {
			slots = append(slots, MinutesToClock(cursor))
		}
	}

	return slots, nil
}

func FilterPastSlots(dateStr string, slots []string, loc *time.Location, now time.Time) ([]string, error) {
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		past, err := IsSlotPast(dateStr, s, loc, now)
		if err != nil {
			return nil, err
		}
		if !past {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func IsSlotAllowed(dateStr, timeStr string, loc *time.Location) (bool, error) {
	slots, err := GenerateSlots(dateStr, loc)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s == timeStr {
			return true, nil
		}
	}
	return false, nil
}

type Interval struct {
	Start int
	End   int
}

func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func FilterOverlapping(slots []string, duration int, reserved []Interval) ([]string, error) {
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		start, err := ParseClockToMinutes(s)
		if err != nil {
			return nil, err
		}
		current := Interval{Start: start, End: start + duration}
		overlap := false
		for _, r := range reserved {
			if Overlaps(current, r) {
				overlap = true
				break
			}
		}
		if !overlap {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}
