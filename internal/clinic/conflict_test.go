package clinic

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 15, hour, minute, 0, 0, time.UTC)
}

func appt(start, end time.Time) Appointment {
	return Appointment{StartTime: start, EndTime: end, Status: StatusConfirmed}
}

func TestOverlaps_EmptySet(t *testing.T) {
	if Overlaps(at(9, 0), at(9, 30), nil) {
		t.Error("empty set must never conflict")
	}
}

func TestOverlaps(t *testing.T) {
	existing := []Appointment{appt(at(9, 0), at(9, 30))}

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"identical interval", at(9, 0), at(9, 30), true},
		{"candidate inside", at(9, 10), at(9, 20), true},
		{"candidate contains", at(8, 30), at(10, 0), true},
		{"overlap at head", at(8, 45), at(9, 15), true},
		{"overlap at tail", at(9, 15), at(9, 45), true},
		{"touching before", at(8, 30), at(9, 0), false},
		{"touching after", at(9, 30), at(10, 0), false},
		{"well before", at(7, 0), at(8, 0), false},
		{"well after", at(11, 0), at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.start, tt.end, existing); got != tt.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v",
					tt.start.Format("15:04"), tt.end.Format("15:04"), got, tt.want)
			}
		})
	}
}

// The predicate must not care which interval is the candidate and which is
// stored.
func TestOverlaps_Symmetric(t *testing.T) {
	pairs := [][4]time.Time{
		{at(9, 0), at(9, 30), at(9, 15), at(9, 45)},
		{at(9, 0), at(10, 0), at(9, 15), at(9, 30)},
		{at(9, 0), at(9, 30), at(9, 30), at(10, 0)},
		{at(8, 0), at(9, 0), at(10, 0), at(11, 0)},
	}

	for _, p := range pairs {
		a := Overlaps(p[0], p[1], []Appointment{appt(p[2], p[3])})
		b := Overlaps(p[2], p[3], []Appointment{appt(p[0], p[1])})
		if a != b {
			t.Errorf("asymmetric result for [%s,%s) vs [%s,%s): %v != %v",
				p[0].Format("15:04"), p[1].Format("15:04"),
				p[2].Format("15:04"), p[3].Format("15:04"), a, b)
		}
	}
}

func TestOverlaps_FirstHitWins(t *testing.T) {
	existing := []Appointment{
		appt(at(8, 0), at(8, 30)),
		appt(at(9, 0), at(9, 30)),
		appt(at(10, 0), at(10, 30)),
	}

	if !Overlaps(at(9, 15), at(9, 45), existing) {
		t.Error("expected conflict with middle appointment")
	}
	if Overlaps(at(8, 30), at(9, 0), existing) {
		t.Error("gap between appointments must be free")
	}
}
