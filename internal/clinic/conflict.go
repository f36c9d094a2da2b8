package clinic

import "time"

// Overlaps reports whether the half-open interval [start, end) crosses any of
// the given appointments. Touching endpoints do not conflict: an appointment
// ending at 10:00 and a candidate starting at 10:00 coexist.
//
// The caller must pre-filter existing to a single practitioner and to active
// statuses; this predicate looks at intervals only so it can be tested
// independently of storage.
func Overlaps(start, end time.Time, existing []Appointment) bool {
	for _, a := range existing {
		if start.Before(a.EndTime) && a.StartTime.Before(end) {
			return true
		}
	}
	return false
}
