package clinic

import "time"

// GenerateCandidateSlots returns the ordered candidate start times for the
// given date: the morning block followed by the afternoon block, stepping by
// the configured interval. The result is empty when the clinic is closed on
// that weekday.
//
// A slot is emitted whenever its start is strictly before the shift end; the
// last slot of a shift is not trimmed when a service booked into it would run
// past the close. Duration-aware filtering is the availability layer's job,
// and it deliberately does not trim either.
func GenerateCandidateSlots(cfg CalendarConfig, date time.Time) []time.Time {
	if !cfg.IsOpen(date.Weekday()) {
		return nil
	}

	interval := time.Duration(cfg.Interval()) * time.Minute

	slots := shiftSlots(date, cfg.MorningStart, DefaultMorningStart, cfg.MorningEnd, DefaultMorningEnd, interval)
	slots = append(slots, shiftSlots(date, cfg.AfternoonStart, DefaultAfternoonStart, cfg.AfternoonEnd, DefaultAfternoonEnd, interval)...)
	return slots
}

func shiftSlots(date time.Time, start, startDefault, end, endDefault string, interval time.Duration) []time.Time {
	sh, sm := parseClockOrDefault(start, startDefault)
	eh, em := parseClockOrDefault(end, endDefault)

	cur := atClock(date, sh, sm)
	stop := atClock(date, eh, em)

	var slots []time.Time
	for cur.Before(stop) {
		slots = append(slots, cur)
		cur = cur.Add(interval)
	}
	return slots
}

// atClock pins a wall-clock time onto the given date, in the date's location.
func atClock(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}
