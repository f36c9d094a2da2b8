package clinic

import (
	"strconv"
	"strings"
	"time"
)

// Default shift bounds used when a configured time-of-day string does not
// parse. Malformed configuration is non-fatal: each field falls back to its
// own default independently.
const (
	DefaultMorningStart   = "08:00"
	DefaultMorningEnd     = "12:00"
	DefaultAfternoonStart = "14:00"
	DefaultAfternoonEnd   = "18:00"
	DefaultSlotInterval   = 30
)

// CalendarConfig is the clinic's single scheduling configuration row.
// OpenDays is indexed by time.Weekday (Sunday = 0). Shift bounds are stored
// as "HH:MM" strings exactly as the admin entered them; parsing happens at
// slot-generation time via parseClockOrDefault.
type CalendarConfig struct {
	ClinicName     string
	OpenDays       [7]bool
	MorningStart   string
	MorningEnd     string
	AfternoonStart string
	AfternoonEnd   string
	SlotInterval   int // minutes between candidate slots
	UpdatedAt      time.Time
}

// DefaultCalendarConfig returns the configuration used before an admin has
// saved one: open Monday through Friday, standard shifts, 30 minute slots.
func DefaultCalendarConfig() CalendarConfig {
	cfg := CalendarConfig{
		ClinicName:     "DentalSystem",
		MorningStart:   DefaultMorningStart,
		MorningEnd:     DefaultMorningEnd,
		AfternoonStart: DefaultAfternoonStart,
		AfternoonEnd:   DefaultAfternoonEnd,
		SlotInterval:   DefaultSlotInterval,
	}
	for d := time.Monday; d <= time.Friday; d++ {
		cfg.OpenDays[d] = true
	}
	return cfg
}

func (c CalendarConfig) IsOpen(day time.Weekday) bool {
	return c.OpenDays[day]
}

// Interval returns the slot interval, falling back to the default when the
// stored value is not a positive number of minutes.
func (c CalendarConfig) Interval() int {
	if c.SlotInterval <= 0 {
		return DefaultSlotInterval
	}
	return c.SlotInterval
}

// parseClockOrDefault parses an "HH:MM" wall-clock string. On any parse
// failure it retries with the given fallback, and if that also fails it
// returns 08:00. It never reports an error: malformed shift configuration
// degrades to defaults instead of breaking availability.
func parseClockOrDefault(s, fallback string) (hour, minute int) {
	if h, m, ok := parseClock(s); ok {
		return h, m
	}
	if h, m, ok := parseClock(fallback); ok {
		return h, m
	}
	return 8, 0
}

func parseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
