package appointment

import (
	"time"

	"github.com/hackgods/clinic-crm/internal/validation"
)

const DateLayout = "2006-01-02"

// Catalog is the ordered list of HH:MM slots offered on any day.
type Catalog []string

func NewCatalog(slots []string) Catalog {
	c := make(Catalog, len(slots))
	copy(c, slots)
	return c
}

func (c Catalog) Contains(hhmm string) bool {
	for _, s := range c {
		if s == hhmm {
			return true
		}
	}
	return false
}

// Split partitions the catalog into free and taken slots given the times
// already booked that day. Both results follow catalog order; booked times
// outside the catalog are ignored.
func (c Catalog) Split(booked []string) (available, taken []string) {
	occupied := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		occupied[b] = struct{}{}
	}

	available = make([]string, 0, len(c))
	taken = make([]string, 0, len(occupied))
	for _, slot := range c {
		if _, ok := occupied[slot]; ok {
			taken = append(taken, slot)
			continue
		}
		available = append(available, slot)
	}
	return available, taken
}

// DateOnly drops the time of day, keeping t's calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp and returns the
// calendar date at midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return DateOnly(t), nil
}

// NormalizeTime turns "9:00" into "09:00".
func NormalizeTime(raw string) (string, error) {
	if !validation.Time(raw) {
		return "", ErrInvalidTime
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return "", ErrInvalidTime
	}
	return t.Format("15:04"), nil
}
