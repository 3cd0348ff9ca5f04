// Package hours answers whether the store is attending customers.
package hours

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"liontech/model"
)

var ErrInvalid = errors.New("invalid business hours")

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, fmt.Errorf("%w: bad time %q", ErrInvalid, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func byWeekday(hours []model.BusinessHour) map[time.Weekday]model.BusinessHour {
	m := make(map[time.Weekday]model.BusinessHour, len(hours))
	for _, h := range hours {
		m[time.Weekday(h.Weekday)] = h
	}
	return m
}

// window returns the opening and closing minutes of h, ok=false when the
// day is closed or malformed.
func window(h model.BusinessHour) (opens, closes int, ok bool) {
	if h.Closed {
		return 0, 0, false
	}
	opens, err := parseClock(h.OpensAt)
	if err != nil {
		return 0, 0, false
	}
	closes, err = parseClock(h.ClosesAt)
	if err != nil || closes <= opens {
		return 0, 0, false
	}
	return opens, closes, true
}

// IsOpen reports whether t falls inside the window of its weekday. t must
// already be in the store location.
func IsOpen(hours []model.BusinessHour, t time.Time) bool {
	h, found := byWeekday(hours)[t.Weekday()]
	if !found {
		return false
	}
	opens, closes, ok := window(h)
	if !ok {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= opens && m < closes
}

// NextOpening returns the first opening time strictly after t, looking up
// to seven days ahead. It reports false when every day is closed.
func NextOpening(hours []model.BusinessHour, t time.Time) (time.Time, bool) {
	days := byWeekday(hours)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for i := 0; i <= 7; i++ {
		day := midnight.AddDate(0, 0, i)
		h, found := days[day.Weekday()]
		if !found {
			continue
		}
		opens, _, ok := window(h)
		if !ok {
			continue
		}
		at := day.Add(time.Duration(opens) * time.Minute)
		if at.After(t) {
			return at, true
		}
	}
	return time.Time{}, false
}

// Normalize checks a full week and returns it sorted by weekday. Closed
// days keep their times only when they parse.
func Normalize(hours []model.BusinessHour) ([]model.BusinessHour, error) {
	if len(hours) != 7 {
		return nil, fmt.Errorf("%w: expected 7 days, got %d", ErrInvalid, len(hours))
	}
	seen := make(map[int]bool, 7)
	out := make([]model.BusinessHour, 0, 7)
	for _, h := range hours {
		if h.Weekday < 0 || h.Weekday > 6 || seen[h.Weekday] {
			return nil, fmt.Errorf("%w: weekday %d", ErrInvalid, h.Weekday)
		}
		seen[h.Weekday] = true
		if h.Closed {
			if h.OpensAt == "" {
				h.OpensAt = "00:00"
			}
			if h.ClosesAt == "" {
				h.ClosesAt = "00:00"
			}
			out = append(out, h)
			continue
		}
		opens, err := parseClock(h.OpensAt)
		if err != nil {
			return nil, err
		}
		closes, err := parseClock(h.ClosesAt)
		if err != nil {
			return nil, err
		}
		if closes <= opens {
			return nil, fmt.Errorf("%w: weekday %d closes before it opens", ErrInvalid, h.Weekday)
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}
