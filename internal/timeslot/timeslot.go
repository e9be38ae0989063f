// Package timeslot converts user-facing visit-time selections into the
// backend's hour encoding. The API expresses "today" as 0-23 and "early next
// day" as 24-36, so an afternoon user picking a morning slot is booking
// tomorrow.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NextDayOffset is added to a morning hour selected in the afternoon to push
// it into the backend's next-day range (24-36). Product constant; keep in sync
// with the reservation API.
const NextDayOffset = 24

// Noon is the pivot hour for the next-day interpretation.
const Noon = 12

// Normalize converts a selection into the backend hour parameter.
//
// An empty selection means "now" and yields the current wall-clock hour.
// An "HH:MM" selection is parsed to its hour; when the current hour is past
// noon and the selected hour is before noon the selection is treated as next
// day and shifted by NextDayOffset. A bare numeric selection is passed through
// unchanged (it is already a backend hour).
func Normalize(sel string, now time.Time) int {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return now.Hour()
	}
	if h, m, ok := parseClock(sel); ok {
		_ = m
		if now.Hour() > Noon && h < Noon {
			return h + NextDayOffset
		}
		return h
	}
	if n, err := strconv.Atoi(sel); err == nil {
		return n
	}
	return now.Hour()
}

// Expired reports whether the selected slot already lies in the past: the
// normalized hour is before the current wall-clock hour.
func Expired(sel string, now time.Time) bool {
	if strings.TrimSpace(sel) == "" {
		return false
	}
	return Normalize(sel, now) < now.Hour()
}

// NearestHour returns the next full hour after now in "HH:MM" form, wrapping
// past midnight. It is the default visit-time selection.
func NearestHour(now time.Time) string {
	next := (now.Hour() + 1) % 24
	return fmt.Sprintf("%02d:00", next)
}

// Stale reports whether a stored "HH:MM" selection has fallen behind the next
// full hour and should be advanced to NearestHour.
func Stale(sel string, now time.Time) bool {
	if strings.TrimSpace(sel) == "" {
		return true
	}
	next := (now.Hour() + 1) % 24
	return Normalize(sel, now) < next
}

func parseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
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
