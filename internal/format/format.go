// Package format holds the display formatting helpers the templates use.
package format

import (
	"fmt"
	"strings"
	"time"
)

// Won formats a KRW amount. Example: Won(35000) => "35,000원".
func Won(amount int64) string {
	return thousandSep(amount) + "원"
}

// Percent formats a discount rate. Example: Percent(30) => "30%".
func Percent(rate int) string {
	return fmt.Sprintf("%d%%", rate)
}

// Distance formats meters, switching to kilometers at 1km.
// Example: Distance(350) => "350m", Distance(1240) => "1.2km".
func Distance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", meters)
	}
	return fmt.Sprintf("%.1fkm", float64(meters)/1000)
}

// Walk formats an on-foot estimate in minutes.
func Walk(minutes int) string {
	return fmt.Sprintf("도보 %d분", minutes)
}

// HourLabel renders a backend hour (0-36) for display. Hours past 23 belong
// to the next day.
func HourLabel(hour int) string {
	if hour >= 24 {
		return fmt.Sprintf("내일 %02d:00", hour-24)
	}
	return fmt.Sprintf("%02d:00", hour)
}

// Date formats a backend timestamp string for the reservation history. The
// backend sends RFC 3339; anything else passes through unchanged.
func Date(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("2006.01.02 15:04")
}

func thousandSep(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	out := ""
	for i, c := range s {
		if i != 0 && (len(s)-i)%3 == 0 {
			out += ","
		}
		out += string(c)
	}
	if neg {
		return "-" + out
	}
	return out
}
