package leadfields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	monthDayRE   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	clockValueRE = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)?$`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var dayParts = map[string]string{
	"morning":   "Morning",
	"afternoon": "Afternoon",
	"evening":   "Evening",
	"tonight":   "Evening",
	"noon":      "12:00 PM",
	"midday":    "12:00 PM",
}

// Normalizer resolves relative dates and loose times into display form.
type Normalizer struct {
	Now func() time.Time
}

// NewNormalizer returns a Normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

func (n *Normalizer) today() time.Time {
	now := time.Now()
	if n != nil && n.Now != nil {
		now = n.Now()
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// Date normalizes a tour or move-in date relative to the normalizer's clock.
func (n *Normalizer) Date(value string) string {
	return NormalizeDate(value, n.today())
}

// Time normalizes a tour time; see NormalizeTime.
func (n *Normalizer) Time(value, dateHint string) string {
	return NormalizeTime(value, dateHint)
}

// Fields returns a copy of f with tour date and time in display form.
func (n *Normalizer) Fields(f Fields) Fields {
	out := f.Clone()
	if out.Has(TourDate) {
		out[TourDate] = n.Date(out[TourDate])
	}
	if out.Has(TourTime) {
		out[TourTime] = n.Time(out[TourTime], f[TourDate])
	}
	return out
}

// NormalizeDate resolves relative words to a calendar date (YYYY-MM-DD).
// A weekday always means the next occurrence, so naming today's weekday lands a week out.
// Unrecognized values are returned unchanged.
func NormalizeDate(value string, today time.Time) string {
	raw := strings.TrimSpace(value)
	token := strings.ToLower(raw)
	switch token {
	case "":
		return ""
	case "today", "tonight", "this evening":
		return today.Format("2006-01-02")
	case "tomorrow":
		return today.AddDate(0, 0, 1).Format("2006-01-02")
	}
	if wd, ok := weekdays[token]; ok {
		ahead := int(wd - today.Weekday())
		if ahead <= 0 {
			ahead += 7
		}
		return today.AddDate(0, 0, ahead).Format("2006-01-02")
	}
	if m := monthDayRE.FindStringSubmatch(token); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return fmt.Sprintf("%04d-%02d-%02d", today.Year(), month, day)
		}
	}
	return raw
}

// NormalizeTime renders a time as "H:MM AM/PM" or a day-part label.
// A bare hour from 1 to 6 is afternoon. Hours 7 to 11 are evening when the date hint
// is tonight or this evening, otherwise morning.
func NormalizeTime(value, dateHint string) string {
	raw := strings.TrimSpace(value)
	token := strings.ToLower(raw)
	if token == "" {
		return ""
	}
	if label, ok := dayParts[token]; ok {
		return label
	}
	compact := strings.NewReplacer(" ", "", ".", "").Replace(token)
	m := clockValueRE.FindStringSubmatch(compact)
	if m == nil {
		return raw
	}
	hour, _ := strconv.Atoi(m[1])
	minute := "00"
	if m[2] != "" {
		minute = m[2]
	}
	if mm, _ := strconv.Atoi(minute); mm > 59 {
		return raw
	}

	meridiem := strings.ToUpper(m[3])
	switch {
	case meridiem != "":
		if hour < 1 || hour > 12 {
			return raw
		}
	case hour == 0:
		hour, meridiem = 12, "AM"
	case hour == 12:
		meridiem = "PM"
	case hour > 12 && hour <= 23:
		hour, meridiem = hour-12, "PM"
	case hour >= 1 && hour <= 6:
		meridiem = "PM"
	case hour >= 7 && hour <= 11:
		meridiem = "AM"
		if hint := strings.ToLower(strings.TrimSpace(dateHint)); hint == "tonight" || hint == "this evening" {
			meridiem = "PM"
		}
	default:
		return raw
	}
	return fmt.Sprintf("%d:%s %s", hour, minute, meridiem)
}
