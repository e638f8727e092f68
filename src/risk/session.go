package risk

import (
	"time"
)

// ----- session labels -----

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionPreOpen        Session = "pre_open"
	SessionRegular        Session = "regular"
	SessionSquareOff      Session = "square_off"
	SessionClosed         Session = "closed"
)

// ----- trading window config -----

// WindowConfig describes one exchange trading day. Times are minutes from
// midnight in the exchange timezone.
type WindowConfig struct {
	OpenMinute     int // first tradable minute
	EntryCutoff    int // last minute a new position may be opened
	CloseMinute    int // exchange close
	PreOpenMinutes int // pre-open auction window before OpenMinute
}

// DefaultWindowConfig is the NSE cash/derivatives day: open 09:15, entry
// cutoff 15:25, close 15:30, pre-open auction from 09:00.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		OpenMinute:     9*60 + 15,
		EntryCutoff:    15*60 + 25,
		CloseMinute:    15*60 + 30,
		PreOpenMinutes: 15,
	}
}

// ----- public API -----

// Classify labels the instant within the exchange trading day. The caller
// passes exchange-local time; no timezone conversion happens here.
func Classify(t time.Time, cfg WindowConfig) Session {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday || isHoliday(t) {
		return SessionWeekendHoliday
	}

	minute := t.Hour()*60 + t.Minute()

	switch {
	case minute >= cfg.OpenMinute-cfg.PreOpenMinutes && minute < cfg.OpenMinute:
		return SessionPreOpen
	case minute >= cfg.OpenMinute && minute < cfg.EntryCutoff:
		return SessionRegular
	case minute >= cfg.EntryCutoff && minute < cfg.CloseMinute:
		return SessionSquareOff
	default:
		return SessionClosed
	}
}

// CanEnter reports whether new positions may still be opened.
func CanEnter(t time.Time, cfg WindowConfig) bool {
	return Classify(t, cfg) == SessionRegular
}

// PastCutoff reports whether the entry window for the day is over. Once true
// it stays true until the next trading day; the runner uses it to stop its
// loop after the square-off window.
func PastCutoff(t time.Time, cfg WindowConfig) bool {
	if Classify(t, cfg) == SessionWeekendHoliday {
		return true
	}
	return t.Hour()*60+t.Minute() >= cfg.EntryCutoff
}

// ----- helpers -----

// isHoliday covers the fixed-date exchange holidays. The movable ones
// (Diwali, Holi, Eid) follow lunar calendars and come from the yearly
// exchange circular, not from a formula, so they are left to the operator.
func isHoliday(t time.Time) bool {
	year := t.Year()

	republicDay := time.Date(year, time.January, 26, 0, 0, 0, 0, time.UTC)
	maharashtraDay := time.Date(year, time.May, 1, 0, 0, 0, 0, time.UTC)
	independenceDay := time.Date(year, time.August, 15, 0, 0, 0, 0, time.UTC)
	gandhiJayanti := time.Date(year, time.October, 2, 0, 0, 0, 0, time.UTC)
	christmasDay := time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)

	holidays := []time.Time{
		republicDay,
		maharashtraDay,
		independenceDay,
		gandhiJayanti,
		christmasDay,
	}
	return isDateAmong(t, holidays)
}

// isDateAmong checks if the given date matches any date in the list.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
