package gamification

import (
	"fmt"
	"time"

	"github.com/piucane/piucane/internal/domain"
)

// AdvanceStreak applies one day of activity to s.
// Same day: unchanged, counted=false. Consecutive day: extend.
// A single missed day uses the free weekly freeze if it has not been used
// this ISO week; otherwise, or for longer gaps, the streak restarts at 1.
// Days are civil dates in loc.
func AdvanceStreak(s domain.Streak, day time.Time, loc *time.Location) (domain.Streak, bool) {
	today := civilDay(day, loc)

	if s.LastDate.IsZero() {
		// First activity ever
		s.CurrentDays = 1
	} else {
		last := civilDay(s.LastDate, time.UTC)
		gap := int(today.Sub(last).Hours() / 24)

		switch {
		case gap <= 0:
			// Already counted (or out-of-order)
			return s, false

		case gap == 1:
			s.CurrentDays++

		case gap == 2:
			week := isoWeek(today)
			if !s.FreezeUsed || s.FreezeWeekISO != week {
				s.FreezeUsed = true
				s.FreezeWeekISO = week
				s.CurrentDays++
			} else {
				s.CurrentDays = 1
			}

		default:
			s.CurrentDays = 1
		}
	}

	s.LastDate = today
	if s.CurrentDays > s.LongestDays {
		s.LongestDays = s.CurrentDays
	}
	return s, true
}

// civilDay returns midnight UTC of t's calendar date in loc.
func civilDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isoWeek returns "YYYY-Www" for the given time.
func isoWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
