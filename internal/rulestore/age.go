package rulestore

import "time"

const dateLayout = "2006-01-02"

// ageDays returns whole calendar days between date (YYYY-MM-DD) and now, both
// taken at midnight. ok is false when date is empty or malformed.
func ageDays(date string, now time.Time) (int, bool) {
	if date == "" {
		return 0, false
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(d).Hours() / 24), true
}
