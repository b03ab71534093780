package shipping

import "time"

// AddBusinessDays returns the date n business days after start. Sundays never
// count; Saturdays count only when saturday is true. The result keeps start's
// location and is truncated to midnight.
func AddBusinessDays(start time.Time, n int, saturday bool) time.Time {
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		switch d.Weekday() {
		case time.Sunday:
			continue
		case time.Saturday:
			if !saturday {
				continue
			}
		}
		n--
	}
	return d
}
