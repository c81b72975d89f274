package reminder

import "time"

// daysUntil counts whole calendar days from the date of now to the date of
// due. Times of day are ignored, so a renewal "today" is 0 regardless of the
// hour, and DST shifts cannot produce fractional days.
func daysUntil(now, due time.Time) int {
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = due.Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
