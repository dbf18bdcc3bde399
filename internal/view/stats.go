package view

import "eventflow/internal/model"

// Stats are counters over the unfiltered store.
// Completed+Pending == Total and Upcoming <= Pending always hold.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Upcoming  int `json:"upcoming"`
}

func DeriveStats(records []model.Event, today model.Date) Stats {
	var st Stats
	for _, ev := range records {
		st.Total++
		if ev.IsCompleted {
			st.Completed++
			continue
		}
		st.Pending++
		if isUpcoming(ev, today) {
			st.Upcoming++
		}
	}
	return st
}

// Overdue counts records that are not completed and dated before today.
func Overdue(records []model.Event, today model.Date) int {
	n := 0
	for _, ev := range records {
		if StatusOf(ev, today) == StatusOverdue {
			n++
		}
	}
	return n
}
