package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"eventflow/internal/model"
)

// uidNamespace derives stable UIDs for records that carry no ID.
var uidNamespace = uuid.MustParse("6f1c7c2e-6a0e-4d3b-9d55-3f0b7f0c2a41")

// ExportOptions controls calendar-level properties.
type ExportOptions struct {
	Name string
	// Stamp is written as DTSTAMP; zero means now.
	Stamp time.Time
}

// Export serializes records as a VCALENDAR of all-day VEVENTs in store
// order. Completed records get STATUS:COMPLETED, the rest STATUS:CONFIRMED.
func Export(records []model.Event, opts ExportOptions) string {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventflow//events//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for i, ev := range records {
		ve := cal.AddEvent(exportUID(i, ev))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		start := ev.Date.Time(time.UTC)
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
		if ev.IsCompleted {
			ve.SetStatus(ical.ObjectStatusCompleted)
		} else {
			ve.SetStatus(ical.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}

func exportUID(position int, ev model.Event) string {
	if ev.ID != "" {
		return ev.ID
	}
	key := strconv.Itoa(position) + "|" + ev.Title + "|" + ev.Date.String()
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@eventflow"
}
