package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventflow/internal/log"
	"eventflow/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd form an inclusive window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway RRULEs; zero uses the default.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of a (possibly recurring) event.
type Occurrence struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	AllDay      bool
	Completed   bool
	Recurring   bool
}

// ExpandOccurrences turns parsed VEVENTs into concrete occurrences inside the
// window, applying RRULE, EXDATE and RECURRENCE-ID overrides. The result is
// ordered by start time, then UID.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	out := make([]Occurrence, 0)
	for _, uid := range uids {
		for _, ev := range bases[uid] {
			occ, capped := expandEvent(ev, overrides[uid], cfg)
			if capped {
				appLog.Warn("expand: occurrences truncated", errors.New("max occurrences reached"),
					"uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
			out = append(out, occ...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []Occurrence{occurrenceFor(ev, overrides, ev.Start)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	capped := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		capped = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, occurrenceFor(ev, overrides, s))
	}
	return out, capped
}

// occurrenceFor builds the occurrence starting at start, replaced by an
// override whose RECURRENCE-ID matches exactly.
func occurrenceFor(ev ParsedEvent, overrides []ParsedEvent, start time.Time) Occurrence {
	recurring := ev.RawRRule != ""
	for _, ov := range overrides {
		if ov.Recurrence.In(start.Location()).Equal(start) {
			ev, start = ov, ov.Start
			break
		}
	}
	return Occurrence{
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       start,
		AllDay:      ev.AllDay,
		Completed:   ev.Completed,
		Recurring:   recurring,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// ToEvents converts occurrences into event records. All-day occurrences keep
// their calendar date; timed ones take the date of their start in loc.
func ToEvents(occs []Occurrence, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.Event, 0, len(occs))
	for _, o := range occs {
		d := model.DateOf(o.Start.In(loc))
		if o.AllDay {
			d = model.DateOf(o.Start)
		}
		id := o.UID
		if o.Recurring {
			id = o.UID + "/" + d.String()
		}
		out = append(out, model.Event{
			ID:          id,
			Title:       o.Summary,
			Description: o.Description,
			Date:        d,
			IsCompleted: o.Completed,
		})
	}
	return out
}
