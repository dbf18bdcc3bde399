package ics

import (
	"context"
	"errors"
	"time"

	appLog "eventflow/internal/log"
	"eventflow/internal/model"
)

// Window is the date range of a fallback dataset, relative to today.
type Window struct {
	BackfillDays int
	HorizonDays  int
}

// LoadEvents fetches, parses and expands sources into event records dated
// within the window around now (in loc). It fails only when no source
// produced a usable calendar.
func LoadEvents(ctx context.Context, f *Fetcher, sources []Source, w Window, now time.Time, loc *time.Location) ([]model.Event, error) {
	if len(sources) == 0 {
		return nil, errors.New("ics: no sources configured")
	}
	if loc == nil {
		loc = time.Local
	}

	results, errs := f.FetchAll(ctx, sources)
	if len(results) == 0 {
		return nil, errors.Join(errs...)
	}

	var parsed []ParsedEvent
	usable := 0
	for _, res := range results {
		evs, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		usable++
		parsed = append(parsed, evs...)
	}
	if usable == 0 {
		return nil, errors.Join(errs...)
	}

	today := model.DateOf(now.In(loc))
	occs, err := ExpandOccurrences(parsed, ExpandConfig{
		RangeStart: today.AddDays(-w.BackfillDays).Time(loc),
		RangeEnd:   today.AddDays(w.HorizonDays + 1).Time(loc).Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, err
	}
	return ToEvents(occs, loc), nil
}
