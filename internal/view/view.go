// Package view derives the display projection and aggregate counters from a
// snapshot of the event store. Nothing here mutates its input.
package view

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"eventflow/internal/model"
)

var ErrUnknownFilter = errors.New("unknown filter")

// Filter selects a category of events.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
	FilterUpcoming  Filter = "upcoming"
)

// ParseFilter is case-insensitive; empty input means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterCompleted, FilterPending, FilterUpcoming:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
}

// Status is the display state of a record.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusPending   Status = "pending"
)

// StatusOf classifies ev relative to today. Overdue is never stored.
func StatusOf(ev model.Event, today model.Date) Status {
	switch {
	case ev.IsCompleted:
		return StatusCompleted
	case ev.Date.Before(today):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// Item is one element of a projection. Position is the record's index in the
// snapshot it was projected from, usable against the store until the next
// delete.
type Item struct {
	Position int         `json:"position"`
	Status   Status      `json:"status"`
	Event    model.Event `json:"event"`
}

// Project filters records by search term and category, then sorts by date.
// Ties keep store order.
func Project(records []model.Event, search string, filter Filter, today model.Date) []Item {
	term := strings.ToLower(strings.TrimSpace(search))

	items := make([]Item, 0, len(records))
	for i, ev := range records {
		if term != "" && !matches(ev, term) {
			continue
		}
		if !inCategory(ev, filter, today) {
			continue
		}
		items = append(items, Item{Position: i, Status: StatusOf(ev, today), Event: ev})
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Event.Date.Before(items[b].Event.Date)
	})
	return items
}

func matches(ev model.Event, term string) bool {
	return strings.Contains(strings.ToLower(ev.Title), term) ||
		strings.Contains(strings.ToLower(ev.Description), term)
}

func inCategory(ev model.Event, filter Filter, today model.Date) bool {
	switch filter {
	case FilterCompleted:
		return ev.IsCompleted
	case FilterPending:
		return !ev.IsCompleted
	case FilterUpcoming:
		return isUpcoming(ev, today)
	default:
		return true
	}
}

func isUpcoming(ev model.Event, today model.Date) bool {
	return !ev.IsCompleted && !ev.Date.Before(today)
}

// InRange keeps items whose date lies in [from, to]. A zero bound is open.
func InRange(items []Item, from, to model.Date) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !from.IsZero() && it.Event.Date.Before(from) {
			continue
		}
		if !to.IsZero() && it.Event.Date.After(to) {
			continue
		}
		out = append(out, it)
	}
	return out
}
