package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"eventflow/internal/model"
)

// undoCapacity bounds the number of deleted records kept for Undo. Deletes
// beyond this are not recorded.
const undoCapacity = 50

// Store holds the canonical ordered sequence of events. Records are addressed
// by position (zero-based index), which shifts after Delete.
//
// Every method runs under the store lock, so each operation is atomic with
// respect to the others.
type Store struct {
	mu     sync.RWMutex
	events []model.Event
	undo   []model.Event

	newID func() string
}

// New returns an empty Store.
func New() *Store {
	return &Store{newID: uuid.NewString}
}

// ReplaceAll discards the current contents and the undo history. Records are
// trusted and copied as-is.
func (s *Store) ReplaceAll(records []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = model.Clone(records)
	if s.events == nil {
		s.events = []model.Event{}
	}
	s.undo = nil
}

// Add validates d against today and appends it as a pending record.
func (s *Store) Add(d Draft, today model.Date) (model.Event, error) {
	if err := Validate(d, today); err != nil {
		return model.Event{}, err
	}

	ev := model.Event{
		ID:          s.newID(),
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Date:        *d.Date,
		IsCompleted: false,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return ev, nil
}

// Complete marks the record at position as completed. Completing an already
// completed record is a no-op.
func (s *Store) Complete(position int) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPosition(position); err != nil {
		return model.Event{}, err
	}
	s.events[position].IsCompleted = true
	return s.events[position], nil
}

// Delete removes the record at position; later records move down by one.
func (s *Store) Delete(position int) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPosition(position); err != nil {
		return model.Event{}, err
	}

	removed := s.events[position]
	s.events = append(s.events[:position], s.events[position+1:]...)

	if len(s.undo) < undoCapacity {
		s.undo = append(s.undo, removed)
	}
	return removed, nil
}

// Undo re-appends the most recently deleted record at the end of the
// sequence. It reports false when there is nothing to restore.
func (s *Store) Undo() (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return model.Event{}, false
	}
	last := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.events = append(s.events, last)
	return last, true
}

// Snapshot returns a copy of the full sequence in store order.
func (s *Store) Snapshot() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := model.Clone(s.events)
	if out == nil {
		out = []model.Event{}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) checkPosition(position int) error {
	if position < 0 || position >= len(s.events) {
		return fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, position, len(s.events))
	}
	return nil
}
