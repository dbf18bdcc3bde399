package model

// Event is a single trackable item.
//
// Position in the store (not ID) is the addressing scheme; ID is a synthetic
// identifier assigned on creation and used where an external format needs a
// stable key (ICS UID).
type Event struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        Date   `json:"date"`
	IsCompleted bool   `json:"isCompleted"`
}

// Clone returns a copy of events that shares no backing array with the input.
func Clone(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out
}
