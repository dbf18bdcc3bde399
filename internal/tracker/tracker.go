package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	appLog "eventflow/internal/log"
	"eventflow/internal/model"
	"eventflow/internal/store"
	"eventflow/internal/view"
)

const (
	// LoadTimeout bounds the initial upstream fetch.
	LoadTimeout = 3 * time.Second
	// SyncTimeout bounds each background mutation call.
	SyncTimeout = 2 * time.Second
)

// Remote is the upstream collaborator. Positions are 0-based store positions.
type Remote interface {
	List(ctx context.Context) ([]model.Event, error)
	Create(ctx context.Context, ev model.Event) error
	Complete(ctx context.Context, position int) error
	Delete(ctx context.Context, position int) error
	Undo(ctx context.Context) error
}

// FallbackFunc produces the dataset used when the upstream load fails.
type FallbackFunc func(ctx context.Context) ([]model.Event, error)

// Source tells where the current store contents came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
	SourceDemo     Source = "demo"
)

// Options configures a Tracker. Every field is optional.
type Options struct {
	// Remote is nil for local-only operation.
	Remote Remote
	// Fallback replaces DemoEvents when set; if it fails DemoEvents is used.
	Fallback FallbackFunc
	// Location determines "today". Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// SyncStats counts background upstream calls by outcome.
type SyncStats struct {
	Attempted int64 `json:"attempted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// LoadInfo describes the most recent Load.
type LoadInfo struct {
	Source Source    `json:"source"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}

// Tracker applies every mutation to the local store immediately and mirrors
// it to the upstream in the background. Upstream outcomes are logged and
// counted but never change local state.
type Tracker struct {
	store    *store.Store
	remote   Remote
	fallback FallbackFunc
	loc      *time.Location
	now      func() time.Time

	loadTimeout time.Duration
	syncTimeout time.Duration

	// mutMu makes a local mutation and the queueing of its upstream call one
	// step, so upstream calls follow local order. syncTail is closed when the
	// most recently queued call has settled.
	mutMu    sync.Mutex
	syncTail chan struct{}

	wg        sync.WaitGroup
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	loadMu   sync.RWMutex
	lastLoad LoadInfo
}

func New(opts Options) *Tracker {
	t := &Tracker{
		store:       store.New(),
		remote:      opts.Remote,
		fallback:    opts.Fallback,
		loc:         opts.Location,
		now:         opts.Now,
		loadTimeout: LoadTimeout,
		syncTimeout: SyncTimeout,
	}
	if t.loc == nil {
		t.loc = time.Local
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Load fills the store from the upstream, racing it against LoadTimeout. On
// timeout or any error the fallback dataset is used instead. Load never
// leaves the store empty because of an upstream failure.
//
// When ctx itself is cancelled the caller has gone away: the store keeps its
// current contents and the previous source is returned.
func (t *Tracker) Load(ctx context.Context) Source {
	var (
		events []model.Event
		src    Source
	)

	if t.remote != nil {
		start := t.now()
		remoteEvents, err := firstSettled(ctx, t.loadTimeout, t.remote.List)
		switch {
		case err == nil:
			events, src = remoteEvents, SourceRemote
			appLog.Info("initial load from remote", "count", len(events), "elapsed", time.Since(start).String())
		case ctx.Err() != nil:
			return t.abandonLoad(ctx)
		default:
			appLog.Warn("initial load from remote failed; using fallback", err, "timeout", t.loadTimeout.String())
		}
	}

	if src == "" {
		events, src = t.fallbackEvents(ctx)
		if ctx.Err() != nil {
			return t.abandonLoad(ctx)
		}
	}

	t.store.ReplaceAll(events)

	t.loadMu.Lock()
	t.lastLoad = LoadInfo{Source: src, Count: len(events), At: t.now()}
	t.loadMu.Unlock()

	return src
}

// abandonLoad leaves the store untouched after the caller cancelled a Load.
func (t *Tracker) abandonLoad(ctx context.Context) Source {
	appLog.Warn("load abandoned; keeping current events", ctx.Err(), "count", t.store.Len())
	return t.LastLoad().Source
}

func (t *Tracker) fallbackEvents(ctx context.Context) ([]model.Event, Source) {
	if t.fallback != nil {
		events, err := t.fallback(ctx)
		if err == nil {
			appLog.Info("fallback dataset loaded", "count", len(events))
			return events, SourceFallback
		}
		appLog.Warn("fallback source failed; using demo data", err)
	}
	events := DemoEvents()
	appLog.Info("demo data loaded", "count", len(events))
	return events, SourceDemo
}

// Today is the current civil date in the tracker's location.
func (t *Tracker) Today() model.Date {
	return model.DateOf(t.now().In(t.loc))
}

func (t *Tracker) Location() *time.Location {
	return t.loc
}

// Create validates d and appends it. Validation errors are returned as
// *store.ValidationError and nothing is sent upstream.
func (t *Tracker) Create(d store.Draft) (model.Event, error) {
	t.mutMu.Lock()
	defer t.mutMu.Unlock()

	ev, err := t.store.Add(d, t.Today())
	if err != nil {
		return model.Event{}, err
	}
	appLog.Info("event created", "title", ev.Title, "date", ev.Date.String())
	t.sync("create", func(ctx context.Context) error {
		return t.remote.Create(ctx, ev)
	})
	return ev, nil
}

// Complete marks the record at position completed.
func (t *Tracker) Complete(position int) (model.Event, error) {
	t.mutMu.Lock()
	defer t.mutMu.Unlock()

	ev, err := t.store.Complete(position)
	if err != nil {
		return model.Event{}, err
	}
	appLog.Info("event completed", "position", position, "title", ev.Title)
	t.sync("complete", func(ctx context.Context) error {
		return t.remote.Complete(ctx, position)
	})
	return ev, nil
}

// Delete removes the record at position. Positions of later records shift.
func (t *Tracker) Delete(position int) (model.Event, error) {
	t.mutMu.Lock()
	defer t.mutMu.Unlock()

	ev, err := t.store.Delete(position)
	if err != nil {
		return model.Event{}, err
	}
	appLog.Info("event deleted", "position", position, "title", ev.Title)
	t.sync("delete", func(ctx context.Context) error {
		return t.remote.Delete(ctx, position)
	})
	return ev, nil
}

// Undo restores the most recently deleted record at the end of the list.
func (t *Tracker) Undo() (model.Event, bool) {
	t.mutMu.Lock()
	defer t.mutMu.Unlock()

	ev, ok := t.store.Undo()
	if !ok {
		return model.Event{}, false
	}
	appLog.Info("event restored", "title", ev.Title)
	t.sync("undo", func(ctx context.Context) error {
		return t.remote.Undo(ctx)
	})
	return ev, true
}

// sync queues call behind every earlier upstream call and runs it in the
// background under syncTimeout. Callers hold mutMu.
func (t *Tracker) sync(op string, call func(ctx context.Context) error) {
	if t.remote == nil {
		return
	}
	t.attempted.Add(1)
	t.wg.Add(1)

	prev, done := t.syncTail, make(chan struct{})
	t.syncTail = done
	go func() {
		defer t.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		_, err := firstSettled(context.Background(), t.syncTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, call(ctx)
		})
		if err != nil {
			t.failed.Add(1)
			appLog.Warn("remote sync failed; keeping local change", err, "op", op)
			return
		}
		t.succeeded.Add(1)
		appLog.Debug("remote sync ok", "op", op)
	}()
}

// Wait blocks until all background upstream calls have settled.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) SyncStats() SyncStats {
	return SyncStats{
		Attempted: t.attempted.Load(),
		Succeeded: t.succeeded.Load(),
		Failed:    t.failed.Load(),
	}
}

func (t *Tracker) LastLoad() LoadInfo {
	t.loadMu.RLock()
	defer t.loadMu.RUnlock()
	return t.lastLoad
}

// Snapshot returns the records in store order.
func (t *Tracker) Snapshot() []model.Event {
	return t.store.Snapshot()
}

// View projects the current records for display.
func (t *Tracker) View(search string, filter view.Filter) []view.Item {
	return view.Project(t.store.Snapshot(), search, filter, t.Today())
}

// Stats derives the counters over all records.
func (t *Tracker) Stats() view.Stats {
	return view.DeriveStats(t.store.Snapshot(), t.Today())
}
