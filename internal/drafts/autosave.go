package drafts

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Saver persists a draft snapshot. The API client implements it.
type Saver interface {
	SaveDraft(ctx context.Context, kind string, data json.RawMessage) error
	ClearDraft(ctx context.Context, kind string) error
}

// Autosaver writes the latest snapshot after the form has been idle for delay.
// Earlier pending snapshots are dropped.
type Autosaver struct {
	saver Saver
	kind  string
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending json.RawMessage
	// gen changes on every Update and Clear. A flush only writes the
	// snapshot it took if gen is unchanged by the time it gets to save.
	gen uint64

	// saveMu orders writes against the saver.
	saveMu sync.Mutex
}

func NewAutosaver(saver Saver, kind string, delay time.Duration) *Autosaver {
	return &Autosaver{saver: saver, kind: kind, delay: delay}
}

// Update schedules data to be saved once no further update arrives within the delay.
func (a *Autosaver) Update(data json.RawMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = append(json.RawMessage(nil), data...)
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		if err := a.Flush(context.Background()); err != nil {
			slog.Warn("draft autosave failed", "kind", a.kind, "error", err)
		}
	})
}

// Flush saves the pending snapshot now.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	data := a.pending
	a.pending = nil
	gen := a.gen
	a.mu.Unlock()

	if data == nil {
		return nil
	}

	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	stale := gen != a.gen
	a.mu.Unlock()
	if stale {
		return nil
	}
	return a.saver.SaveDraft(ctx, a.kind, data)
}

// Clear drops any pending snapshot and removes the stored draft. Call it on
// submit or when the user abandons the form.
func (a *Autosaver) Clear(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = nil
	a.gen++
	a.mu.Unlock()

	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return a.saver.ClearDraft(ctx, a.kind)
}
