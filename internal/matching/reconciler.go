package matching

import (
	"context"
	"log/slog"

	"prefest/models"
)

const seenLimit = 256

// RefreshFunc re-reads backend state after one or more notifications.
type RefreshFunc func(ctx context.Context, batch []models.Notification) error

// Reconciler is the single consumer of realtime notifications. Duplicates
// are dropped by notification id and bursts are coalesced into one refresh.
type Reconciler struct {
	inbox   chan models.Notification
	refresh RefreshFunc

	seen  map[string]struct{}
	order []string
}

func NewReconciler(buffer int, refresh RefreshFunc) *Reconciler {
	return &Reconciler{
		inbox:   make(chan models.Notification, buffer),
		refresh: refresh,
		seen:    make(map[string]struct{}),
	}
}

// Deliver hands n to the reconciliation loop.
func (r *Reconciler) Deliver(ctx context.Context, n models.Notification) error {
	select {
	case r.inbox <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops Run once the pending notifications are handled.
func (r *Reconciler) Close() {
	close(r.inbox)
}

func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-r.inbox:
			if !ok {
				return nil
			}
			batch, closed := r.drain(r.accept(nil, n))
			if len(batch) > 0 {
				if err := r.refresh(ctx, batch); err != nil {
					slog.Error("refresh after notification", "count", len(batch), "error", err)
				}
			}
			if closed {
				return nil
			}
		}
	}
}

func (r *Reconciler) drain(batch []models.Notification) ([]models.Notification, bool) {
	for {
		select {
		case n, ok := <-r.inbox:
			if !ok {
				return batch, true
			}
			batch = r.accept(batch, n)
		default:
			return batch, false
		}
	}
}

func (r *Reconciler) accept(batch []models.Notification, n models.Notification) []models.Notification {
	if n.ID != "" {
		if _, dup := r.seen[n.ID]; dup {
			return batch
		}
		r.seen[n.ID] = struct{}{}
		r.order = append(r.order, n.ID)
		if len(r.order) > seenLimit {
			delete(r.seen, r.order[0])
			r.order = r.order[1:]
		}
	}
	return append(batch, n)
}
