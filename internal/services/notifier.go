package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"prefest/models"

	"github.com/google/uuid"
	pubnub "github.com/pubnub/go/v7"
)

// Notifier pushes realtime notifications to a single user.
type Notifier interface {
	Notify(ctx context.Context, userID string, n models.Notification) error
}

func stamp(n *models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
}

type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(publishKey, subscribeKey, secretKey, userID string) *PubNubNotifier {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnCfg.PublishKey = publishKey
	pnCfg.SubscribeKey = subscribeKey
	pnCfg.SecretKey = secretKey

	return &PubNubNotifier{pn: pubnub.NewPubNub(pnCfg)}
}

func (p *PubNubNotifier) Notify(_ context.Context, userID string, n models.Notification) error {
	stamp(&n)

	_, _, err := p.pn.Publish().
		Channel(models.UserChannel(userID)).
		Message(n).
		Execute()
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", n.Type, userID, err)
	}
	return nil
}

// LogNotifier stands in for PubNub when no keys are configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID string, n models.Notification) error {
	stamp(&n)
	slog.Info("notification", "channel", models.UserChannel(userID), "type", n.Type, "id", n.ID)
	return nil
}

// notify delivers n and only logs failures. Realtime delivery never fails the request.
func notify(ctx context.Context, notifier Notifier, userID string, n models.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, userID, n); err != nil {
		slog.Warn("realtime notification failed", "user_id", userID, "type", n.Type, "error", err)
	}
}
