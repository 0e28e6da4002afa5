package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"prefest/models"

	pubnub "github.com/pubnub/go/v7"
)

// Subscriber receives the notifications pushed to one user's channel.
type Subscriber struct {
	pn      *pubnub.PubNub
	lis     *pubnub.Listener
	channel string
}

func NewSubscriber(subscribeKey, userID string) *Subscriber {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnCfg.SubscribeKey = subscribeKey

	return &Subscriber{
		pn:      pubnub.NewPubNub(pnCfg),
		lis:     pubnub.NewListener(),
		channel: models.UserChannel(userID),
	}
}

// Run forwards every notification to deliver until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, deliver func(context.Context, models.Notification) error) error {
	s.pn.AddListener(s.lis)
	s.pn.Subscribe().Channels([]string{s.channel}).Execute()
	defer func() {
		s.pn.Unsubscribe().Channels([]string{s.channel}).Execute()
		s.pn.RemoveListener(s.lis)
	}()

	for {
		select {
		case status := <-s.lis.Status:
			switch status.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to pubnub")
			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to pubnub")
			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from pubnub")
			case pubnub.PNAccessDeniedCategory:
				return fmt.Errorf("pubnub: access denied to %s", s.channel)
			}

		case message := <-s.lis.Message:
			n, err := decodeNotification(message.Message)
			if err != nil {
				log.Printf("realtime: %v", err)
				continue
			}
			if err := deliver(ctx, n); err != nil {
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// decodeNotification accepts the message either as a JSON string or as the
// map PubNub decodes objects into.
func decodeNotification(msg any) (models.Notification, error) {
	var n models.Notification

	var raw []byte
	switch v := msg.(type) {
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return n, fmt.Errorf("re-encode message: %w", err)
		}
		raw = b
	}

	if err := json.Unmarshal(raw, &n); err != nil {
		return n, fmt.Errorf("decode notification: %w", err)
	}
	if n.Type == "" {
		return n, fmt.Errorf("notification without type")
	}
	return n, nil
}
