package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"prefest/internal/status"
	"prefest/models"
)

const maxMessageLength = 2000

// ChatService handles messages between matched users. A chat closes ttl after
// the event ends.
type ChatService struct {
	matches  MatchStore
	events   EventStore
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
}

func NewChatService(matches MatchStore, events EventStore, notifier Notifier, ttl time.Duration) *ChatService {
	return &ChatService{matches: matches, events: events, notifier: notifier, ttl: ttl, now: time.Now}
}

func (s *ChatService) member(ctx context.Context, userID, matchID string) (*models.Match, error) {
	m, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Has(userID) {
		return nil, status.ErrNotMatchMember
	}
	return m, nil
}

// Messages lists the unexpired messages of a match.
func (s *ChatService) Messages(ctx context.Context, userID, matchID string) ([]models.ChatMessage, error) {
	if _, err := s.member(ctx, userID, matchID); err != nil {
		return nil, err
	}
	msgs, err := s.matches.ListMessages(ctx, matchID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

func (s *ChatService) Send(ctx context.Context, userID, matchID, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, status.ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, status.ErrMessageTooLong
	}

	m, err := s.member(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, m.EventID)
	if err != nil {
		return nil, err
	}
	expiresAt := event.EndsAt.Add(s.ttl).UTC()
	now := s.now().UTC()
	if !now.Before(expiresAt) {
		return nil, status.ErrChatExpired
	}

	msg := &models.ChatMessage{
		MatchID:   matchID,
		SenderID:  userID,
		Body:      body,
		ExpiresAt: expiresAt,
	}
	if err := s.matches.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, m.Other(userID), models.Notification{
		Type:     models.NotifyChatMessage,
		EventID:  m.EventID,
		MatchID:  matchID,
		FromUser: userID,
	})
	return msg, nil
}
