package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"prefest/internal/status"
	"prefest/models"
)

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	mu sync.Mutex

	events       map[string]*models.Event
	ticketTypes  map[string]*models.TicketType
	coupons      map[string]*models.Coupon
	participants map[string]*models.Participant
	payments     map[string]*models.Payment
	profiles     map[string]*models.Profile
	attendees    map[string][]models.Candidate
	likes        map[string]bool
	matches      map[string]*models.Match
	messages     []models.ChatMessage

	seq         int
	failLookups error
	// failIssue is returned by the next CreateParticipant call, then reset.
	failIssue error
}

func newMemStore() *memStore {
	return &memStore{
		events:       map[string]*models.Event{},
		ticketTypes:  map[string]*models.TicketType{},
		coupons:      map[string]*models.Coupon{},
		participants: map[string]*models.Participant{},
		payments:     map[string]*models.Payment{},
		profiles:     map[string]*models.Profile{},
		attendees:    map[string][]models.Candidate{},
		likes:        map[string]bool{},
		matches:      map[string]*models.Match{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *memStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, status.ErrEventNotFound
	}
	c := *e
	return &c, nil
}

func (m *memStore) ListTicketTypes(_ context.Context, eventID string) ([]models.TicketType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TicketType
	for _, tt := range m.ticketTypes {
		if tt.EventID == eventID {
			out = append(out, *tt)
		}
	}
	return out, nil
}

func (m *memStore) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tt, ok := m.ticketTypes[id]
	if !ok {
		return nil, status.ErrTicketTypeNotFound
	}
	c := *tt
	return &c, nil
}

func (m *memStore) FindCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookups != nil {
		return nil, m.failLookups
	}
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, status.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) IncrementCouponUsage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if c.ID == id {
			if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
				return status.ErrCouponNotFound
			}
			c.UsedCount++
			return nil
		}
	}
	return status.ErrCouponNotFound
}

func (m *memStore) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, status.ErrParticipantNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) FindParticipant(_ context.Context, userID, eventID string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.UserID == userID && p.EventID == eventID && p.Status != models.ParticipantCancelled {
			c := *p
			return &c, nil
		}
	}
	return nil, status.ErrParticipantNotFound
}

func (m *memStore) FindParticipantByCode(_ context.Context, code string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookups != nil {
		return nil, m.failLookups
	}
	for _, p := range m.participants {
		if p.TicketCode == code {
			c := *p
			return &c, nil
		}
	}
	return nil, status.ErrParticipantNotFound
}

func (m *memStore) FindParticipantByPayment(_ context.Context, paymentID string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.PaymentID == paymentID {
			c := *p
			return &c, nil
		}
	}
	return nil, status.ErrParticipantNotFound
}

func (m *memStore) CreateParticipant(_ context.Context, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failIssue; err != nil {
		m.failIssue = nil
		return err
	}
	for _, existing := range m.participants {
		if existing.UserID == p.UserID && existing.EventID == p.EventID && existing.Status != models.ParticipantCancelled {
			return status.ErrAlreadyRegistered
		}
	}
	if p.TicketTypeID != "" {
		tt := m.ticketTypes[p.TicketTypeID]
		if tt == nil || tt.QuantitySold >= tt.QuantityAvailable {
			return status.ErrSoldOut
		}
		tt.QuantitySold++
	}
	p.ID = m.nextID("p")
	p.Status = models.ParticipantValid
	p.CreatedAt = time.Now()
	c := *p
	m.participants[p.ID] = &c
	return nil
}

func (m *memStore) RedeemParticipant(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok || p.Status != models.ParticipantValid {
		return false, nil
	}
	p.Status = models.ParticipantUsed
	p.CheckedInAt = &at
	return true, nil
}

func (m *memStore) CreatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID("pay")
	c := *p
	m.payments[p.ID] = &c
	return nil
}

func (m *memStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, status.ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) FindPaymentByProviderRef(_ context.Context, ref string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProviderRef == ref {
			c := *p
			return &c, nil
		}
	}
	return nil, status.ErrPaymentNotFound
}

func (m *memStore) AttachCharge(_ context.Context, id, providerRef, paymentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return status.ErrPaymentNotFound
	}
	p.ProviderRef = providerRef
	p.PaymentURL = paymentURL
	return nil
}

func (m *memStore) CompletePayment(_ context.Context, id string, to models.PaymentStatus, failureCode string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, status.ErrPaymentNotFound
	}
	if p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = to
	p.FailureCode = failureCode
	p.CompletedAt = &at
	return true, nil
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, status.ErrProfileNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) ListAttendees(_ context.Context, eventID string) ([]models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Candidate(nil), m.attendees[eventID]...), nil
}

func (m *memStore) IsAttending(_ context.Context, userID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.attendees[eventID] {
		if c.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func likeKey(from, to, eventID string) string { return from + ">" + to + "@" + eventID }

func (m *memStore) LikedUserIDs(_ context.Context, fromUser, eventID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, c := range m.attendees[eventID] {
		if m.likes[likeKey(fromUser, c.UserID, eventID)] {
			out[c.UserID] = true
		}
	}
	return out, nil
}

func (m *memStore) CreateLike(_ context.Context, from, to, eventID string) (*models.LikeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likes[likeKey(from, to, eventID)] {
		return &models.LikeResponse{Status: models.LikeStatusAlreadyLiked}, nil
	}
	m.likes[likeKey(from, to, eventID)] = true
	if !m.likes[likeKey(to, from, eventID)] {
		return &models.LikeResponse{Status: models.LikeStatusLiked}, nil
	}
	match := &models.Match{ID: m.nextID("m"), EventID: eventID, UserA: from, UserB: to, CreatedAt: time.Now()}
	m.matches[match.ID] = match
	return &models.LikeResponse{Status: models.LikeStatusMatch, MatchID: match.ID, IsMatch: true}, nil
}

func (m *memStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, status.ErrMatchNotFound
	}
	c := *match
	return &c, nil
}

func (m *memStore) ListMessages(_ context.Context, matchID string, now time.Time) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatMessage
	for _, msg := range m.messages {
		if msg.MatchID == matchID && msg.ExpiresAt.After(now) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.nextID("msg")
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

type sentNotification struct {
	UserID string
	models.Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(_ context.Context, userID string, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{UserID: userID, Notification: n})
	return nil
}

func (r *recordingNotifier) types() []models.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NotificationType, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.Type)
	}
	return out
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }
