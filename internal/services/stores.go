package services

import (
	"context"
	"time"

	"prefest/models"
)

// The services depend on these slices of *store.Store so tests can swap in fakes.

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
}

type CouponStore interface {
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, id string) error
}

type TicketStore interface {
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	FindParticipant(ctx context.Context, userID, eventID string) (*models.Participant, error)
	FindParticipantByCode(ctx context.Context, code string) (*models.Participant, error)
	FindParticipantByPayment(ctx context.Context, paymentID string) (*models.Participant, error)
	CreateParticipant(ctx context.Context, p *models.Participant) error
	RedeemParticipant(ctx context.Context, id string, at time.Time) (bool, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	FindPaymentByProviderRef(ctx context.Context, ref string) (*models.Payment, error)
	AttachCharge(ctx context.Context, id, providerRef, paymentURL string) error
	CompletePayment(ctx context.Context, id string, to models.PaymentStatus, failureCode string, at time.Time) (bool, error)
}

type MatchStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	ListAttendees(ctx context.Context, eventID string) ([]models.Candidate, error)
	IsAttending(ctx context.Context, userID, eventID string) (bool, error)
	LikedUserIDs(ctx context.Context, fromUser, eventID string) (map[string]bool, error)
	CreateLike(ctx context.Context, from, to, eventID string) (*models.LikeResponse, error)
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	ListMessages(ctx context.Context, matchID string, now time.Time) ([]models.ChatMessage, error)
	CreateMessage(ctx context.Context, m *models.ChatMessage) error
}
