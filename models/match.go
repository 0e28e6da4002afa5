package models

import (
	"fmt"
	"time"
)

type Profile struct {
	UserID           string   `json:"user_id"`
	DisplayName      string   `json:"display_name"`
	Avatar           string   `json:"avatar,omitempty"`
	Bio              string   `json:"bio,omitempty"`
	Age              *int     `json:"age,omitempty"`
	Interests        []string `json:"interests,omitempty"`
	LookingFor       []string `json:"looking_for,omitempty"`
	MatchEnabled     *bool    `json:"match_enabled,omitempty"`
	ShowInitialsOnly bool     `json:"show_initials_only"`
	AllowProfileView bool     `json:"allow_profile_view"`
}

// Candidate is an attendee record as delivered by the candidates or attendees lookup.
type Candidate struct {
	Profile
	CompatibilityScore *float64 `json:"compatibility_score,omitempty"`
}

type LikeStatus string

const (
	LikeStatusLiked        LikeStatus = "liked"
	LikeStatusMatch        LikeStatus = "match"
	LikeStatusAlreadyLiked LikeStatus = "already_liked"
)

type LikeRequest struct {
	TargetUserID string `json:"target_user_id"`
	EventID      string `json:"event_id"`
}

type LikeResponse struct {
	Status  LikeStatus `json:"status"`
	MatchID string     `json:"match_id,omitempty"`
	IsMatch bool       `json:"is_match"`
}

type Match struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// Has reports whether userID is one of the two matched users.
func (m Match) Has(userID string) bool {
	return m.UserA == userID || m.UserB == userID
}

// Other returns the counterpart of userID.
func (m Match) Other(userID string) string {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

type ChatMessage struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type NotificationType string

const (
	NotifyNewLike        NotificationType = "new_like"
	NotifyMatch          NotificationType = "match"
	NotifyPaymentSuccess NotificationType = "payment_success"
	NotifyPaymentFailed  NotificationType = "payment_failed"
	NotifyChatMessage    NotificationType = "chat_message"
)

// Notification is pushed to the per-user realtime channel.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	EventID   string           `json:"event_id,omitempty"`
	MatchID   string           `json:"match_id,omitempty"`
	PaymentID string           `json:"payment_id,omitempty"`
	FromUser  string           `json:"from_user,omitempty"`
	SentAt    time.Time        `json:"sent_at"`
}

// UserChannel is the realtime channel a user's clients subscribe to.
func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}
