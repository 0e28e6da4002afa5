// Package matching builds the attendee match feed and coordinates like, skip
// and match outcomes against the backend.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"prefest/models"
)

const (
	DefaultAge    = 25
	avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg"
)

// Backend is the remote side of the match feature.
type Backend interface {
	MatchCandidates(ctx context.Context, eventID string) ([]models.Candidate, error)
	EventAttendees(ctx context.Context, eventID string) ([]models.Candidate, error)
	Like(ctx context.Context, req models.LikeRequest) (*models.LikeResponse, error)
	PublicProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// Card is the display model of a candidate.
type Card struct {
	UserID             string   `json:"user_id"`
	Name               string   `json:"name"`
	Avatar             string   `json:"avatar"`
	Age                int      `json:"age"`
	Bio                string   `json:"bio"`
	Interests          []string `json:"interests"`
	LookingFor         []string `json:"looking_for"`
	CompatibilityScore *float64 `json:"compatibility_score,omitempty"`
}

// FilterCandidates drops the current user and anyone whose match_enabled is
// explicitly false. A missing flag keeps the candidate visible. The input
// slice is never modified.
func FilterCandidates(candidates []models.Candidate, currentUserID string) []models.Candidate {
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.UserID == "" || c.UserID == currentUserID {
			continue
		}
		if c.MatchEnabled != nil && !*c.MatchEnabled {
			continue
		}
		out = append(out, c)
	}
	return out
}

// AvatarURL returns a deterministic placeholder avatar keyed by user id.
func AvatarURL(userID string) string {
	return avatarBaseURL + "?seed=" + url.QueryEscape(userID)
}

// Initials turns "Maria da Silva" into "M. S.".
func Initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}
	first := initial(parts[0])
	if len(parts) == 1 {
		return first + "."
	}
	return first + ". " + initial(parts[len(parts)-1]) + "."
}

func initial(word string) string {
	r, _ := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r))
}

func ToCard(c models.Candidate) Card {
	card := Card{
		UserID:             c.UserID,
		Name:               c.DisplayName,
		Avatar:             c.Avatar,
		Age:                DefaultAge,
		Bio:                c.Bio,
		Interests:          c.Interests,
		LookingFor:         c.LookingFor,
		CompatibilityScore: c.CompatibilityScore,
	}
	if c.ShowInitialsOnly {
		card.Name = Initials(c.DisplayName)
	}
	if card.Avatar == "" {
		card.Avatar = AvatarURL(c.UserID)
	}
	if c.Age != nil && *c.Age > 0 {
		card.Age = *c.Age
	}
	if card.Interests == nil {
		card.Interests = []string{}
	}
	if card.LookingFor == nil {
		card.LookingFor = []string{}
	}
	return card
}

type FeedBuilder struct {
	backend Backend
}

func NewFeedBuilder(backend Backend) *FeedBuilder {
	return &FeedBuilder{backend: backend}
}

// Build fetches candidates for eventID, falling back to the plain attendee
// list when the candidates lookup fails, and maps the filtered result to cards.
func (b *FeedBuilder) Build(ctx context.Context, eventID, currentUserID string) ([]Card, error) {
	candidates, err := b.backend.MatchCandidates(ctx, eventID)
	if err != nil {
		slog.Warn("match candidates lookup failed, using attendees", "eventID", eventID, "error", err)

		candidates, err = b.backend.EventAttendees(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("load attendees: %w", err)
		}
	}

	filtered := FilterCandidates(candidates, currentUserID)
	cards := make([]Card, 0, len(filtered))
	for _, c := range filtered {
		cards = append(cards, ToCard(c))
	}
	return cards, nil
}
