package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"prefest/internal/broker"
	"prefest/internal/matching"
	"prefest/internal/status"
	"prefest/models"
	"prefest/monitoring"
)

type MatchService struct {
	store     MatchStore
	notifier  Notifier
	publisher broker.Publisher
	monitor   *monitoring.Monitor
}

func NewMatchService(store MatchStore, notifier Notifier, publisher broker.Publisher, monitor *monitoring.Monitor) *MatchService {
	return &MatchService{store: store, notifier: notifier, publisher: publisher, monitor: monitor}
}

func (s *MatchService) requireAttending(ctx context.Context, userID, eventID string) error {
	ok, err := s.store.IsAttending(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("check attendance: %w", err)
	}
	if !ok {
		return status.ErrNotAttending
	}
	return nil
}

// Attendees lists everyone holding a ticket for the event, unscored. Other
// users who switched matching off are left out and initials-only profiles are
// masked the same way PublicProfile does.
func (s *MatchService) Attendees(ctx context.Context, userID, eventID string) ([]models.Candidate, error) {
	if err := s.requireAttending(ctx, userID, eventID); err != nil {
		return nil, err
	}
	attendees, err := s.store.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, len(attendees))
	for _, c := range attendees {
		if c.UserID == userID {
			out = append(out, c)
			continue
		}
		if c.MatchEnabled != nil && !*c.MatchEnabled {
			continue
		}
		out = append(out, maskCandidate(c))
	}
	return out, nil
}

func maskCandidate(c models.Candidate) models.Candidate {
	if c.ShowInitialsOnly {
		c.DisplayName = matching.Initials(c.DisplayName)
		c.Avatar = ""
	}
	return c
}

// Candidates returns attendees the user has not liked yet, best scored first.
func (s *MatchService) Candidates(ctx context.Context, userID, eventID string) ([]models.Candidate, error) {
	attendees, err := s.Attendees(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	me, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, status.ErrProfileNotFound) {
		me = &models.Profile{UserID: userID}
	} else if err != nil {
		return nil, err
	}

	liked, err := s.store.LikedUserIDs(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, len(attendees))
	for _, c := range attendees {
		if c.UserID == userID || liked[c.UserID] {
			continue
		}
		score := Compatibility(*me, c.Profile)
		c.CompatibilityScore = &score
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].CompatibilityScore > *out[j].CompatibilityScore
	})
	return out, nil
}

// Compatibility scores two profiles between 0 and 1. Shared interests weigh
// 0.8, shared looking_for goals 0.2.
func Compatibility(a, b models.Profile) float64 {
	score := 0.8*jaccard(a.Interests, b.Interests) + 0.2*jaccard(a.LookingFor, b.LookingFor)
	return math.Round(score*100) / 100
}

func jaccard(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	union := len(set)
	shared := 0
	seen := make(map[string]bool, len(b))
	for _, v := range b {
		k := strings.ToLower(strings.TrimSpace(v))
		if seen[k] {
			continue
		}
		seen[k] = true
		if set[k] {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Like records a like and reports whether it completed a match.
func (s *MatchService) Like(ctx context.Context, userID string, req models.LikeRequest) (*models.LikeResponse, error) {
	if req.TargetUserID == "" || req.EventID == "" {
		return nil, fmt.Errorf("%w: target_user_id and event_id", status.ErrInvalidRequest)
	}
	if req.TargetUserID == userID {
		return nil, status.ErrSelfLike
	}
	if err := s.requireAttending(ctx, userID, req.EventID); err != nil {
		return nil, err
	}
	if err := s.requireAttending(ctx, req.TargetUserID, req.EventID); err != nil {
		return nil, err
	}

	resp, err := s.store.CreateLike(ctx, userID, req.TargetUserID, req.EventID)
	if err != nil {
		return nil, err
	}
	s.monitor.TrackLike(string(resp.Status))

	switch resp.Status {
	case models.LikeStatusLiked:
		notify(ctx, s.notifier, req.TargetUserID, models.Notification{
			Type:     models.NotifyNewLike,
			EventID:  req.EventID,
			FromUser: userID,
		})
	case models.LikeStatusMatch:
		for _, pair := range [][2]string{{userID, req.TargetUserID}, {req.TargetUserID, userID}} {
			notify(ctx, s.notifier, pair[0], models.Notification{
				Type:     models.NotifyMatch,
				EventID:  req.EventID,
				MatchID:  resp.MatchID,
				FromUser: pair[1],
			})
		}
		if s.publisher != nil {
			env := broker.NewEnvelope(broker.KeyMatchCreated, broker.MatchCreated{
				MatchID: resp.MatchID,
				EventID: req.EventID,
				UserA:   userID,
				UserB:   req.TargetUserID,
			})
			if err := s.publisher.PublishJSON(ctx, broker.KeyMatchCreated, env); err != nil {
				slog.Warn("publish event failed", "key", broker.KeyMatchCreated, "error", err)
			}
		}
	}
	return resp, nil
}

// PublicProfile returns what viewerID may see of userID.
func (s *MatchService) PublicProfile(ctx context.Context, viewerID, userID string) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if viewerID == userID {
		return p, nil
	}
	if !p.AllowProfileView {
		return nil, status.ErrProfileHidden
	}

	public := *p
	public.MatchEnabled = nil
	if p.ShowInitialsOnly {
		public.DisplayName = matching.Initials(p.DisplayName)
		public.Avatar = ""
	}
	return &public, nil
}
