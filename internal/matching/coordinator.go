package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"prefest/models"
)

type OutcomeKind int

const (
	OutcomeLiked OutcomeKind = iota
	OutcomeAlreadyLiked
	OutcomeMatch
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeLiked:
		return "liked"
	case OutcomeAlreadyLiked:
		return "already_liked"
	case OutcomeMatch:
		return "match"
	}
	return "unknown"
}

type Outcome struct {
	Kind      OutcomeKind
	Message   string
	Celebrate bool
	MatchID   string
	Profile   *models.Profile
}

// Coordinator sends likes for one event and classifies the backend answer.
// Match symmetry is decided by the backend only.
type Coordinator struct {
	backend Backend
	eventID string
	queue   *Queue

	mu          sync.Mutex
	lastMatchID string
}

func NewCoordinator(backend Backend, eventID string, queue *Queue) *Coordinator {
	return &Coordinator{backend: backend, eventID: eventID, queue: queue}
}

// Like sends a like for targetUserID. On success the candidate is consumed
// from the queue whatever the classification. A failed call leaves the queue
// untouched so the user can try again.
func (c *Coordinator) Like(ctx context.Context, targetUserID string) (Outcome, error) {
	resp, err := c.backend.Like(ctx, models.LikeRequest{TargetUserID: targetUserID, EventID: c.eventID})
	if err != nil {
		return Outcome{}, fmt.Errorf("like %s: %w", targetUserID, err)
	}
	c.queue.Remove(targetUserID)

	outcome := Classify(resp)
	if outcome.Kind != OutcomeMatch {
		return outcome, nil
	}

	c.mu.Lock()
	c.lastMatchID = outcome.MatchID
	c.mu.Unlock()

	profile, err := c.backend.PublicProfile(ctx, targetUserID)
	if err != nil {
		slog.Warn("load matched profile", "userID", targetUserID, "error", err)
		return outcome, nil
	}
	outcome.Profile = profile
	return outcome, nil
}

// Skip advances the local feed. No remote call is made.
func (c *Coordinator) Skip(targetUserID string) bool {
	return c.queue.Remove(targetUserID)
}

// LastMatchID is the match to open in chat after a celebration.
func (c *Coordinator) LastMatchID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMatchID
}

// Classify maps a like response to an outcome.
func Classify(resp *models.LikeResponse) Outcome {
	switch {
	case resp == nil:
		return Outcome{Kind: OutcomeLiked, Message: "Like sent"}
	case resp.Status == models.LikeStatusAlreadyLiked:
		return Outcome{Kind: OutcomeAlreadyLiked, Message: "You already liked this person"}
	case resp.Status == models.LikeStatusMatch || resp.IsMatch:
		return Outcome{Kind: OutcomeMatch, Message: "It's a match!", Celebrate: true, MatchID: resp.MatchID}
	}
	return Outcome{Kind: OutcomeLiked, Message: "Like sent"}
}
