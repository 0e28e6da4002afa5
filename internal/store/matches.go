package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"prefest/internal/status"
	"prefest/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

func profileFromRecord(r *core.Record) models.Profile {
	enabled := r.GetBool("match_enabled")
	p := models.Profile{
		UserID:           r.GetString("user"),
		DisplayName:      r.GetString("display_name"),
		Avatar:           r.GetString("avatar"),
		Bio:              r.GetString("bio"),
		MatchEnabled:     &enabled,
		ShowInitialsOnly: r.GetBool("show_initials_only"),
		AllowProfileView: r.GetBool("allow_profile_view"),
	}
	if age := r.GetInt("age"); age > 0 {
		p.Age = &age
	}
	_ = r.UnmarshalJSONField("interests", &p.Interests)
	_ = r.UnmarshalJSONField("looking_for", &p.LookingFor)
	return p
}

func (s *Store) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	r, err := s.app.FindFirstRecordByFilter(CollectionProfiles, "user = {:user}", dbx.Params{"user": userID})
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p := profileFromRecord(r)
	return &p, nil
}

// ListAttendees joins the ticket holders of eventID with their profiles.
// Holders without a profile come back with a nil MatchEnabled.
func (s *Store) ListAttendees(_ context.Context, eventID string) ([]models.Candidate, error) {
	var rows []dbx.NullStringMap
	err := s.app.DB().NewQuery(`
		SELECT p.user AS user_id,
			COALESCE(NULLIF(pr.display_name, ''), u.name, '') AS display_name,
			pr.id AS profile_id, pr.avatar, pr.bio, pr.age, pr.interests, pr.looking_for,
			pr.match_enabled, pr.show_initials_only
		FROM participants p
		JOIN users u ON u.id = p.user
		LEFT JOIN profiles pr ON pr.user = p.user
		WHERE p.event = {:event} AND p.status != 'cancelled'
		GROUP BY p.user
	`).Bind(dbx.Params{"event": eventID}).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}

	out := make([]models.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, candidateFromRow(row))
	}
	return out, nil
}

func candidateFromRow(row dbx.NullStringMap) models.Candidate {
	c := models.Candidate{Profile: models.Profile{
		UserID:      row["user_id"].String,
		DisplayName: row["display_name"].String,
		Avatar:      row["avatar"].String,
		Bio:         row["bio"].String,
	}}
	if !row["profile_id"].Valid {
		return c
	}
	if age, err := strconv.Atoi(row["age"].String); err == nil && age > 0 {
		c.Age = &age
	}
	if enabled, err := strconv.ParseBool(row["match_enabled"].String); err == nil {
		c.MatchEnabled = &enabled
	}
	c.ShowInitialsOnly, _ = strconv.ParseBool(row["show_initials_only"].String)
	_ = json.Unmarshal([]byte(row["interests"].String), &c.Interests)
	_ = json.Unmarshal([]byte(row["looking_for"].String), &c.LookingFor)
	return c
}

func (s *Store) IsAttending(ctx context.Context, userID, eventID string) (bool, error) {
	_, err := s.FindParticipant(ctx, userID, eventID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, status.ErrParticipantNotFound) {
		return false, nil
	}
	return false, err
}

// LikedUserIDs returns everyone fromUser already liked in eventID.
func (s *Store) LikedUserIDs(_ context.Context, fromUser, eventID string) (map[string]bool, error) {
	var rows []dbx.NullStringMap
	err := s.app.DB().NewQuery(
		"SELECT to_user FROM likes WHERE from_user = {:from} AND event = {:event}",
	).Bind(dbx.Params{"from": fromUser, "event": eventID}).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("liked users: %w", err)
	}

	liked := make(map[string]bool, len(rows))
	for _, row := range rows {
		liked[row["to_user"].String] = true
	}
	return liked, nil
}

func orderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func findMatch(app core.App, a, b, eventID string) (*core.Record, error) {
	userA, userB := orderedPair(a, b)
	return app.FindFirstRecordByFilter(
		CollectionMatches,
		"user_a = {:a} && user_b = {:b} && event = {:event}",
		dbx.Params{"a": userA, "b": userB, "event": eventID},
	)
}

// CreateLike stores the like from -> to and creates the match when the
// reciprocal like exists, all in one transaction. Status is match only for
// the call that created the match.
func (s *Store) CreateLike(_ context.Context, from, to, eventID string) (*models.LikeResponse, error) {
	resp := &models.LikeResponse{}

	err := s.app.RunInTransaction(func(txApp core.App) error {
		params := dbx.Params{"from": from, "to": to, "event": eventID}

		_, err := txApp.FindFirstRecordByFilter(
			CollectionLikes,
			"from_user = {:from} && to_user = {:to} && event = {:event}",
			params,
		)
		if err == nil {
			resp.Status = models.LikeStatusAlreadyLiked
			if m, err := findMatch(txApp, from, to, eventID); err == nil {
				resp.MatchID = m.Id
			}
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("check like: %w", err)
		}

		likes, err := txApp.FindCollectionByNameOrId(CollectionLikes)
		if err != nil {
			return err
		}
		like := core.NewRecord(likes)
		like.Set("from_user", from)
		like.Set("to_user", to)
		like.Set("event", eventID)
		if err := txApp.Save(like); err != nil {
			return fmt.Errorf("save like: %w", err)
		}

		_, err = txApp.FindFirstRecordByFilter(
			CollectionLikes,
			"from_user = {:to} && to_user = {:from} && event = {:event}",
			params,
		)
		if isNotFound(err) {
			resp.Status = models.LikeStatusLiked
			return nil
		}
		if err != nil {
			return fmt.Errorf("check reciprocal like: %w", err)
		}

		if existing, err := findMatch(txApp, from, to, eventID); err == nil {
			resp.Status = models.LikeStatusAlreadyLiked
			resp.MatchID = existing.Id
			return nil
		}

		matches, err := txApp.FindCollectionByNameOrId(CollectionMatches)
		if err != nil {
			return err
		}
		userA, userB := orderedPair(from, to)
		match := core.NewRecord(matches)
		match.Set("user_a", userA)
		match.Set("user_b", userB)
		match.Set("event", eventID)
		if err := txApp.Save(match); err != nil {
			return fmt.Errorf("save match: %w", err)
		}

		resp.Status = models.LikeStatusMatch
		resp.IsMatch = true
		resp.MatchID = match.Id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func matchFromRecord(r *core.Record) models.Match {
	return models.Match{
		ID:        r.Id,
		EventID:   r.GetString("event"),
		UserA:     r.GetString("user_a"),
		UserB:     r.GetString("user_b"),
		CreatedAt: timeOf(r, "created"),
	}
}

func (s *Store) GetMatch(_ context.Context, id string) (*models.Match, error) {
	r, err := s.app.FindRecordById(CollectionMatches, id)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrMatchNotFound
		}
		return nil, fmt.Errorf("find match %s: %w", id, err)
	}
	m := matchFromRecord(r)
	return &m, nil
}

// ListMessages returns the messages of matchID that have not expired at now.
func (s *Store) ListMessages(_ context.Context, matchID string, now time.Time) ([]models.ChatMessage, error) {
	records, err := s.app.FindRecordsByFilter(
		CollectionMessages,
		"match = {:match} && expires_at > {:now}",
		"created",
		200,
		0,
		dbx.Params{"match": matchID, "now": dbTime(now)},
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]models.ChatMessage, 0, len(records))
	for _, r := range records {
		out = append(out, models.ChatMessage{
			ID:        r.Id,
			MatchID:   r.GetString("match"),
			SenderID:  r.GetString("sender"),
			Body:      r.GetString("body"),
			CreatedAt: timeOf(r, "created"),
			ExpiresAt: timeOf(r, "expires_at"),
		})
	}
	return out, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *models.ChatMessage) error {
	collection, err := s.app.FindCollectionByNameOrId(CollectionMessages)
	if err != nil {
		return err
	}
	record := core.NewRecord(collection)
	record.Set("match", m.MatchID)
	record.Set("sender", m.SenderID)
	record.Set("body", m.Body)
	record.Set("expires_at", dbTime(m.ExpiresAt))

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	m.ID = record.Id
	m.CreatedAt = timeOf(record, "created")
	return nil
}
