package handlers

import (
	"context"
	"net/http"

	"prefest/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type MatchService interface {
	Candidates(ctx context.Context, userID, eventID string) ([]models.Candidate, error)
	Attendees(ctx context.Context, userID, eventID string) ([]models.Candidate, error)
	Like(ctx context.Context, userID string, req models.LikeRequest) (*models.LikeResponse, error)
	PublicProfile(ctx context.Context, viewerID, userID string) (*models.Profile, error)
}

type ChatService interface {
	Messages(ctx context.Context, userID, matchID string) ([]models.ChatMessage, error)
	Send(ctx context.Context, userID, matchID, body string) (*models.ChatMessage, error)
}

type MatchHandler struct {
	matches MatchService
	chat    ChatService
}

func NewMatchHandler(matches MatchService, chat ChatService) *MatchHandler {
	return &MatchHandler{matches: matches, chat: chat}
}

func (h *MatchHandler) GetCandidates(e *core.RequestEvent) error {
	userID, err := authUserID(e)
	if err != nil {
		return err
	}
	candidates, err := h.matches.Candidates(e.Request.Context(), userID, e.Request.PathValue("eventId"))
	if err != nil {
		return toAPIError("matches.Candidates", err)
	}
	return e.JSON(http.StatusOK, candidates)
}

func (h *MatchHandler) GetAttendees(e *core.RequestEvent) error {
	userID, err := authUserID(e)
	if err != nil {
		return err
	}
	attendees, err := h.matches.Attendees(e.Request.Context(), userID, e.Request.PathValue("eventId"))
	if err != nil {
		return toAPIError("matches.Attendees", err)
	}
	return e.JSON(http.StatusOK, attendees)
}

func (h *MatchHandler) Like(e *core.RequestEvent) error {
	userID, err := authUserID(e)
	if err != nil {
		return err
	}
	var req models.LikeRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	resp, err := h.matches.Like(e.Request.Context(), userID, req)
	if err != nil {
		return toAPIError("matches.Like", err)
	}
	return e.JSON(http.StatusOK, resp)
}

func (h *MatchHandler) GetPublicProfile(e *core.RequestEvent) error {
	viewerID, err := authUserID(e)
	if err != nil {
		return err
	}
	p, err := h.matches.PublicProfile(e.Request.Context(), viewerID, e.Request.PathValue("userId"))
	if err != nil {
		return toAPIError("matches.PublicProfile", err)
	}
	return e.JSON(http.StatusOK, p)
}

func (h *MatchHandler) ListMessages(e *core.RequestEvent) error {
	userID, err := authUserID(e)
	if err != nil {
		return err
	}
	msgs, err := h.chat.Messages(e.Request.Context(), userID, e.Request.PathValue("matchId"))
	if err != nil {
		return toAPIError("chat.Messages", err)
	}
	return e.JSON(http.StatusOK, msgs)
}

func (h *MatchHandler) SendMessage(e *core.RequestEvent) error {
	userID, err := authUserID(e)
	if err != nil {
		return err
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	msg, err := h.chat.Send(e.Request.Context(), userID, e.Request.PathValue("matchId"), req.Body)
	if err != nil {
		return toAPIError("chat.Send", err)
	}
	return e.JSON(http.StatusCreated, msg)
}
