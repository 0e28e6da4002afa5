package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	"prefest/internal/drafts"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const maxDraftBody = 256 << 10

var draftKind = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

type DraftStore interface {
	Save(ctx context.Context, userID, kind string, data json.RawMessage) (*drafts.Draft, error)
	Load(ctx context.Context, userID, kind string) (*drafts.Draft, error)
	Clear(ctx context.Context, userID, kind string) error
}

type DraftHandler struct {
	drafts DraftStore
}

func NewDraftHandler(store DraftStore) *DraftHandler {
	return &DraftHandler{drafts: store}
}

func (h *DraftHandler) params(e *core.RequestEvent) (string, string, error) {
	userID, err := authUserID(e)
	if err != nil {
		return "", "", err
	}
	kind := e.Request.PathValue("kind")
	if !draftKind.MatchString(kind) {
		return "", "", apis.NewBadRequestError("Invalid draft kind", nil)
	}
	return userID, kind, nil
}

func (h *DraftHandler) GetDraft(e *core.RequestEvent) error {
	userID, kind, err := h.params(e)
	if err != nil {
		return err
	}
	d, err := h.drafts.Load(e.Request.Context(), userID, kind)
	if err != nil {
		return toAPIError("drafts.Load", err)
	}
	return e.JSON(http.StatusOK, d)
}

// PutDraft stores the request body as the newest snapshot.
func (h *DraftHandler) PutDraft(e *core.RequestEvent) error {
	userID, kind, err := h.params(e)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxDraftBody+1))
	if err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if len(body) > maxDraftBody {
		return apis.NewBadRequestError("Draft is too large", nil)
	}
	if !json.Valid(body) {
		return apis.NewBadRequestError("Draft must be valid JSON", nil)
	}

	d, err := h.drafts.Save(e.Request.Context(), userID, kind, body)
	if err != nil {
		return toAPIError("drafts.Save", err)
	}
	return e.JSON(http.StatusOK, d)
}

func (h *DraftHandler) DeleteDraft(e *core.RequestEvent) error {
	userID, kind, err := h.params(e)
	if err != nil {
		return err
	}
	if err := h.drafts.Clear(e.Request.Context(), userID, kind); err != nil {
		return toAPIError("drafts.Clear", err)
	}
	return e.NoContent(http.StatusNoContent)
}
