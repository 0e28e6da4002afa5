package handlers

import (
	"context"
	"log"
	"net/http"
	"sort"

	"prefest/internal/services/gateway"
	"prefest/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// PublishedEventsKey is the Redis set kept in sync with published events.
const PublishedEventsKey = "events:published"

type GatewayVerifier interface {
	VerifyGateway(ctx context.Context) map[gateway.Provider]error
}

type AdminHandler struct {
	app      core.App
	redis    redis.Cmdable
	gateways GatewayVerifier
}

func NewAdminHandler(app core.App, redisClient redis.Cmdable, gateways GatewayVerifier) *AdminHandler {
	return &AdminHandler{app: app, redis: redisClient, gateways: gateways}
}

// GetDashboard summarises sales of every published event.
func (h *AdminHandler) GetDashboard(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}
	ctx := e.Request.Context()

	eventIDs, err := h.redis.SMembers(ctx, PublishedEventsKey).Result()
	if err != nil {
		return apis.NewBadRequestError("Failed to get published events", err)
	}
	sort.Strings(eventIDs)

	dashboardData := []map[string]any{}
	for _, eventID := range eventIDs {
		event, err := h.app.FindRecordById("events", eventID)
		if err != nil {
			log.Printf("dashboard: event %s is in the published set but not found: %v", eventID, err)
			continue
		}
		dashboardData = append(dashboardData, map[string]any{
			"event_id":           eventID,
			"title":              event.GetString("title"),
			"starts_at":          event.GetDateTime("starts_at").Time(),
			"capacity":           event.GetInt("capacity"),
			"participants_count": event.GetInt("participants_count"),
		})
	}

	return e.JSON(http.StatusOK, map[string]any{"events": dashboardData})
}

// CheckGateway validates the credentials of every registered payment provider.
func (h *AdminHandler) CheckGateway(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}

	results := map[string]string{}
	healthy := true
	for provider, err := range h.gateways.VerifyGateway(e.Request.Context()) {
		if err != nil {
			results[string(provider)] = err.Error()
			healthy = false
			continue
		}
		results[string(provider)] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusBadGateway
	}
	return e.JSON(code, map[string]any{"providers": results, "healthy": healthy})
}

// Health reports whether Redis is reachable.
func (h *AdminHandler) Health(e *core.RequestEvent) error {
	if err := utils.RedisHealthCheck(e.Request.Context(), h.redis); err != nil {
		return e.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "redis": err.Error()})
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "ok"})
}
