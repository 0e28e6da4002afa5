package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"prefest/internal/status"
	_ "prefest/migrations"
	"prefest/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens an empty PocketBase app with every migration applied.
func newTestStore(t *testing.T) (*tests.TestApp, *Store) {
	t.Helper()

	app, err := tests.NewTestApp(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	require.NoError(t, app.RunAllMigrations())
	return app, New(app)
}

func createUser(t *testing.T, app core.App, name string) string {
	t.Helper()
	users, err := app.FindCollectionByNameOrId("users")
	require.NoError(t, err)

	r := core.NewRecord(users)
	r.SetEmail(name + "@example.com")
	r.SetPassword("1234567890")
	r.Set("name", name)
	require.NoError(t, app.Save(r))
	return r.Id
}

func createEvent(t *testing.T, app core.App, organizer string, capacity int) string {
	t.Helper()
	c, err := app.FindCollectionByNameOrId(CollectionEvents)
	require.NoError(t, err)

	r := core.NewRecord(c)
	r.Set("slug", fmt.Sprintf("fest-%d", time.Now().UnixNano()))
	r.Set("title", "Festival")
	r.Set("organizer", organizer)
	r.Set("starts_at", types.NowDateTime().Add(24*time.Hour))
	r.Set("ends_at", types.NowDateTime().Add(30*time.Hour))
	r.Set("capacity", capacity)
	r.Set("status", "published")
	require.NoError(t, app.Save(r))
	return r.Id
}

func createTicketType(t *testing.T, app core.App, eventID, name string, available int) string {
	t.Helper()
	c, err := app.FindCollectionByNameOrId(CollectionTicketTypes)
	require.NoError(t, err)

	r := core.NewRecord(c)
	r.Set("event", eventID)
	r.Set("name", name)
	r.Set("price", 100)
	r.Set("quantity_available", available)
	require.NoError(t, app.Save(r))
	return r.Id
}

func intField(t *testing.T, app core.App, collection, id, field string) int {
	t.Helper()
	r, err := app.FindRecordById(collection, id)
	require.NoError(t, err)
	return r.GetInt(field)
}

func TestStore_CreateParticipantReservesInventory(t *testing.T) {
	app, s := newTestStore(t)
	ctx := context.Background()

	org := createUser(t, app, "org")
	u1 := createUser(t, app, "ana")
	u2 := createUser(t, app, "bob")
	u3 := createUser(t, app, "cai")
	eventID := createEvent(t, app, org, 2)
	vip := createTicketType(t, app, eventID, "VIP", 1)
	general := createTicketType(t, app, eventID, "General", 10)

	issue := func(user, ticketType, code string) error {
		return s.CreateParticipant(ctx, &models.Participant{
			UserID:       user,
			EventID:      eventID,
			TicketTypeID: ticketType,
			TicketCode:   code,
		})
	}

	require.NoError(t, issue(u1, vip, "PF-AAAA-0001"))
	assert.Equal(t, 1, intField(t, app, CollectionTicketTypes, vip, "quantity_sold"))
	assert.Equal(t, 1, intField(t, app, CollectionEvents, eventID, "participants_count"))

	// The last VIP ticket is gone.
	assert.ErrorIs(t, issue(u2, vip, "PF-AAAA-0002"), status.ErrSoldOut)
	assert.Equal(t, 1, intField(t, app, CollectionTicketTypes, vip, "quantity_sold"))

	// One live ticket per user and event.
	assert.ErrorIs(t, issue(u1, general, "PF-AAAA-0003"), status.ErrAlreadyRegistered)

	require.NoError(t, issue(u2, general, "PF-AAAA-0004"))
	assert.Equal(t, 2, intField(t, app, CollectionEvents, eventID, "participants_count"))

	// The event is full, so the general reservation is rolled back with it.
	assert.ErrorIs(t, issue(u3, general, "PF-AAAA-0005"), status.ErrSoldOut)
	assert.Equal(t, 1, intField(t, app, CollectionTicketTypes, general, "quantity_sold"))
	assert.Equal(t, 2, intField(t, app, CollectionEvents, eventID, "participants_count"))

	attending, err := s.IsAttending(ctx, u3, eventID)
	require.NoError(t, err)
	assert.False(t, attending)

	p, err := s.FindParticipant(ctx, u1, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantValid, p.Status)
	assert.Equal(t, "VIP", p.TicketTypeName)
}

func TestStore_RedeemParticipantOnce(t *testing.T) {
	app, s := newTestStore(t)
	ctx := context.Background()

	org := createUser(t, app, "org")
	u1 := createUser(t, app, "ana")
	eventID := createEvent(t, app, org, 0)

	p := &models.Participant{UserID: u1, EventID: eventID, TicketCode: "PF-SCAN-0001"}
	require.NoError(t, s.CreateParticipant(ctx, p))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RedeemParticipant(ctx, p.ID, time.Now())
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := s.FindParticipantByCode(ctx, "PF-SCAN-0001")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantUsed, got.Status)
	assert.NotNil(t, got.CheckedInAt)

	ok, err := s.RedeemParticipant(ctx, p.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CreateLikeMakesSingleMatch(t *testing.T) {
	app, s := newTestStore(t)
	ctx := context.Background()

	org := createUser(t, app, "org")
	ana := createUser(t, app, "ana")
	bob := createUser(t, app, "bob")
	eventID := createEvent(t, app, org, 0)

	resp, err := s.CreateLike(ctx, ana, bob, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeStatusLiked, resp.Status)
	assert.False(t, resp.IsMatch)

	resp, err = s.CreateLike(ctx, ana, bob, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeStatusAlreadyLiked, resp.Status)

	resp, err = s.CreateLike(ctx, bob, ana, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeStatusMatch, resp.Status)
	assert.True(t, resp.IsMatch)
	require.NotEmpty(t, resp.MatchID)
	matchID := resp.MatchID

	resp, err = s.CreateLike(ctx, bob, ana, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeStatusAlreadyLiked, resp.Status)
	assert.Equal(t, matchID, resp.MatchID)

	total, err := app.CountRecords(CollectionMatches)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	m, err := s.GetMatch(ctx, matchID)
	require.NoError(t, err)
	a, b := orderedPair(ana, bob)
	assert.Equal(t, a, m.UserA)
	assert.Equal(t, b, m.UserB)

	liked, err := s.LikedUserIDs(ctx, ana, eventID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{bob: true}, liked)
}

func TestStore_CompletePaymentOnlyFromPending(t *testing.T) {
	app, s := newTestStore(t)
	ctx := context.Background()

	org := createUser(t, app, "org")
	u1 := createUser(t, app, "ana")
	eventID := createEvent(t, app, org, 0)

	p := &models.Payment{
		UserID:      u1,
		EventID:     eventID,
		HolderName:  "Ana",
		HolderEmail: "ana@example.com",
		Amount:      decimal.NewFromInt(100),
		Currency:    "thb",
		Status:      models.PaymentPending,
		Provider:    "sandbox",
	}
	require.NoError(t, s.CreatePayment(ctx, p))
	require.NoError(t, s.AttachCharge(ctx, p.ID, "chrg_1", "http://pay.local/chrg_1"))

	ok, err := s.CompletePayment(ctx, p.ID, models.PaymentPaid, "", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompletePayment(ctx, p.ID, models.PaymentFailed, "declined", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.FindPaymentByProviderRef(ctx, "chrg_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.Status)
	assert.Empty(t, got.FailureCode)
	assert.NotNil(t, got.CompletedAt)

	_, err = s.FindParticipantByPayment(ctx, p.ID)
	assert.ErrorIs(t, err, status.ErrParticipantNotFound)

	ticket := &models.Participant{UserID: u1, EventID: eventID, PaymentID: p.ID, TicketCode: "PF-PAID-0001"}
	require.NoError(t, s.CreateParticipant(ctx, ticket))
	byPayment, err := s.FindParticipantByPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byPayment.ID)
}
