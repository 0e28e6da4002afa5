package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor(nil)

	before := testutil.ToFloat64(likes.WithLabelValues("match"))
	m.TrackLike("match")
	m.TrackLike("match")
	assert.Equal(t, before+2, testutil.ToFloat64(likes.WithLabelValues("match")))

	before = testutil.ToFloat64(scans.WithLabelValues("short_code", "OK"))
	m.TrackScan("short_code", "OK")
	assert.Equal(t, before+1, testutil.ToFloat64(scans.WithLabelValues("short_code", "OK")))
}

func TestMonitor_NilIsSafe(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.TrackCheckout("paid", "success")
		m.TrackCouponLookup("valid")
		m.TrackLike("liked")
		m.TrackScan("legacy", "OK")
		m.TrackPayment("sandbox", "charge", "success")
		m.TrackGatewayCall("sandbox", "charge", time.Millisecond)
	})
}

func TestMonitor_CountKeysFollowsCursor(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMonitor(db)

	mock.ExpectScan(0, "draft:*", 500).SetVal([]string{"draft:u1:event", "draft:u2:event"}, 7)
	mock.ExpectScan(7, "draft:*", 500).SetVal([]string{"draft:u3:event"}, 0)

	n, err := m.countKeys(context.Background(), "draft:*")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
