package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func expectHit(mock redismock.ClientMock, key string, count int64, window time.Duration) {
	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(count)
	mock.ExpectExpireNX(key, window).SetVal(count == 1)
	mock.ExpectTxPipelineExec()
}

func TestRateLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRateLimiter(db)
	ctx := context.Background()
	key := "ratelimit:likes:user:u1"

	expectHit(mock, key, 1, time.Minute)
	assert.True(t, r.Allow(ctx, key, 2, time.Minute))

	expectHit(mock, key, 2, time.Minute)
	assert.True(t, r.Allow(ctx, key, 2, time.Minute))

	expectHit(mock, key, 3, time.Minute)
	assert.False(t, r.Allow(ctx, key, 2, time.Minute))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Every hit sends EXPIRE NX with the counter, so a counter left without a TTL
// by an earlier failure gets one on the next request.
func TestRateLimiter_AllowAlwaysArmsExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRateLimiter(db)
	ctx := context.Background()

	mock.ExpectTxPipeline()
	mock.ExpectIncr("k").SetVal(7)
	mock.ExpectExpireNX("k", 30*time.Second).SetVal(true)
	mock.ExpectTxPipelineExec()
	assert.False(t, r.Allow(ctx, "k", 5, 30*time.Second))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_AllowFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectTxPipeline()
	mock.ExpectIncr("k").SetErr(errors.New("connection refused"))

	assert.True(t, NewRateLimiter(db).Allow(context.Background(), "k", 1, time.Minute))
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want bool
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", false},
		{"Googlebot/2.1", true},
		{"my-Crawler", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ua, func(t *testing.T) {
			assert.Equal(t, tt.want, isSuspiciousUserAgent(tt.ua))
		})
	}
}
