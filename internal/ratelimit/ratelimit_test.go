package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterDisabled(t *testing.T) {
	for _, l := range []*Limiter{nil, New(nil, 10, time.Minute), New(nil, 0, time.Minute)} {
		ok, err := l.Allow(context.Background(), "login:@carl:example.org")
		if err != nil {
			t.Fatalf("allow error: %v", err)
		}
		if !ok {
			t.Fatal("disabled limiter should always allow")
		}
	}
}
