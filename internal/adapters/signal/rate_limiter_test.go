package signal

import (
	"testing"
	"time"
)

func TestRoomRateLimiterWindow(t *testing.T) {
	rl := NewRoomRateLimiter(2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u") || !rl.Allow("u") {
		t.Fatal("first two attempts should pass")
	}
	if rl.Allow("u") {
		t.Fatal("third attempt inside the window should be refused")
	}
	if !rl.Allow("other") {
		t.Fatal("limits are per user")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("u") {
		t.Fatal("window should have slid")
	}
}
