package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
)

func newRunningBroadcaster(t *testing.T) *FlagBroadcaster {
	t.Helper()
	b := NewFlagBroadcaster(logging.NewDiscardLogger())
	go b.Run()
	return b
}

func waitForClientCount(t *testing.T, b *FlagBroadcaster, userID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.ClientCount(userID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count for %s never reached %d", userID, want)
}

func TestPushFlagsReachesOnlyTheUsersClients(t *testing.T) {
	b := newRunningBroadcaster(t)

	mine := &FlagClient{UserID: "u-1", Send: make(chan []byte, 1)}
	other := &FlagClient{UserID: "u-2", Send: make(chan []byte, 1)}
	b.Register(mine)
	b.Register(other)
	waitForClientCount(t, b, "u-1", 1)
	waitForClientCount(t, b, "u-2", 1)

	flags := session.FlagsFromSegments([]string{session.SegmentHighValueTraders})
	b.PushFlags("u-1", flags, []string{"cs_personalize_exp1_var1"})

	select {
	case raw := <-mine.Send:
		var payload FlagPayload
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "personalization_flags", payload.Type)
		assert.Equal(t, "u-1", payload.UserID)
		assert.True(t, payload.Flags.IsHighValueTrader)
		assert.Equal(t, string(session.BannerHighValueTrader), payload.Banner)
		assert.Equal(t, []string{"cs_personalize_exp1_var1"}, payload.Aliases)
	case <-time.After(time.Second):
		t.Fatal("expected a flag payload for u-1")
	}

	select {
	case <-other.Send:
		t.Fatal("u-2 must not receive u-1's flags")
	default:
	}
}

func TestPushFlagsSkipsSlowClients(t *testing.T) {
	b := newRunningBroadcaster(t)

	// Unbuffered channel with no reader simulates a stalled tab.
	stalled := &FlagClient{UserID: "u-1", Send: make(chan []byte)}
	b.Register(stalled)
	waitForClientCount(t, b, "u-1", 1)

	done := make(chan struct{})
	go func() {
		b.PushFlags("u-1", session.Flags{}, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PushFlags must not block on a stalled client")
	}
}

func TestUnregisterClosesSendAndDropsUser(t *testing.T) {
	b := newRunningBroadcaster(t)

	client := &FlagClient{UserID: "u-1", Send: make(chan []byte, 1)}
	b.Register(client)
	waitForClientCount(t, b, "u-1", 1)

	b.Unregister(client)
	waitForClientCount(t, b, "u-1", 0)

	select {
	case _, open := <-client.Send:
		assert.False(t, open, "send channel should be closed on unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestPushFlagsWithNoClientsIsANoOp(t *testing.T) {
	b := newRunningBroadcaster(t)
	b.PushFlags("nobody", session.Flags{}, nil)
	assert.Equal(t, 0, b.ClientCount("nobody"))
}
