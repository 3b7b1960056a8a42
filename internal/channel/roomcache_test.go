// ABOUTME: Tests for the direct-room cache
// ABOUTME: Covers single creation under concurrency and retry after failure

package channel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/id"
)

func TestRoomCache_CreatesOncePerDestination(t *testing.T) {
	rc := newRoomCache()
	dest := id.UserID("@a_bot:example.org")

	var created atomic.Int32
	var wg sync.WaitGroup
	results := make([]id.RoomID, 8)

	for i := range 8 {
		wg.Go(func() {
			roomID, err := rc.get(dest, func() (id.RoomID, error) {
				created.Add(1)
				return "!room:example.org", nil
			})
			assert.NoError(t, err)
			results[i] = roomID
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load(), "concurrent first sends must open exactly one room")
	for _, roomID := range results {
		assert.Equal(t, id.RoomID("!room:example.org"), roomID)
	}
}

func TestRoomCache_DestinationsAreIndependent(t *testing.T) {
	rc := newRoomCache()

	roomA, err := rc.get("@bot_a:example.org", func() (id.RoomID, error) {
		return "!a:example.org", nil
	})
	require.NoError(t, err)

	roomB, err := rc.get("@bot_b:example.org", func() (id.RoomID, error) {
		return "!b:example.org", nil
	})
	require.NoError(t, err)

	assert.NotEqual(t, roomA, roomB)
}

func TestRoomCache_FailedCreateIsRetried(t *testing.T) {
	rc := newRoomCache()
	dest := id.UserID("@a_bot:example.org")

	_, err := rc.get(dest, func() (id.RoomID, error) {
		return "", assert.AnError
	})
	require.Error(t, err)

	roomID, err := rc.get(dest, func() (id.RoomID, error) {
		return "!room:example.org", nil
	})
	require.NoError(t, err)
	assert.Equal(t, id.RoomID("!room:example.org"), roomID)
}
