// ABOUTME: Cache of direct rooms keyed by destination identity
// ABOUTME: Guarantees a single room creation per destination under concurrent sends

package channel

import (
	"sync"

	"maunium.net/go/mautrix/id"
)

// roomCache maps destinations to their direct rooms.
type roomCache struct {
	mu    sync.Mutex
	rooms map[id.UserID]id.RoomID
}

func newRoomCache() *roomCache {
	return &roomCache{rooms: make(map[id.UserID]id.RoomID)}
}

// get returns the cached room for dest, calling create to open one on first
// contact. create runs under the cache lock, keeping the check and the store
// atomic: two concurrent first sends to the same destination open exactly one
// room. A failed create caches nothing, so the next send retries.
func (rc *roomCache) get(dest id.UserID, create func() (id.RoomID, error)) (id.RoomID, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if roomID, ok := rc.rooms[dest]; ok {
		return roomID, nil
	}

	roomID, err := create()
	if err != nil {
		return "", err
	}
	rc.rooms[dest] = roomID
	return roomID, nil
}
