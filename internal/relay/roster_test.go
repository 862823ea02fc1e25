package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"redgram/internal/protocol"
)

func TestRosterUpsertKeepsOneEntryPerUsername(t *testing.T) {
	r := &Roster{}

	replaced := r.Upsert(protocol.Profile{ID: "u1", Username: "alice", Name: "Alice"})
	assert.False(t, replaced)
	replaced = r.Upsert(protocol.Profile{ID: "u2", Username: "bob", Name: "Bob"})
	assert.False(t, replaced)

	// Re-registering replaces the whole record, not a field merge.
	replaced = r.Upsert(protocol.Profile{ID: "u1", Username: "alice", Name: "Alice Cooper"})
	assert.True(t, replaced)

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "Alice Cooper", snap[0].Name)
	assert.Equal(t, "bob", snap[1].Username)
}

func TestRosterPreservesRegistrationOrder(t *testing.T) {
	r := &Roster{}
	for _, name := range []string{"carol", "alice", "bob"} {
		r.Upsert(protocol.Profile{Username: name})
	}
	// An upsert must not move an entry.
	r.Upsert(protocol.Profile{Username: "carol", Bio: "updated"})

	snap := r.Snapshot()
	var order []string
	for _, p := range snap {
		order = append(order, p.Username)
	}
	assert.Equal(t, []string{"carol", "alice", "bob"}, order)
	assert.Equal(t, "updated", snap[0].Bio)
}

func TestRosterSnapshotIsDetached(t *testing.T) {
	r := &Roster{}
	r.Upsert(protocol.Profile{Username: "alice"})

	snap := r.Snapshot()
	r.Upsert(protocol.Profile{Username: "bob"})
	r.Upsert(protocol.Profile{Username: "alice", Name: "changed"})

	assert.Len(t, snap, 1)
	assert.Empty(t, snap[0].Name)
	assert.Equal(t, 2, r.Len())
}
