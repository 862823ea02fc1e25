package relay

import "redgram/internal/protocol"

// Roster is the authoritative set of profiles the relay has seen, kept in
// registration order and unique by username. It is owned by the Hub's run
// loop; nothing else may touch it, which is what makes it safe without a
// lock of its own.
type Roster struct {
	profiles []protocol.Profile
}

// Upsert replaces the whole record for the profile's username, or appends
// it if the username is new. Returns true when an existing entry was
// replaced.
func (r *Roster) Upsert(p protocol.Profile) bool {
	for i := range r.profiles {
		if r.profiles[i].Username == p.Username {
			r.profiles[i] = p
			return true
		}
	}
	r.profiles = append(r.profiles, p)
	return false
}

// Snapshot returns a copy of the roster as it stands right now. Later
// registrations never show up in an already-taken snapshot.
func (r *Roster) Snapshot() []protocol.Profile {
	out := make([]protocol.Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Len reports the number of registered profiles.
func (r *Roster) Len() int { return len(r.profiles) }
