// Package suppress tracks corrective renames recently issued by the daemon,
// so that the member-update event echoed back by the platform is not treated
// as a fresh violation (which would loop forever).
package suppress

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MarkerStore holds short-lived (guild, member) -> nickname markers. A marker
// is set just before issuing a revert, and consumed by the first matching
// member-update event seen afterwards. Entries expire on their own so a
// swallowed gateway event can't leave a member permanently unwatched.
type MarkerStore struct {
	data *expirable.LRU[string, string]
}

func NewMarkerStore(capacity int, ttl time.Duration) *MarkerStore {
	return &MarkerStore{
		data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func key(guildID, memberID string) string {
	return guildID + "/" + memberID
}

// Set records that the daemon is about to rename the member to nick.
func (s *MarkerStore) Set(guildID, memberID, nick string) {
	s.data.Add(key(guildID, memberID), nick)
}

// Consume reports whether a marker matching the member's new nickname exists,
// removing it if so. A marker only matches once.
func (s *MarkerStore) Consume(guildID, memberID, nick string) bool {
	k := key(guildID, memberID)
	v, ok := s.data.Get(k)
	if !ok || v != nick {
		return false
	}
	s.data.Remove(k)
	return true
}
