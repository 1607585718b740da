package cache

import "time"

// Namespace selects one of the two TTL'd views of a rate key.
type Namespace string

const (
	// Fresh holds values that still satisfy the upstream's freshness
	// contract (T_fresh).
	Fresh Namespace = "fresh"

	// Stale outlives Fresh (T_stale) and backs degraded-mode responses.
	Stale Namespace = "stale"
)

// entry is the JSON-serialized record stored under namespace:key in Redis.
// Redis' own TTL governs expiry; Expires is carried for log/metric context
// and is not consulted to decide whether the entry is still valid.
type entry struct {
	Value    string    `json:"value"`
	CachedAt time.Time `json:"cached_at"`
	Expires  time.Time `json:"expires"`
}
