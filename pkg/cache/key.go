package cache

import "fmt"

// RateKey is the canonical identifier for a (period, hotel, room) rate
// tuple. It is opaque to the store; only uniqueness per tuple matters.
type RateKey string

// NewRateKey builds the canonical rate:{period}:{hotel}:{room} key.
// Callers are responsible for validating period/hotel/room against the
// closed enumerations before constructing a key.
func NewRateKey(period, hotel, room string) RateKey {
	return RateKey(fmt.Sprintf("rate:%s:%s:%s", period, hotel, room))
}

func (k RateKey) String() string {
	return string(k)
}
