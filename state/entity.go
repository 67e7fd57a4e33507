// Package state holds the published snapshot of a timer programmer entity.
package state

import (
	"strconv"
	"time"
)

// Unknown is the state string of an entity whose value has not been reported yet.
const Unknown = "unknown"

type BitState struct {
	Bit  int    `json:"bit"`
	Name string `json:"name"`
	On   bool   `json:"on"`
}

// EntityState is what listeners, the MQTT bridge and the monitor see of an entity.
type EntityState struct {
	EntityID    string     `json:"entity_id"`
	Name        string     `json:"name"`
	Value       *uint64    `json:"value"`
	Bits        []BitState `json:"bits,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Listener receives every state change of every entity.
type Listener func(EntityState)

// State renders the value the way the entity state is published.
func (s EntityState) State() string {
	if s.Value == nil {
		return Unknown
	}
	return strconv.FormatUint(*s.Value, 10)
}

func (s EntityState) Bit(bit int) (BitState, bool) {
	for _, b := range s.Bits {
		if b.Bit == bit {
			return b, true
		}
	}
	return BitState{}, false
}
