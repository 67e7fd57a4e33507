// Package programmer models timer programmer entities: devices whose state is an
// integer bitmask where every bit is an independent on/off flag.
//
// Drivers embed Base, which stores the reported value and answers bit queries,
// and override SetValue, TurnOn and TurnOff to talk to the hardware. Base on its
// own fails those operations with ErrNotImplemented.
package programmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elijahnyp/timer_programmer/state"
)

type BitDescription struct {
	Bit  int    `mapstructure:"bit" json:"bit"`
	Name string `mapstructure:"name" json:"name"`
}

// Description describes a timer programmer entity.
type Description struct {
	Key  string
	Name string
	Icon string
	Bits []BitDescription
}

// Entity is the contract between the component and a timer programmer driver.
type Entity interface {
	EntityID() string
	Description() Description
	Value() (uint64, bool)
	IsOn(bit int) (bool, error)
	SetValue(ctx context.Context, value uint64) error
	TurnOn(ctx context.Context, bit int) error
	TurnOff(ctx context.Context, bit int) error
}

// Updater is implemented by drivers that refresh their value when polled.
type Updater interface {
	Update(ctx context.Context) error
}

// Base implements the bitmask side of Entity. The zero value has an unset value.
type Base struct {
	Desc Description

	mu      sync.RWMutex
	value   uint64
	valid   bool
	updated time.Time
}

func (b *Base) EntityID() string {
	return fmt.Sprintf(EntityIDFormat, b.Desc.Key)
}

func (b *Base) Description() Description {
	return b.Desc
}

// Value returns the last reported bitmask and whether one has been reported.
func (b *Base) Value() (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value, b.valid
}

func (b *Base) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// SetState records the value reported by the device.
func (b *Base) SetState(value uint64) {
	b.mu.Lock()
	b.value = value
	b.valid = true
	b.updated = time.Now()
	b.mu.Unlock()
}

// ClearState marks the value as unknown again.
func (b *Base) ClearState() {
	b.mu.Lock()
	b.value = 0
	b.valid = false
	b.updated = time.Now()
	b.mu.Unlock()
}

// IsOn reports whether bit is set in the current value.
func (b *Base) IsOn(bit int) (bool, error) {
	if err := ValidateBit(bit); err != nil {
		return false, err
	}
	v, ok := b.Value()
	if !ok {
		return false, fmt.Errorf("%s: %w", b.EntityID(), ErrValueUnset)
	}
	return BitIsSet(v, bit), nil
}

func (b *Base) SetValue(context.Context, uint64) error {
	return fmt.Errorf("%s: set_value: %w", b.EntityID(), ErrNotImplemented)
}

func (b *Base) TurnOn(context.Context, int) error {
	return fmt.Errorf("%s: turn_on: %w", b.EntityID(), ErrNotImplemented)
}

func (b *Base) TurnOff(context.Context, int) error {
	return fmt.Errorf("%s: turn_off: %w", b.EntityID(), ErrNotImplemented)
}

// Toggle flips bit by reading it through IsOn and dispatching to TurnOff or
// TurnOn of e. It is not atomic; callers serialize operations per entity.
func Toggle(ctx context.Context, e Entity, bit int) error {
	on, err := e.IsOn(bit)
	if err != nil {
		return err
	}
	if on {
		return e.TurnOff(ctx, bit)
	}
	return e.TurnOn(ctx, bit)
}

// Snapshot captures the published state of e.
func Snapshot(e Entity) state.EntityState {
	desc := e.Description()
	s := state.EntityState{
		EntityID: e.EntityID(),
		Name:     desc.Name,
	}
	if u, ok := e.(interface{ LastUpdated() time.Time }); ok {
		s.LastUpdated = u.LastUpdated()
	}
	v, ok := e.Value()
	if ok {
		s.Value = &v
	}
	for _, bd := range desc.Bits {
		s.Bits = append(s.Bits, state.BitState{
			Bit:  bd.Bit,
			Name: bd.Name,
			On:   ok && BitIsSet(v, bd.Bit),
		})
	}
	return s
}
