package component

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/elijahnyp/timer_programmer/programmer"
)

// Setup creates the timer_programmer component and registers its services.
func Setup(logger zerolog.Logger, scanInterval time.Duration) *EntityComponent {
	c := New(logger, scanInterval)

	c.RegisterEntityService(programmer.ServiceSetValue, Schema{programmer.AttrValue: Uint}, setValue)
	c.RegisterEntityService(programmer.ServiceToggleBit, Schema{programmer.AttrBit: Int}, toggleBit)
	c.RegisterEntityService(programmer.ServiceTurnOffBit, Schema{programmer.AttrBit: Int}, turnOffBit)
	c.RegisterEntityService(programmer.ServiceTurnOnBit, Schema{programmer.AttrBit: Int}, turnOnBit)

	return c
}

func setValue(ctx context.Context, e programmer.Entity, data ServiceData) error {
	return e.SetValue(ctx, data.Uint(programmer.AttrValue))
}

func toggleBit(ctx context.Context, e programmer.Entity, data ServiceData) error {
	return programmer.Toggle(ctx, e, data.Int(programmer.AttrBit))
}

func turnOffBit(ctx context.Context, e programmer.Entity, data ServiceData) error {
	return e.TurnOff(ctx, data.Int(programmer.AttrBit))
}

func turnOnBit(ctx context.Context, e programmer.Entity, data ServiceData) error {
	return e.TurnOn(ctx, data.Int(programmer.AttrBit))
}
