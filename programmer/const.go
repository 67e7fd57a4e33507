package programmer

import "time"

const (
	Domain = "timer_programmer"

	AttrValue = "value"
	AttrBit   = "bit"

	ServiceSetValue   = "set_value"
	ServiceToggleBit  = "toggle_bit"
	ServiceTurnOffBit = "turn_off_bit"
	ServiceTurnOnBit  = "turn_on_bit"

	EntityIDFormat = Domain + ".%s"

	// MaxBit is the highest addressable bit of a value.
	MaxBit = 63
)

const (
	ScanInterval        = 30 * time.Second
	MinTimeBetweenScans = 10 * time.Second
)
