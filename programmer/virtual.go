package programmer

import (
	"context"
	"fmt"
)

// Virtual is an in-memory timer programmer. It accepts every operation
// immediately and is used for demos, dry runs and tests.
type Virtual struct {
	Base

	// Width limits the addressable bits; zero means all 64.
	Width int
}

func NewVirtual(desc Description, initial *uint64, width int) *Virtual {
	v := &Virtual{Width: width}
	v.Desc = desc
	if initial != nil {
		v.SetState(*initial)
	}
	return v
}

func (v *Virtual) width() int {
	if v.Width <= 0 || v.Width > MaxBit+1 {
		return MaxBit + 1
	}
	return v.Width
}

func (v *Virtual) checkBit(bit int) error {
	if err := ValidateBit(bit); err != nil {
		return err
	}
	if bit >= v.width() {
		return fmt.Errorf("%w: %d exceeds width %d", ErrInvalidBit, bit, v.width())
	}
	return nil
}

func (v *Virtual) SetValue(ctx context.Context, value uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w := v.width(); w <= MaxBit && value>>uint(w) != 0 {
		return fmt.Errorf("%w: %d does not fit in %d bits", ErrInvalidValue, value, w)
	}
	v.SetState(value)
	return nil
}

func (v *Virtual) TurnOn(ctx context.Context, bit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.checkBit(bit); err != nil {
		return err
	}
	cur, _ := v.Value()
	v.SetState(SetBit(cur, bit))
	return nil
}

func (v *Virtual) TurnOff(ctx context.Context, bit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.checkBit(bit); err != nil {
		return err
	}
	cur, _ := v.Value()
	v.SetState(ClearBit(cur, bit))
	return nil
}
