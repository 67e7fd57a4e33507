package programmer

import (
	"fmt"
	"strings"
)

// ValidateBit reports whether bit addresses a position of a uint64 value.
func ValidateBit(bit int) error {
	if bit < 0 || bit > MaxBit {
		return fmt.Errorf("%w: %d", ErrInvalidBit, bit)
	}
	return nil
}

// BitIsSet reports whether bit is set in v. Bits outside 0..MaxBit are never set.
func BitIsSet(v uint64, bit int) bool {
	if bit < 0 || bit > MaxBit {
		return false
	}
	mask := uint64(1) << uint(bit)
	return v&mask == mask
}

func SetBit(v uint64, bit int) uint64 {
	return v | uint64(1)<<uint(bit)
}

func ClearBit(v uint64, bit int) uint64 {
	return v &^ (uint64(1) << uint(bit))
}

// Bits lists the set bit positions of v in ascending order.
func Bits(v uint64) []int {
	var bits []int
	for bit := 0; bit <= MaxBit; bit++ {
		if BitIsSet(v, bit) {
			bits = append(bits, bit)
		}
	}
	return bits
}

// FormatBits renders the lowest width bits of v, bit 0 first.
func FormatBits(v uint64, width int) string {
	var sb strings.Builder
	for bit := 0; bit < width && bit <= MaxBit; bit++ {
		if BitIsSet(v, bit) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
