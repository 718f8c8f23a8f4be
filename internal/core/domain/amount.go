package domain

import (
	"fmt"
	"math/big"
)

// Amount is a monetary value in minor units (hundredths).
type Amount int64

// String renders the amount with exactly two decimals, e.g. "100000.00".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON emits the amount as a JSON number that keeps both decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// AmountFromScaled converts coefficient * 10^exp into minor units. Digits
// below one hundredth are rejected rather than rounded.
func AmountFromScaled(coefficient *big.Int, exp int) (Amount, error) {
	shift := exp + 2
	v := new(big.Int).Set(coefficient)
	ten := big.NewInt(10)
	for ; shift > 0; shift-- {
		v.Mul(v, ten)
	}
	for ; shift < 0; shift++ {
		var rem big.Int
		v.QuoRem(v, ten, &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("amount %s e%d: sub-cent precision", coefficient, exp)
		}
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("amount %s e%d: out of range", coefficient, exp)
	}
	return Amount(v.Int64()), nil
}
