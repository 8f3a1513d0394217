// Package tokenmath implements token-level arithmetic: decimal-scaled
// amounts, basis-point math, and overflow-checked operations.
//
// Amounts are raw uint64 base units; the decimal-places count travels
// out-of-band in the program state. Only the named checked operations in
// this package may be applied to balances. Handlers never use bare
// operators on amounts, so an overflow is always an error, never a wrap.
package tokenmath

import (
	"math/bits"

	"github.com/fortiblox/X1-Vault/pkg/common"
	"github.com/fortiblox/X1-Vault/pkg/numeric"
)

// CheckedAdd returns a + b or ErrArithmeticOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, common.ErrArithmeticOverflow
	}
	return sum, nil
}

// CheckedSub returns a - b or ErrArithmeticOverflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, common.ErrArithmeticOverflow
	}
	return diff, nil
}

// CheckedMul returns a * b or ErrArithmeticOverflow.
func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, common.ErrArithmeticOverflow
	}
	return lo, nil
}

// CheckedDiv returns a / b or ErrDivideByZero.
func CheckedDiv(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, common.ErrDivideByZero
	}
	return a / b, nil
}

// ValidateBasisPoints rejects basis-point values above 10,000 (100%).
func ValidateBasisPoints(bps uint16) error {
	if bps > common.MaxBasisPoints {
		return common.ErrInvalidFeeBps
	}
	return nil
}

// ApplyBasisPoints returns (amount * bps) / 10_000 with floor rounding.
//
// The multiply is widened to 128 bits before the division, so the result is
// exact for every uint64 amount. Because bps is capped at 10,000 the result
// never exceeds amount.
func ApplyBasisPoints(amount uint64, bps uint16) (uint64, error) {
	if err := ValidateBasisPoints(bps); err != nil {
		return 0, err
	}
	if bps == 0 {
		return 0, nil
	}
	hi, lo := bits.Mul64(amount, uint64(bps))
	// hi < 10_000 always holds here, so Div64 cannot trap.
	q, _ := bits.Div64(hi, lo, common.MaxBasisPoints)
	return q, nil
}

// ToBaseUnits converts a human-readable (whole, frac) amount to base units
// at the given decimal count. frac must be strictly less than 10^decimals.
func ToBaseUnits(whole, frac uint64, decimals uint8) (uint64, error) {
	if err := numeric.ValidateDecimals(decimals); err != nil {
		return 0, err
	}
	mult, err := numeric.Pow10(uint32(decimals))
	if err != nil {
		return 0, err
	}
	if frac >= mult {
		return 0, common.ErrInvalidDecimals
	}
	scaled, err := CheckedMul(whole, mult)
	if err != nil {
		return 0, err
	}
	return CheckedAdd(scaled, frac)
}

// ToHuman converts base units to an exact (whole, frac) pair at the given
// decimal count. No floating point is involved, so
// ToBaseUnits(ToHuman(x, d), d) == x for every x and supported d.
func ToHuman(baseUnits uint64, decimals uint8) (whole, frac uint64, err error) {
	if err := numeric.ValidateDecimals(decimals); err != nil {
		return 0, 0, err
	}
	mult, err := numeric.Pow10(uint32(decimals))
	if err != nil {
		return 0, 0, err
	}
	return baseUnits / mult, baseUnits % mult, nil
}

// Rescale converts an amount between decimal scales. Scaling down must be
// exact; a remainder is an error rather than a silent truncation.
func Rescale(amount uint64, fromDecimals, toDecimals uint8) (uint64, error) {
	if err := numeric.ValidateDecimals(fromDecimals); err != nil {
		return 0, err
	}
	if err := numeric.ValidateDecimals(toDecimals); err != nil {
		return 0, err
	}
	switch {
	case toDecimals > fromDecimals:
		return numeric.ScalePow10(amount, uint32(toDecimals-fromDecimals))
	case toDecimals < fromDecimals:
		div, err := numeric.Pow10(uint32(fromDecimals - toDecimals))
		if err != nil {
			return 0, err
		}
		if amount%div != 0 {
			return 0, common.ErrArithmeticOverflow
		}
		return amount / div, nil
	default:
		return amount, nil
	}
}

// CompoundInterest grows a principal by rateBps per period for the given
// number of periods, by discrete per-period reinvestment: each period adds
// ApplyBasisPoints of the running balance. Every step is overflow-checked,
// and the result matches repeated application exactly (no continuous
// compounding approximation).
func CompoundInterest(principal uint64, rateBps uint16, periods uint32) (uint64, error) {
	if err := ValidateBasisPoints(rateBps); err != nil {
		return 0, err
	}

	balance := principal
	for i := uint32(0); i < periods; i++ {
		interest, err := ApplyBasisPoints(balance, rateBps)
		if err != nil {
			return 0, err
		}
		balance, err = CheckedAdd(balance, interest)
		if err != nil {
			return 0, err
		}
	}
	return balance, nil
}
