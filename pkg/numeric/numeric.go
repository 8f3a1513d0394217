// Package numeric provides scalar integer primitives with explicit
// overflow and domain errors.
//
// Every operation here either returns an exact result or an error; nothing
// wraps silently. The one exception is the modular family, whose wrap
// within the caller-supplied modulus is the contract.
package numeric

import (
	"math/bits"

	"github.com/fortiblox/X1-Vault/pkg/common"
)

// Pow10 returns 10^exponent, or ErrArithmeticOverflow when the result does
// not fit in a uint64 (exponent > 19).
func Pow10(exponent uint32) (uint64, error) {
	if exponent > common.MaxDecimals {
		return 0, common.ErrArithmeticOverflow
	}
	result := uint64(1)
	for i := uint32(0); i < exponent; i++ {
		result *= 10
	}
	return result, nil
}

// ScalePow10 returns value * 10^exponent, checked for overflow.
func ScalePow10(value uint64, exponent uint32) (uint64, error) {
	mult, err := Pow10(exponent)
	if err != nil {
		return 0, err
	}
	if value != 0 && mult > ^uint64(0)/value {
		return 0, common.ErrArithmeticOverflow
	}
	return value * mult, nil
}

// Isqrt returns floor(sqrt(n)) using Newton's method.
func Isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	// n + 1 wraps at the top of the range; the floor root there is 2^32 - 1.
	if n == ^uint64(0) {
		return 1<<32 - 1
	}

	x := n
	y := (n + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// IsPerfectSquare reports whether n is a perfect square.
func IsPerfectSquare(n uint64) bool {
	r := Isqrt(n)
	return r*r == n
}

// GCD returns the greatest common divisor. GCD(0, x) = x.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple, checked for overflow.
// LCM with zero is zero.
func LCM(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	reduced := b / GCD(a, b)
	if reduced != 0 && a > ^uint64(0)/reduced {
		return 0, common.ErrArithmeticOverflow
	}
	return a * reduced, nil
}

// IsSafeMul reports whether a*b fits in a uint64.
func IsSafeMul(a, b uint64) bool {
	if a == 0 || b == 0 {
		return true
	}
	return a <= ^uint64(0)/b
}

// ModAdd returns (a + b) mod m. The wrap within m is contractual; the only
// error is a zero modulus.
func ModAdd(a, b, m uint64) (uint64, error) {
	if m == 0 {
		return 0, common.ErrDivideByZero
	}
	a %= m
	b %= m
	// a + b may exceed 64 bits when m > 2^63, so subtract instead.
	if a >= m-b && b != 0 {
		return a - (m - b), nil
	}
	return a + b, nil
}

// ModSub returns (a - b) mod m.
func ModSub(a, b, m uint64) (uint64, error) {
	if m == 0 {
		return 0, common.ErrDivideByZero
	}
	a %= m
	b %= m
	if a >= b {
		return a - b, nil
	}
	return m - b + a, nil
}

// ModMul returns (a * b) mod m using a full 128-bit intermediate.
func ModMul(a, b, m uint64) (uint64, error) {
	if m == 0 {
		return 0, common.ErrDivideByZero
	}
	hi, lo := bits.Mul64(a%m, b%m)
	_, rem := bits.Div64(hi, lo, m)
	return rem, nil
}

// ModPow returns (base^exp) mod m by square-and-multiply.
func ModPow(base, exp, m uint64) (uint64, error) {
	if m == 0 {
		return 0, common.ErrDivideByZero
	}
	if m == 1 {
		return 0, nil
	}

	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			r, err := ModMul(result, base, m)
			if err != nil {
				return 0, err
			}
			result = r
		}
		b, err := ModMul(base, base, m)
		if err != nil {
			return 0, err
		}
		base = b
		exp >>= 1
	}
	return result, nil
}

// ValidateDecimals rejects decimal counts beyond the supported maximum.
func ValidateDecimals(decimals uint8) error {
	if decimals > common.MaxDecimals {
		return common.ErrInvalidDecimals
	}
	return nil
}
