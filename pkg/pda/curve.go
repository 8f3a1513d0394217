package pda

import (
	"math/big"

	"github.com/fortiblox/X1-Vault/internal/types"
)

// Ed25519 field and curve parameters, computed once at package init.
//
// The curve is the twisted Edwards curve -x^2 + y^2 = 1 + d*x^2*y^2 over
// GF(p) with p = 2^255 - 19 and d = -121665/121666 mod p.
var (
	curveP *big.Int
	curveD *big.Int
	one    = big.NewInt(1)
)

func init() {
	curveP = new(big.Int).Lsh(one, 255)
	curveP.Sub(curveP, big.NewInt(19))

	inv := new(big.Int).ModInverse(big.NewInt(121666), curveP)
	curveD = new(big.Int).Mul(big.NewInt(-121665), inv)
	curveD.Mod(curveD, curveP)
}

// isOnCurve reports whether the 32 bytes decode to a valid compressed
// ed25519 point. A derived address must fail this check: being off-curve is
// what proves no private key exists for it.
func isOnCurve(candidate types.Pubkey) bool {
	// Compressed points store y little-endian with the sign of x in the
	// top bit. Clear the sign and decode y.
	var yBytes [32]byte
	for i := 0; i < 32; i++ {
		yBytes[i] = candidate[31-i]
	}
	yBytes[0] &= 0x7F

	y := new(big.Int).SetBytes(yBytes[:])
	if y.Cmp(curveP) >= 0 {
		return false
	}

	// Solve the curve equation for x^2: x^2 = (y^2 - 1) / (d*y^2 + 1).
	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, curveP)

	num := new(big.Int).Sub(y2, one)
	num.Mod(num, curveP)

	den := new(big.Int).Mul(curveD, y2)
	den.Add(den, one)
	den.Mod(den, curveP)

	denInv := new(big.Int).ModInverse(den, curveP)
	if denInv == nil {
		return false
	}

	x2 := new(big.Int).Mul(num, denInv)
	x2.Mod(x2, curveP)

	// The point is valid iff x^2 is a quadratic residue (Euler's
	// criterion) or zero.
	if x2.Sign() == 0 {
		return true
	}
	exp := new(big.Int).Sub(curveP, one)
	exp.Rsh(exp, 1)
	legendre := new(big.Int).Exp(x2, exp, curveP)
	return legendre.Cmp(one) == 0
}
