package ekubo

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const priceScale = 18

var (
	floatBitMask    = uint256.MustFromHex("0xc00000000000000000000000")
	floatNotBitMask = uint256.MustFromHex("0x3fffffffffffffffffffffff")
	maxFloat        = new(big.Int).Lsh(big.NewInt(1), 96)
	two256          = new(big.Int).Lsh(big.NewInt(1), 256)
)

// FloatSqrtRatioToFixed expands the 96-bit compact sqrt ratio into its 64.128
// fixed point value. The top two bits select a shift of 2, 34, 66 or 98.
func FloatSqrtRatioToFixed(compact *big.Int) (*uint256.Int, error) {
	if compact == nil || compact.Sign() < 0 || compact.Cmp(maxFloat) >= 0 {
		return nil, fmt.Errorf("sqrt ratio %v is not a 96-bit float", compact)
	}
	f, _ := uint256.FromBig(compact)

	exponent := new(uint256.Int).And(f, floatBitMask)
	exponent.Rsh(exponent, 89)
	shift := uint(2 + exponent.Uint64())

	mantissa := new(uint256.Int).And(f, floatNotBitMask)
	return mantissa.Lsh(mantissa, shift), nil
}

// SqrtRatioToPrice converts a 64.128 sqrt ratio into the price of token0 in
// units of token1, adjusted for token decimals.
func SqrtRatioToPrice(sqrtRatio *uint256.Int, decimals0, decimals1 uint8) decimal.Decimal {
	sqrt := sqrtRatio.ToBig()
	num := new(big.Int).Mul(sqrt, sqrt)
	num.Mul(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals0)), nil))
	den := new(big.Int).Mul(two256, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals1)), nil))
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), priceScale)
}
