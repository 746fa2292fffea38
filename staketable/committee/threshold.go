package committee

import (
	"github.com/holiman/uint256"
)

// maxU256 returns a fresh all-ones 256-bit value; the arithmetic below never
// mutates a shared instance, so a fresh value per call keeps this safe under
// concurrent reads of the cache.
func maxU256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// SuccessThreshold computes the minimum stake required for a QC:
// 2n/3+1 (integer division) when n < MAX/2, and (n/3)*2+2 otherwise, so the
// 2n multiplication never overflows for large totals (spec.md §4.5).
func SuccessThreshold(n *uint256.Int) (*uint256.Int, error) {
	half := new(uint256.Int).Rsh(maxU256(), 1)
	if n.Lt(half) {
		twoN, overflow := new(uint256.Int).MulOverflow(n, uint256.NewInt(2))
		if overflow {
			return nil, errThresholdOverflow
		}
		div := new(uint256.Int).Div(twoN, uint256.NewInt(3))
		result, overflow := new(uint256.Int).AddOverflow(div, uint256.NewInt(1))
		if overflow {
			return nil, errThresholdOverflow
		}
		return result, nil
	}

	nDiv3 := new(uint256.Int).Div(n, uint256.NewInt(3))
	mul, overflow := new(uint256.Int).MulOverflow(nDiv3, uint256.NewInt(2))
	if overflow {
		return nil, errThresholdOverflow
	}
	result, overflow := new(uint256.Int).AddOverflow(mul, uint256.NewInt(2))
	if overflow {
		return nil, errThresholdOverflow
	}
	return result, nil
}

// FailureThreshold computes n/3+1, the minimum stake that can prove a
// timeout; it never overflows for any n ≤ MAX.
func FailureThreshold(n *uint256.Int) (*uint256.Int, error) {
	div := new(uint256.Int).Div(n, uint256.NewInt(3))
	result, overflow := new(uint256.Int).AddOverflow(div, uint256.NewInt(1))
	if overflow {
		return nil, errThresholdOverflow
	}
	return result, nil
}

// UpgradeThreshold computes max(success(n), 9n/10), guarding the 9n
// multiplication the same way SuccessThreshold guards 2n.
func UpgradeThreshold(n *uint256.Int) (*uint256.Int, error) {
	success, err := SuccessThreshold(n)
	if err != nil {
		return nil, err
	}

	ninthCeiling := new(uint256.Int).Div(maxU256(), uint256.NewInt(9))
	var ninePerTen *uint256.Int
	if n.Lt(ninthCeiling) {
		nineN, overflow := new(uint256.Int).MulOverflow(n, uint256.NewInt(9))
		if overflow {
			return nil, errThresholdOverflow
		}
		ninePerTen = new(uint256.Int).Div(nineN, uint256.NewInt(10))
	} else {
		nDiv10 := new(uint256.Int).Div(n, uint256.NewInt(10))
		mul, overflow := new(uint256.Int).MulOverflow(nDiv10, uint256.NewInt(9))
		if overflow {
			return nil, errThresholdOverflow
		}
		ninePerTen = mul
	}

	if ninePerTen.Gt(success) {
		return ninePerTen, nil
	}
	return success, nil
}

// DASuccessThreshold applies the same formula as SuccessThreshold to the DA
// stake total; it is a distinct entry point purely for readability at call
// sites that track DA and consensus stake separately.
func DASuccessThreshold(daStakeTotal *uint256.Int) (*uint256.Int, error) {
	return SuccessThreshold(daStakeTotal)
}
