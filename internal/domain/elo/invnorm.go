package elo

import (
	"fmt"
	"math"
)

// Breakpoints between the tail and central regions of the approximation.
const (
	pLow  = 0.02425
	pHigh = 1 - pLow
)

// Coefficients of Acklam's rational approximation.
var (
	acklamA = [6]float64{
		-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00,
	}
	acklamB = [5]float64{
		-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01,
	}
	acklamC = [6]float64{
		-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00,
	}
	acklamD = [4]float64{
		7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00,
	}
)

// InvNormalCDF returns z such that the standard normal CDF at z equals p.
// The relative error is below 1.2e-9 over the open interval (0, 1).
func InvNormalCDF(p float64) (float64, error) {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, fmt.Errorf("%w: percentile %v outside (0,1)", ErrInvalidArgument, p)
	}

	switch {
	case p < pLow:
		return tail(math.Sqrt(-2 * math.Log(p))), nil
	case p > pHigh:
		return -tail(math.Sqrt(-2 * math.Log(1-p))), nil
	default:
		q := p - 0.5
		r := q * q
		num := (((((acklamA[0]*r+acklamA[1])*r+acklamA[2])*r+acklamA[3])*r + acklamA[4]) * r) + acklamA[5]
		den := (((((acklamB[0]*r+acklamB[1])*r+acklamB[2])*r+acklamB[3])*r + acklamB[4]) * r) + 1
		return num * q / den, nil
	}
}

// tail evaluates the lower-tail formula for q = sqrt(-2 ln p).
func tail(q float64) float64 {
	num := (((((acklamC[0]*q+acklamC[1])*q+acklamC[2])*q+acklamC[3])*q + acklamC[4]) * q) + acklamC[5]
	den := ((((acklamD[0]*q+acklamD[1])*q+acklamD[2])*q + acklamD[3]) * q) + 1
	return num / den
}
