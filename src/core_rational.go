package main

import (
	"math"
	"math/big"
)

// GPSSecondsScale is the denominator used for GPS seconds
const GPSSecondsScale = 10_000_000

// Rational is an EXIF unsigned rational
type Rational struct {
	Num uint32
	Den uint32
}

// Float returns the value of r, or 0 for a zero denominator
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// DecimalToDMS splits |x| into whole degrees, whole minutes and fractional seconds
func DecimalToDMS(x float64) (deg, min int, sec float64) {
	a := math.Abs(x)
	d := math.Floor(a)
	minutes := (a - d) * 60
	m := math.Floor(minutes)
	return int(d), int(m), (minutes - m) * 60
}

// DMSToRational encodes deg/min/sec as three rationals, seconds rounded to 1/scale.
// A rounded seconds value of 60 or more carries into minutes, and minutes into degrees.
func DMSToRational(deg, min int, sec float64, scale uint32) [3]Rational {
	if scale == 0 {
		scale = GPSSecondsScale
	}
	s := int64(math.Round(sec * float64(scale)))
	perMinute := 60 * int64(scale)
	m := int64(min) + s/perMinute
	s %= perMinute
	d := int64(deg) + m/60
	m %= 60
	return [3]Rational{
		{Num: uint32(d), Den: 1},
		{Num: uint32(m), Den: 1},
		{Num: uint32(s), Den: scale},
	}
}

// ToRational returns the closest fraction to value whose denominator does not exceed maxDenominator
func ToRational(value float64, maxDenominator int64) (num, den int64) {
	if maxDenominator < 1 {
		maxDenominator = 1
	}
	exact := new(big.Rat)
	if exact.SetFloat64(value) == nil {
		return 0, 1
	}
	if exact.Denom().Cmp(big.NewInt(maxDenominator)) <= 0 {
		return exact.Num().Int64(), exact.Denom().Int64()
	}

	// Continued fraction expansion until the next convergent's denominator is too large
	limit := big.NewInt(maxDenominator)
	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)
	n := new(big.Int).Set(exact.Num())
	d := new(big.Int).Set(exact.Denom())
	for {
		a := new(big.Int)
		rem := new(big.Int)
		a.DivMod(n, d, rem)
		q2 := new(big.Int).Add(q0, new(big.Int).Mul(a, q1))
		if q2.Cmp(limit) > 0 {
			break
		}
		p2 := new(big.Int).Add(p0, new(big.Int).Mul(a, p1))
		p0, q0, p1, q1 = p1, q1, p2, q2
		n, d = d, rem
		if d.Sign() == 0 {
			break
		}
	}

	// Pick between the last convergent and the best semiconvergent
	k := new(big.Int).Sub(limit, q0)
	k.Div(k, q1)
	bound1 := new(big.Rat).SetFrac(
		new(big.Int).Add(p0, new(big.Int).Mul(k, p1)),
		new(big.Int).Add(q0, new(big.Int).Mul(k, q1)),
	)
	bound2 := new(big.Rat).SetFrac(p1, q1)
	diff1 := new(big.Rat).Abs(new(big.Rat).Sub(bound1, exact))
	diff2 := new(big.Rat).Abs(new(big.Rat).Sub(bound2, exact))
	best := bound1
	if diff2.Cmp(diff1) <= 0 {
		best = bound2
	}
	return best.Num().Int64(), best.Denom().Int64()
}

// LatitudeRef returns the hemisphere reference for a latitude
func LatitudeRef(lat float64) string {
	if lat >= 0 {
		return "N"
	}
	return "S"
}

// LongitudeRef returns the hemisphere reference for a longitude
func LongitudeRef(lon float64) string {
	if lon >= 0 {
		return "E"
	}
	return "W"
}
