package bot

import (
	"math"

	"github.com/fortiblox/torland/pkg/isa"
)

// result is a checked arithmetic outcome; ok is false on overflow.
type result struct {
	v  int64
	ok bool
}

func value(v int64) result { return result{v: v, ok: true} }

var overflow = result{}

func arith(op isa.Opcode, a, b int64) result {
	switch op {
	case isa.OpAdd, isa.OpAddv:
		return add(a, b)
	case isa.OpSub, isa.OpSubv:
		return sub(a, b)
	case isa.OpMul, isa.OpMulv:
		return mul(a, b)
	case isa.OpDiv, isa.OpDivv:
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return overflow
		}
		return value(a / b)
	case isa.OpMod, isa.OpModv:
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return overflow
		}
		return value(a % b)
	case isa.OpPow, isa.OpPowv:
		return pow(a, b)
	}
	return overflow
}

func add(a, b int64) result {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return overflow
	}
	return value(s)
}

func sub(a, b int64) result {
	d := a - b
	if (a >= 0 && b < 0 && d < 0) || (a < 0 && b > 0 && d >= 0) {
		return overflow
	}
	return value(d)
}

func mul(a, b int64) result {
	if a == 0 || b == 0 {
		return value(0)
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return overflow
	}
	p := a * b
	if p/b != a {
		return overflow
	}
	return value(p)
}

func neg(a int64) result {
	if a == math.MinInt64 {
		return overflow
	}
	return value(-a)
}

// pow raises a to a non-negative exponent by squaring. Negative exponents
// have no integer result and count as overflow.
func pow(a, e int64) result {
	if e < 0 {
		return overflow
	}
	acc := int64(1)
	base := a
	for e > 0 {
		if e&1 == 1 {
			r := mul(acc, base)
			if !r.ok {
				return overflow
			}
			acc = r.v
		}
		e >>= 1
		if e > 0 {
			r := mul(base, base)
			if !r.ok {
				return overflow
			}
			base = r.v
		}
	}
	return value(acc)
}
