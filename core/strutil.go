package core

// itoa converts an integer to a string without using fmt package
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}

	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// ftoa formats f with the given number of decimals (at most 6).
func ftoa(f float32, decimals int) string {
	if f != f {
		return "nan"
	}
	if decimals > 6 {
		decimals = 6
	}
	neg := f < 0
	if neg {
		f = -f
	}
	scale := uint32(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	if f > float32(0xFFFFFFFF/scale) {
		return "inf"
	}
	v := uint32(f*float32(scale) + 0.5)

	s := utoa(v / scale)
	if decimals > 0 {
		frac := utoa(v % scale)
		for len(frac) < decimals {
			frac = "0" + frac
		}
		s += "." + frac
	}
	if neg && v != 0 {
		s = "-" + s
	}
	return s
}

// ipString formats a dotted quad.
func ipString(a [4]byte) string {
	return itoa(int(a[0])) + "." + itoa(int(a[1])) + "." + itoa(int(a[2])) + "." + itoa(int(a[3]))
}
