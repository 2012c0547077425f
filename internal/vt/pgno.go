package vt

import "fmt"

// IsBCD reports whether every nibble of v is a decimal digit.
func IsBCD(v int) bool {
	if v < 0 {
		return false
	}
	for ; v != 0; v >>= 4 {
		if v&0xF > 9 {
			return false
		}
	}
	return true
}

// BCDToDec converts a packed BCD value to binary.
func BCDToDec(v int) int {
	n, m := 0, 1
	for ; v != 0; v >>= 4 {
		n += (v & 0xF) * m
		m *= 10
	}
	return n
}

// DecToBCD converts a non-negative binary value to packed BCD.
func DecToBCD(n int) int {
	v, s := 0, 0
	for ; n != 0; n /= 10 {
		v |= (n % 10) << s
		s += 4
	}
	return v
}

// AddPage steps a displayable page number by delta decimal pages,
// wrapping between 100 and 899.
func AddPage(pgno, delta int) int {
	n := BCDToDec(pgno) - 100 + delta
	n %= 800
	if n < 0 {
		n += 800
	}
	return DecToBCD(n + 100)
}

// FormatPage returns pgno as it is shown to viewers ("100").
func FormatPage(pgno int) string {
	return fmt.Sprintf("%03X", pgno)
}

// ParsePage parses a three-digit page number such as "100" or "1F0".
func ParsePage(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return 0, fmt.Errorf("vt: parse page %q: %w", s, err)
	}
	if v < FirstPage || v > LastPage {
		return 0, fmt.Errorf("vt: page %q out of range", s)
	}
	return v, nil
}
