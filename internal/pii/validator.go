package pii

import "strings"

// Checksum and structural validators. Pattern matches for types that carry
// a validator are dropped when the validator rejects the value, which cuts
// false positives from format-only regex hits.

// ValidateLuhn reports whether the digits in s pass the mod-10 checksum.
// Separators and spaces are ignored; the digit count must be 13-19.
func ValidateLuhn(s string) bool {
	digits := digitsOf(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	for i := 0; i < len(digits); i++ {
		d := digits[len(digits)-1-i]
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// ValidateSSN applies the structural rules for US social security numbers:
// nine digits, area 001-899 excluding 666, group 01-99, serial 0001-9999.
func ValidateSSN(s string) bool {
	digits := digitsOf(s)
	if len(digits) != 9 {
		return false
	}

	area := digits[0]*100 + digits[1]*10 + digits[2]
	group := digits[3]*10 + digits[4]
	serial := digits[5]*1000 + digits[6]*100 + digits[7]*10 + digits[8]

	if area == 0 || area == 666 || area >= 900 {
		return false
	}
	if group == 0 {
		return false
	}
	if serial == 0 {
		return false
	}
	return true
}

// ValidateEmail applies a light structural check: non-empty local part, a
// dotted domain with no empty labels, and a TLD of at least two characters.
func ValidateEmail(s string) bool {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return false
	}

	local, domain := parts[0], parts[1]
	if local == "" {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if label == "" {
			return false
		}
	}
	return len(labels[len(labels)-1]) >= 2
}

// ValidatePhone applies NANP rules: ten digits, or eleven with a leading
// country code of 1, and an area code that does not start with 0 or 1.
func ValidatePhone(s string) bool {
	digits := digitsOf(s)
	if len(digits) != 10 && len(digits) != 11 {
		return false
	}

	offset := 0
	if len(digits) == 11 {
		if digits[0] != 1 {
			return false
		}
		offset = 1
	}

	area := digits[offset]*100 + digits[offset+1]*10 + digits[offset+2]
	return area >= 200
}

func digitsOf(s string) []int {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	return digits
}
