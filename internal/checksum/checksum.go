// Package checksum implements the check-digit algorithms for Brazilian
// identity documents. This is the only place checksum logic lives; every
// other component calls in here.
package checksum

// allSame reports whether every byte of s equals the first one.
// Sequences like "11111111111" satisfy the weighted sums but are not
// valid documents.
func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// allDigits reports whether s consists solely of ASCII digits
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateCPF reports whether an 11-digit CPF number has consistent check
// digits. The input must already be normalized to bare digits. The function
// is total: any malformed input yields false.
func ValidateCPF(cpf string) bool {
	if len(cpf) != 11 || !allDigits(cpf) || allSame(cpf) {
		return false
	}

	// First check digit: weights 10 down to 2 over the first nine digits
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(cpf[i]-'0') * (10 - i)
	}
	d1 := sum * 10 % 11
	if d1 == 10 {
		d1 = 0
	}

	// Second check digit: weights 11 down to 2 over the first ten digits,
	// the computed first check digit included
	sum = 0
	for i := 0; i < 9; i++ {
		sum += int(cpf[i]-'0') * (11 - i)
	}
	sum += d1 * 2
	d2 := sum * 10 % 11
	if d2 == 10 {
		d2 = 0
	}

	return d1 == int(cpf[9]-'0') && d2 == int(cpf[10]-'0')
}

// ValidateCNH reports whether an 11-digit CNH registration number has
// consistent check digits. Same contract as ValidateCPF: digits only,
// never panics, deterministic.
func ValidateCNH(cnh string) bool {
	if len(cnh) != 11 || !allDigits(cnh) || allSame(cnh) {
		return false
	}

	// Weights 9 down to 1 for the first digit, 1 up to 9 for the second,
	// both over the first nine digits; remainders of 10 collapse to 0.
	sum1, sum2 := 0, 0
	for i := 0; i < 9; i++ {
		d := int(cnh[i] - '0')
		sum1 += d * (9 - i)
		sum2 += d * (i + 1)
	}

	d1 := sum1 % 11
	if d1 >= 10 {
		d1 = 0
	}
	d2 := sum2 % 11
	if d2 >= 10 {
		d2 = 0
	}

	return d1 == int(cnh[9]-'0') && d2 == int(cnh[10]-'0')
}
