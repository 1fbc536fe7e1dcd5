package vat

import (
	"fmt"
	"regexp"
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// ValidateOrgNumber checks a Swedish organisation number (NNNNNN-NNNN):
// ten digits with a Luhn check digit.
func ValidateOrgNumber(orgNumber string) error {
	clean := nonDigits.ReplaceAllString(orgNumber, "")
	if len(clean) != 10 {
		return fmt.Errorf("organisation number must be 10 digits")
	}

	checksum := 0
	for i := 0; i < 9; i++ {
		d := int(clean[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		checksum += d
	}
	expected := (10 - checksum%10) % 10
	if int(clean[9]-'0') != expected {
		return fmt.Errorf("invalid check digit (expected %d)", expected)
	}
	return nil
}
