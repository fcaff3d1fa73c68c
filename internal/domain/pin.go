package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// PinLength is the number of digits in a handover PIN.
const PinLength = 4

var pinSpace = big.NewInt(10000)

// NewPin returns a uniformly random 4-digit PIN.
func NewPin() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// ValidPinFormat checks that pin is exactly four ASCII digits.
func ValidPinFormat(pin string) bool {
	if len(pin) != PinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// PinMatches compares PINs in constant time.
func PinMatches(stored, given string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
