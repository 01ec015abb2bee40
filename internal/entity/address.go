package entity

import (
	"regexp"

	"github.com/pkg/errors"
)

// ErrInvalidAddress is returned when an account address fails the format
// check. It is the only validation error raised before any side effect.
var ErrInvalidAddress = errors.New("invalid account address: expected 0x followed by 64 hex characters")

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsValidAddress reports whether s is a 0x-prefixed 64-character hex address.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidateAddress returns ErrInvalidAddress when s fails the format check.
func ValidateAddress(s string) error {
	if !IsValidAddress(s) {
		return ErrInvalidAddress
	}
	return nil
}
