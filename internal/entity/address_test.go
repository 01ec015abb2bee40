package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	valid := []string{
		"0x" + strings.Repeat("0", 64),
		"0x" + strings.Repeat("11", 32),
		"0x" + strings.Repeat("aF", 32),
	}
	for _, addr := range valid {
		assert.True(t, IsValidAddress(addr), addr)
	}

	invalid := []string{
		"",
		"0x123",
		strings.Repeat("0", 64),              // missing prefix
		"0x" + strings.Repeat("0", 63),       // too short
		"0x" + strings.Repeat("0", 65),       // too long
		"0x" + strings.Repeat("0", 63) + "g", // non-hex
		"1x" + strings.Repeat("0", 64),       // wrong prefix
		"0x " + strings.Repeat("0", 63),      // whitespace
	}
	for _, addr := range invalid {
		assert.False(t, IsValidAddress(addr), addr)
	}
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("0x"+strings.Repeat("ab", 32)))
	assert.ErrorIs(t, ValidateAddress("0xab"), ErrInvalidAddress)
}
