// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/ava-labs/xwallet/errs"
)

var errTooManyDecimals = errors.New("too many decimal places")

// ConvertToDecimals scales a decimal string such as "1.5" to an integer
// amount in base units.
func ConvertToDecimals(value string, decimals uint8) (string, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(value), ".")
	if whole == "" {
		whole = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(decimals) {
		return "", fmt.Errorf("%w: %q has more than %d", errTooManyDecimals, value, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	n, err := parseAmount(digits)
	if err != nil {
		return "", err
	}
	return n.Dec(), nil
}

// FormatDecimals renders an integer amount in base units as a decimal
// string. At least one fractional digit is kept, so 10^18 with 18
// decimals is "1.0".
func FormatDecimals(value string, decimals uint8) (string, error) {
	n, err := parseAmount(value)
	if err != nil {
		return "", err
	}
	s := n.Dec()
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if frac == "" {
		frac = "0"
	}
	return whole + "." + frac, nil
}

// parseAmount reads a non-negative base unit integer.
func parseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uint256.NewInt(0), nil
	}
	n, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, errs.Validationf("Invalid amount %q.", value)
	}
	return n, nil
}

// formatOrZero is FormatDecimals for display paths that never fail.
func formatOrZero(value string, decimals uint8) string {
	s, err := FormatDecimals(value, decimals)
	if err != nil {
		return "0"
	}
	return s
}
