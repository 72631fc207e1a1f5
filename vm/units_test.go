// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xwallet/errs"
)

func TestConvertToDecimals(t *testing.T) {
	tests := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 18, "1500000000000000000"},
		{"0.000001", 6, "1"},
		{".25", 2, "25"},
		{"2.500", 2, "250"},
		{"0", 9, "0"},
	}
	for _, test := range tests {
		got, err := ConvertToDecimals(test.value, test.decimals)
		require.NoError(t, err, test.value)
		require.Equal(t, test.want, got, test.value)
	}

	_, err := ConvertToDecimals("0.0000001", 6)
	require.ErrorIs(t, err, errTooManyDecimals)

	_, err = ConvertToDecimals("1e5", 6)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestFormatDecimals(t *testing.T) {
	tests := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"1000000000000000000", 18, "1.0"},
		{"1500000000000000000", 18, "1.5"},
		{"1", 6, "0.000001"},
		{"0", 9, "0.0"},
		{"", 9, "0.0"},
		{"1234", 0, "1234.0"},
	}
	for _, test := range tests {
		got, err := FormatDecimals(test.value, test.decimals)
		require.NoError(t, err, test.value)
		require.Equal(t, test.want, got, test.value)
	}

	_, err := FormatDecimals("-1", 6)
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Equal(t, "0", formatOrZero("abc", 6))
}

func TestDecimalsRoundTrip(t *testing.T) {
	for _, v := range []string{"0.1", "12.345678", "1000000.0"} {
		base, err := ConvertToDecimals(v, 8)
		require.NoError(t, err)
		back, err := FormatDecimals(base, 8)
		require.NoError(t, err)
		require.Equal(t, v, back)
	}
}
