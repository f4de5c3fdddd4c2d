package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDollarsToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr error
	}{
		{name: "whole dollars", input: "450", want: 45000},
		{name: "two decimals", input: "450.25", want: 45025},
		{name: "one decimal", input: "12.5", want: 1250},
		{name: "currency sign and separators", input: " $1,200.50 ", want: 120050},
		{name: "sub dollar", input: "0.07", want: 7},
		{name: "too precise", input: "1.005", wantErr: ErrMoneyPrecision},
		{name: "empty", input: "", wantErr: ErrInvalidMoney},
		{name: "only sign", input: "$", wantErr: ErrInvalidMoney},
		{name: "garbage", input: "twelve", wantErr: ErrInvalidMoney},
		{name: "largest representable", input: "92233720368547758.07", want: 9223372036854775807},
		{name: "one cent past int64", input: "92233720368547758.08", wantErr: ErrInvalidMoney},
		{name: "wraps to one cent", input: "184467440737095516.17", wantErr: ErrInvalidMoney},
		{name: "far out of range", input: "100000000000000000000", wantErr: ErrInvalidMoney},
		{name: "negative out of range", input: "-92233720368547758.09", wantErr: ErrInvalidMoney},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DollarsToCents(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCentsToDollars(t *testing.T) {
	assert.Equal(t, "450.25", CentsToDollars(45025))
	assert.Equal(t, "0.05", CentsToDollars(5))
	assert.Equal(t, "1200.00", CentsToDollars(120000))
}

func TestAverageCents(t *testing.T) {
	tests := []struct {
		sum, count, want int64
	}{
		{sum: 0, count: 0, want: 0},
		{sum: 300, count: 3, want: 100},
		{sum: 10, count: 3, want: 3},
		{sum: 5, count: 2, want: 3},
		{sum: 250000, count: 4, want: 62500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AverageCents(tt.sum, tt.count), "sum=%d count=%d", tt.sum, tt.count)
	}
}
