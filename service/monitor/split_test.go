package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name        string
		amount      uint64
		percentages []float64
		want        []uint64
	}{
		{
			name:        "exact division",
			amount:      1000,
			percentages: []float64{5, 70, 25},
			want:        []uint64{50, 700, 250},
		},
		{
			name:        "remainder goes to last share",
			amount:      1007,
			percentages: []float64{5, 70, 25},
			want:        []uint64{50, 704, 253},
		},
		{
			name:        "zero amount",
			amount:      0,
			percentages: []float64{5, 70, 25},
			want:        []uint64{0, 0, 0},
		},
		{
			name:        "amount smaller than share count",
			amount:      2,
			percentages: []float64{5, 70, 25},
			want:        []uint64{0, 1, 1},
		},
		{
			name:        "single share takes everything",
			amount:      999,
			percentages: []float64{100},
			want:        []uint64{999},
		},
		{
			name:        "zero percentage yields zero share",
			amount:      1000,
			percentages: []float64{0, 75, 25},
			want:        []uint64{0, 750, 250},
		},
		{
			// Sum of 100.005 passes validation; the floored shares overshoot
			// the amount and the largest share gives the overshoot back.
			name:        "overshoot within tolerance deducted from largest share",
			amount:      1_000_000_000,
			percentages: []float64{5.005, 95, 0},
			want:        []uint64{50_050_000, 949_950_000, 0},
		},
		{
			name:        "overshoot with zero last share",
			amount:      1_000_000_000,
			percentages: []float64{95, 5.005, 0},
			want:        []uint64{949_950_000, 50_050_000, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.amount, tt.percentages)
			assert.Equal(t, tt.want, got)

			var total uint64
			for _, share := range got {
				total += share
			}
			assert.Equal(t, tt.amount, total, "shares must sum to the input amount")
		})
	}
}

func TestSplit_EmptyPercentages(t *testing.T) {
	assert.Nil(t, Split(1000, nil))
}

func TestValidatePercentages(t *testing.T) {
	require.NoError(t, ValidatePercentages([]float64{5, 70, 25}))
	require.NoError(t, ValidatePercentages([]float64{100}))
	require.NoError(t, ValidatePercentages([]float64{33.33, 33.33, 33.34}))
	require.NoError(t, ValidatePercentages([]float64{5.005, 95, 0}))

	assert.Error(t, ValidatePercentages(nil))
	assert.Error(t, ValidatePercentages([]float64{5, 70, 26}))
	assert.Error(t, ValidatePercentages([]float64{-5, 80, 25}))
}
