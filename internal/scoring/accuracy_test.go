package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name      string
		actual    []string
		predicted []string
		want      float64
	}{
		{
			name:      "ThreeOfFour",
			actual:    []string{"A", "B", "C", "D"},
			predicted: []string{"A", "B", "X", "D"},
			want:      75.00,
		},
		{
			name:      "AllCorrect",
			actual:    []string{"go", "rust"},
			predicted: []string{"go", "rust"},
			want:      100,
		},
		{
			name:      "NoneCorrect",
			actual:    []string{"go", "rust"},
			predicted: []string{"c", "zig"},
			want:      0,
		},
		{
			name:      "CaseSensitive",
			actual:    []string{"Go", "Rust"},
			predicted: []string{"go", "Rust"},
			want:      50,
		},
		{
			name:      "NoTrimming",
			actual:    []string{"Go"},
			predicted: []string{"Go "},
			want:      0,
		},
		{
			name:      "LeadingPadding",
			actual:    []string{"Go", "Rust"},
			predicted: []string{" Go", "  Rust"},
			want:      0,
		},
		{
			name:      "RoundsDown",
			actual:    []string{"a", "b", "c"},
			predicted: []string{"a", "x", "x"},
			want:      33.33,
		},
		{
			name:      "RoundsUp",
			actual:    []string{"a", "b", "c"},
			predicted: []string{"a", "b", "x"},
			want:      66.67,
		},
		{
			name:      "OneEighth",
			actual:    []string{"a", "b", "c", "d", "e", "f", "g", "h"},
			predicted: []string{"a", "x", "x", "x", "x", "x", "x", "x"},
			want:      12.5,
		},
		{
			name:      "Empty",
			actual:    []string{},
			predicted: []string{},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accuracy(tt.actual, tt.predicted)
			require.NoError(t, err)

			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestAccuracyRowCountMismatch(t *testing.T) {
	_, err := Accuracy([]string{"a", "b"}, []string{"a"})
	require.ErrorIs(t, err, ErrRowCountMismatch)

	_, err = Accuracy(nil, []string{"a"})
	require.ErrorIs(t, err, ErrRowCountMismatch)
}

func TestAccuracyBounds(t *testing.T) {
	actual := make([]string, 0, 997)
	predicted := make([]string, 0, 997)
	for i := range 997 {
		actual = append(actual, "x")
		if i%7 == 0 {
			predicted = append(predicted, "y")
		} else {
			predicted = append(predicted, "x")
		}
	}

	got, err := Accuracy(actual, predicted)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, got, 0.0)
	assert.LessOrEqual(t, got, 100.0)
	assert.InDelta(t, 85.66, got, 0.0001)
}

func TestAccuracyRoundsHalfAwayFromZero(t *testing.T) {
	// 1 of 800 is 0.125
	actual := make([]string, 800)
	predicted := make([]string, 800)
	for i := range actual {
		actual[i] = "x"
		predicted[i] = "y"
	}
	predicted[0] = "x"

	got, err := Accuracy(actual, predicted)
	require.NoError(t, err)

	assert.InDelta(t, 0.13, got, 0.0001)
}
