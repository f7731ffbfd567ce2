package scoring

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrRowCountMismatch = errors.New("row count mismatch")

var hundred = decimal.NewFromInt(100)

// Percentage of positions where predicted equals actual, rounded to two
// decimals. Comparison is exact and case sensitive. Two empty sequences score 0.
func Accuracy(actual, predicted []string) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("%w: %d actual rows, %d predicted rows", ErrRowCountMismatch, len(actual), len(predicted))
	}

	if len(actual) == 0 {
		return 0, nil
	}

	correct := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}

	score := decimal.NewFromInt(int64(correct)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(len(actual))), 8).
		Round(2)

	return score.InexactFloat64(), nil
}
