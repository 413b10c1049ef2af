package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knntune/internal/models"
)

// separableDataset builds perClass samples per class with a wide gap on the
// single feature, so any reasonable k classifies perfectly.
func separableDataset(perClass int) ([][]decimal.Decimal, []int) {
	var X [][]decimal.Decimal
	var y []int

	for i := 0; i < perClass; i++ {
		X = append(X, []decimal.Decimal{decimal.NewFromInt(int64(i))})
		y = append(y, 0)
		X = append(X, []decimal.Decimal{decimal.NewFromInt(int64(1000 + i))})
		y = append(y, 1)
	}
	return X, y
}

func TestStratifiedFolds_BalanceInvariant(t *testing.T) {
	_, y := separableDataset(33)

	folds := stratifiedFolds(y, 10, 7)
	require.Len(t, folds, 10)

	total := 0
	for _, fold := range folds {
		total += len(fold)
	}
	assert.Equal(t, len(y), total)

	// per class, any two folds differ by at most one sample
	for _, class := range []int{0, 1} {
		counts := make([]int, len(folds))
		for i, fold := range folds {
			for _, idx := range fold {
				if y[idx] == class {
					counts[i]++
				}
			}
		}
		min, max := counts[0], counts[0]
		for _, c := range counts[1:] {
			if c < min {
				min = c
			}
			if c > max {
				max = c
			}
		}
		assert.LessOrEqual(t, max-min, 1, "class %d spread %v", class, counts)
	}
}

func TestSearch_DeterministicForSeed(t *testing.T) {
	X, y := separableDataset(30)

	config := SearchConfig{
		KGrid:      []int{3, 5},
		Folds:      5,
		Repeats:    3,
		RandomSeed: 21,
		MaxWorkers: 4,
	}

	first, err := NewSearcher(config).Search(X, y)
	require.NoError(t, err)
	second, err := NewSearcher(config).Search(X, y)
	require.NoError(t, err)

	assert.Equal(t, first.BestK, second.BestK)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Scores, second.Scores)
}

func TestSearch_PerfectSeparationPrefersSmallerK(t *testing.T) {
	X, y := separableDataset(100)

	config := SearchConfig{
		KGrid:      []int{3, 5, 7},
		Folds:      10,
		Repeats:    10,
		RandomSeed: 42,
	}

	result, err := NewSearcher(config).Search(X, y)
	require.NoError(t, err)

	require.Len(t, result.Summary, 3)
	for _, entry := range result.Summary {
		assert.Equal(t, 1.0, entry.MeanAccuracy, "k=%d", entry.K)
		assert.Equal(t, 1.0, entry.MeanKappa, "k=%d", entry.K)
	}

	// all candidates tie at accuracy 1.0; the smallest k wins
	assert.Equal(t, 3, result.BestK)
	assert.Len(t, result.Scores, 3*10*10)
}

func TestSearch_GridValidation(t *testing.T) {
	X, y := separableDataset(20)

	tests := map[string]SearchConfig{
		"empty-grid": {Folds: 5, Repeats: 2, RandomSeed: 1},
		"even-k":     {KGrid: []int{3, 4}, Folds: 5, Repeats: 2, RandomSeed: 1},
		"zero-k":     {KGrid: []int{0}, Folds: 5, Repeats: 2, RandomSeed: 1},
	}

	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewSearcher(config).Search(X, y)
			require.Error(t, err)

			var validationErr *models.InputValidationError
			assert.True(t, errors.As(err, &validationErr))
		})
	}
}

func TestSearch_InsufficientDataAbortsSearch(t *testing.T) {
	// one class has a single sample: whichever fold holds it leaves the
	// training side with zero examples of that class
	X := [][]decimal.Decimal{
		{decimal.NewFromInt(1)},
		{decimal.NewFromInt(2)},
		{decimal.NewFromInt(3)},
		{decimal.NewFromInt(4)},
		{decimal.NewFromInt(5)},
		{decimal.NewFromInt(100)},
	}
	y := []int{0, 0, 0, 0, 0, 1}

	config := SearchConfig{
		KGrid:      []int{1},
		Folds:      2,
		Repeats:    1,
		RandomSeed: 3,
	}

	_, err := NewSearcher(config).Search(X, y)
	require.Error(t, err)

	var insufficientErr *InsufficientDataError
	require.True(t, errors.As(err, &insufficientErr))
	assert.Equal(t, 1, insufficientErr.Class)
}

func TestSearchContext_CancelStopsSearch(t *testing.T) {
	X, y := separableDataset(30)

	config := SearchConfig{
		KGrid:      []int{3},
		Folds:      5,
		Repeats:    8,
		RandomSeed: 4,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSearcher(config).SearchContext(ctx, X, y)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_ReportsProgress(t *testing.T) {
	X, y := separableDataset(20)

	var calls [][2]int
	config := SearchConfig{
		KGrid:      []int{3},
		Folds:      4,
		Repeats:    3,
		RandomSeed: 2,
		MaxWorkers: 1,
		OnProgress: func(completed, total int) {
			calls = append(calls, [2]int{completed, total})
		},
	}

	_, err := NewSearcher(config).Search(X, y)
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Equal(t, [2]int{1, 3}, calls[0])
	assert.Equal(t, [2]int{3, 3}, calls[2])
}

func TestSearch_SummarySortedByK(t *testing.T) {
	X, y := separableDataset(30)

	config := SearchConfig{
		KGrid:      []int{7, 3, 5},
		Folds:      5,
		Repeats:    2,
		RandomSeed: 9,
	}

	result, err := NewSearcher(config).Search(X, y)
	require.NoError(t, err)

	ks := make([]int, len(result.Summary))
	for i, entry := range result.Summary {
		ks[i] = entry.K
	}
	assert.Equal(t, []int{3, 5, 7}, ks)
}
