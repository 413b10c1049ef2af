package evaluation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConfusionMatrix(t *testing.T) {
	yTrue := []int{1, 1, 1, 0, 0, 0}
	yPred := []int{1, 1, 0, 0, 0, 1}

	cm := BuildConfusionMatrix(yTrue, yPred, 1)
	assert.Equal(t, ConfusionMatrix{TP: 2, FN: 1, TN: 2, FP: 1}, cm)
	assert.Equal(t, 6, cm.Total())
}

func TestEvaluate_PerfectClassifier(t *testing.T) {
	yTrue := make([]int, 100)
	yPred := make([]int, 100)
	for i := 50; i < 100; i++ {
		yTrue[i] = 1
		yPred[i] = 1
	}

	metrics, err := Evaluate(yTrue, yPred, 1)
	require.NoError(t, err)

	assert.Equal(t, ConfusionMatrix{TP: 50, FP: 0, TN: 50, FN: 0}, metrics.Confusion)
	assert.Equal(t, 1.0, metrics.Accuracy)
	assert.Equal(t, 1.0, metrics.Precision)
	assert.Equal(t, 1.0, metrics.Recall)
	assert.Equal(t, 1.0, metrics.F1Score)
	assert.Equal(t, 1.0, metrics.Kappa)
	assert.Equal(t, 1.0, metrics.Specificity)
}

func TestEvaluate_KnownValues(t *testing.T) {
	// TP=40 FN=10 TN=30 FP=20
	var yTrue, yPred []int
	appendPairs := func(actual, predicted, count int) {
		for i := 0; i < count; i++ {
			yTrue = append(yTrue, actual)
			yPred = append(yPred, predicted)
		}
	}
	appendPairs(1, 1, 40)
	appendPairs(1, 0, 10)
	appendPairs(0, 0, 30)
	appendPairs(0, 1, 20)

	metrics, err := Evaluate(yTrue, yPred, 1)
	require.NoError(t, err)

	assert.InDelta(t, 0.7, metrics.Accuracy, 1e-9)
	assert.InDelta(t, 40.0/60.0, metrics.Precision, 1e-9)
	assert.InDelta(t, 0.8, metrics.Recall, 1e-9)
	assert.InDelta(t, 0.6, metrics.Specificity, 1e-9)

	// po = 0.7, pe = (60*50 + 40*50) / 100^2 = 0.5
	assert.InDelta(t, 0.4, metrics.Kappa, 1e-9)
}

func TestMetrics_UndefinedDenominators(t *testing.T) {
	tests := map[string]struct {
		cm     ConfusionMatrix
		metric func(ConfusionMatrix) (float64, error)
	}{
		"precision-no-predicted-positives": {
			cm:     ConfusionMatrix{TN: 5, FN: 5},
			metric: Precision,
		},
		"recall-no-actual-positives": {
			cm:     ConfusionMatrix{TN: 5, FP: 5},
			metric: Recall,
		},
		"specificity-no-actual-negatives": {
			cm:     ConfusionMatrix{TP: 5, FN: 5},
			metric: Specificity,
		},
		"accuracy-empty": {
			cm:     ConfusionMatrix{},
			metric: Accuracy,
		},
		"kappa-degenerate-agreement": {
			cm:     ConfusionMatrix{TP: 10},
			metric: Kappa,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tc.metric(tc.cm)
			require.Error(t, err)

			var undefinedErr *UndefinedMetricError
			assert.True(t, errors.As(err, &undefinedErr), "want UndefinedMetricError, got %v", err)
		})
	}
}

func TestEvaluate_SurfacesUndefinedMetric(t *testing.T) {
	// no predicted positives: precision is undefined and must not be
	// silently reported as zero
	yTrue := []int{1, 0, 1, 0}
	yPred := []int{0, 0, 0, 0}

	_, err := Evaluate(yTrue, yPred, 1)
	require.Error(t, err)

	var undefinedErr *UndefinedMetricError
	require.True(t, errors.As(err, &undefinedErr))
	assert.Equal(t, "precision", undefinedErr.Metric)
}

func TestKappa_ChanceLevelIsZero(t *testing.T) {
	// prediction independent of truth: kappa collapses to 0
	cm := ConfusionMatrix{TP: 25, FP: 25, FN: 25, TN: 25}

	kappa, err := Kappa(cm)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, kappa, 1e-9)
}
