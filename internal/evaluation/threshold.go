package evaluation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/integrate"

	"knntune/internal/models"
)

type CurvePoint struct {
	Threshold   float64 `json:"threshold"`
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
}

type ThresholdSelector struct {
	step float64
}

// NewThresholdSelector sweeps thresholds on a fixed grid of the given step.
// A step <= 0 sweeps the distinct predicted probabilities instead.
func NewThresholdSelector(step float64) *ThresholdSelector {
	return &ThresholdSelector{step: step}
}

func DefaultThresholdSelector() *ThresholdSelector {
	return NewThresholdSelector(0.01)
}

// Select returns the threshold maximizing Youden's J statistic
// (sensitivity + specificity - 1) together with the full sweep curve.
// A sample counts as positive when its probability >= threshold. Ties on J
// resolve to the smallest threshold.
func (ts *ThresholdSelector) Select(probs []decimal.Decimal, yTrue []int, positive int) (float64, []CurvePoint, error) {
	if len(probs) != len(yTrue) {
		return 0, nil, &models.InputValidationError{Field: "probabilities", Reason: "length differs from labels"}
	}
	if len(probs) == 0 {
		return 0, nil, &models.InputValidationError{Field: "probabilities", Reason: "empty"}
	}

	positives := 0
	negatives := 0
	for _, label := range yTrue {
		if label == positive {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 {
		return 0, nil, &UndefinedMetricError{Metric: "sensitivity"}
	}
	if negatives == 0 {
		return 0, nil, &UndefinedMetricError{Metric: "specificity"}
	}

	values := make([]float64, len(probs))
	for i, p := range probs {
		values[i], _ = p.Float64()
	}

	candidates := ts.candidates(values)

	curve := make([]CurvePoint, len(candidates))
	bestThreshold := candidates[0]
	bestJ := math.Inf(-1)

	for i, t := range candidates {
		tp, tn := 0, 0
		for j, v := range values {
			predictedPositive := v >= t
			if yTrue[j] == positive {
				if predictedPositive {
					tp++
				}
			} else {
				if !predictedPositive {
					tn++
				}
			}
		}

		sensitivity := float64(tp) / float64(positives)
		specificity := float64(tn) / float64(negatives)
		curve[i] = CurvePoint{Threshold: t, Sensitivity: sensitivity, Specificity: specificity}

		youden := sensitivity + specificity - 1
		if youden > bestJ {
			bestJ = youden
			bestThreshold = t
		}
	}

	return bestThreshold, curve, nil
}

func (ts *ThresholdSelector) candidates(values []float64) []float64 {
	if ts.step > 0 {
		n := int(math.Round(1 / ts.step))
		candidates := make([]float64, n+1)
		for i := 0; i <= n; i++ {
			candidates[i] = float64(i) / float64(n)
		}
		return candidates
	}

	seen := make(map[float64]bool)
	var candidates []float64
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			candidates = append(candidates, v)
		}
	}
	sort.Float64s(candidates)
	return candidates
}

// AUC integrates the ROC curve (false positive rate vs sensitivity) by the
// trapezoidal rule.
func AUC(curve []CurvePoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	// Ascending thresholds give descending false positive rates; reverse for
	// integration.
	fpr := make([]float64, len(curve))
	tpr := make([]float64, len(curve))
	for i, point := range curve {
		j := len(curve) - 1 - i
		fpr[j] = 1 - point.Specificity
		tpr[j] = point.Sensitivity
	}

	return integrate.Trapezoidal(fpr, tpr)
}

// PositiveProba extracts the probability column of the positive class from a
// probability matrix ordered like classes.
func PositiveProba(proba [][]decimal.Decimal, classes []int, positive int) ([]decimal.Decimal, error) {
	column := -1
	for i, class := range classes {
		if class == positive {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, &models.InputValidationError{Field: "positive class", Reason: "not present in model classes"}
	}

	result := make([]decimal.Decimal, len(proba))
	for i, row := range proba {
		result[i] = row[column]
	}
	return result, nil
}

// ApplyThreshold maps positive-class probabilities to hard labels at the
// given cutoff.
func ApplyThreshold(probs []decimal.Decimal, threshold float64, positive, negative int) []int {
	cutoff := decimal.NewFromFloat(threshold)
	labels := make([]int, len(probs))
	for i, p := range probs {
		if p.GreaterThanOrEqual(cutoff) {
			labels[i] = positive
		} else {
			labels[i] = negative
		}
	}
	return labels
}
