package evaluation

import (
	"fmt"
)

// UndefinedMetricError reports a metric whose denominator is zero. The
// caller decides how to present it; it is never coerced to 0.
type UndefinedMetricError struct {
	Metric string
}

func (e *UndefinedMetricError) Error() string {
	return fmt.Sprintf("metric %s is undefined: zero denominator", e.Metric)
}

type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

func (cm ConfusionMatrix) Total() int {
	return cm.TP + cm.FP + cm.TN + cm.FN
}

func BuildConfusionMatrix(yTrue, yPred []int, positive int) ConfusionMatrix {
	var cm ConfusionMatrix

	for i := range yTrue {
		switch {
		case yTrue[i] == positive && yPred[i] == positive:
			cm.TP++
		case yTrue[i] == positive:
			cm.FN++
		case yPred[i] == positive:
			cm.FP++
		default:
			cm.TN++
		}
	}

	return cm
}

func Accuracy(cm ConfusionMatrix) (float64, error) {
	n := cm.Total()
	if n == 0 {
		return 0, &UndefinedMetricError{Metric: "accuracy"}
	}
	return float64(cm.TP+cm.TN) / float64(n), nil
}

func Precision(cm ConfusionMatrix) (float64, error) {
	if cm.TP+cm.FP == 0 {
		return 0, &UndefinedMetricError{Metric: "precision"}
	}
	return float64(cm.TP) / float64(cm.TP+cm.FP), nil
}

func Recall(cm ConfusionMatrix) (float64, error) {
	if cm.TP+cm.FN == 0 {
		return 0, &UndefinedMetricError{Metric: "recall"}
	}
	return float64(cm.TP) / float64(cm.TP+cm.FN), nil
}

func Specificity(cm ConfusionMatrix) (float64, error) {
	if cm.TN+cm.FP == 0 {
		return 0, &UndefinedMetricError{Metric: "specificity"}
	}
	return float64(cm.TN) / float64(cm.TN+cm.FP), nil
}

func F1(cm ConfusionMatrix) (float64, error) {
	precision, err := Precision(cm)
	if err != nil {
		return 0, err
	}
	recall, err := Recall(cm)
	if err != nil {
		return 0, err
	}
	if precision+recall == 0 {
		return 0, &UndefinedMetricError{Metric: "f1"}
	}
	return 2 * precision * recall / (precision + recall), nil
}

// Kappa is Cohen's chance-corrected agreement between predictions and truth.
func Kappa(cm ConfusionMatrix) (float64, error) {
	n := cm.Total()
	if n == 0 {
		return 0, &UndefinedMetricError{Metric: "kappa"}
	}

	observed := float64(cm.TP+cm.TN) / float64(n)

	nFloat := float64(n)
	expectedPos := float64(cm.TP+cm.FP) * float64(cm.TP+cm.FN) / (nFloat * nFloat)
	expectedNeg := float64(cm.FN+cm.TN) * float64(cm.FP+cm.TN) / (nFloat * nFloat)
	expected := expectedPos + expectedNeg

	if expected == 1 {
		return 0, &UndefinedMetricError{Metric: "kappa"}
	}

	return (observed - expected) / (1 - expected), nil
}

type ClassificationMetrics struct {
	Accuracy    float64         `json:"accuracy"`
	Precision   float64         `json:"precision"`
	Recall      float64         `json:"recall"`
	Specificity float64         `json:"specificity"`
	F1Score     float64         `json:"f1_score"`
	Kappa       float64         `json:"kappa"`
	Confusion   ConfusionMatrix `json:"confusion_matrix"`
	NumSamples  int             `json:"num_samples"`
}

func Evaluate(yTrue, yPred []int, positive int) (*ClassificationMetrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, &UndefinedMetricError{Metric: "accuracy"}
	}

	cm := BuildConfusionMatrix(yTrue, yPred, positive)

	accuracy, err := Accuracy(cm)
	if err != nil {
		return nil, err
	}
	precision, err := Precision(cm)
	if err != nil {
		return nil, err
	}
	recall, err := Recall(cm)
	if err != nil {
		return nil, err
	}
	specificity, err := Specificity(cm)
	if err != nil {
		return nil, err
	}
	f1, err := F1(cm)
	if err != nil {
		return nil, err
	}
	kappa, err := Kappa(cm)
	if err != nil {
		return nil, err
	}

	return &ClassificationMetrics{
		Accuracy:    accuracy,
		Precision:   precision,
		Recall:      recall,
		Specificity: specificity,
		F1Score:     f1,
		Kappa:       kappa,
		Confusion:   cm,
		NumSamples:  cm.Total(),
	}, nil
}

func (m *ClassificationMetrics) FormatMetrics() string {
	result := fmt.Sprintf("Accuracy: %.4f\n", m.Accuracy)
	result += fmt.Sprintf("Kappa: %.4f\n", m.Kappa)
	result += fmt.Sprintf("Precision: %.4f, Recall: %.4f, F1: %.4f\n",
		m.Precision, m.Recall, m.F1Score)
	result += fmt.Sprintf("Specificity: %.4f\n", m.Specificity)
	result += fmt.Sprintf("Confusion: TP=%d FP=%d TN=%d FN=%d\n",
		m.Confusion.TP, m.Confusion.FP, m.Confusion.TN, m.Confusion.FN)
	return result
}
