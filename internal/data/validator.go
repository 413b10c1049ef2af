package data

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

func (dv *DataValidator) ValidateDataset(X [][]decimal.Decimal, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("dataset is empty")
	}

	if len(X) != len(y) {
		return fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", len(X), len(y))
	}

	nFeatures := len(X[0])
	if nFeatures == 0 {
		return fmt.Errorf("features cannot be empty")
	}

	for i, sample := range X {
		if len(sample) != nFeatures {
			return fmt.Errorf("inconsistent feature count at sample %d: expected %d, got %d", i, nFeatures, len(sample))
		}
	}

	return nil
}

// ValidateLabels requires exactly two classes with at least two samples each,
// the minimum for a stratified split to hold anything out.
func (dv *DataValidator) ValidateLabels(y []int) error {
	if len(y) == 0 {
		return fmt.Errorf("labels are empty")
	}

	classCount := make(map[int]int)
	for _, label := range y {
		classCount[label]++
	}

	if len(classCount) != 2 {
		return fmt.Errorf("dataset must have exactly 2 classes, found %d", len(classCount))
	}

	for class, count := range classCount {
		if count < 2 {
			return fmt.Errorf("class %d has %d samples, need at least 2", class, count)
		}
	}

	return nil
}

func (dv *DataValidator) ValidateTrainTestSplit(XTrain, XTest [][]decimal.Decimal, yTrain, yTest []int) error {
	if err := dv.ValidateDataset(XTrain, yTrain); err != nil {
		return fmt.Errorf("training set validation failed: %w", err)
	}

	if err := dv.ValidateDataset(XTest, yTest); err != nil {
		return fmt.Errorf("test set validation failed: %w", err)
	}

	if len(XTrain[0]) != len(XTest[0]) {
		return fmt.Errorf("train and test sets have different feature counts: %d vs %d", len(XTrain[0]), len(XTest[0]))
	}

	return nil
}

type FeatureSummary struct {
	Name   string  `json:"name"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

type DatasetStats struct {
	Samples           int              `json:"samples"`
	Features          int              `json:"features"`
	Classes           int              `json:"classes"`
	ClassDistribution map[int]int      `json:"class_distribution"`
	FeatureStats      []FeatureSummary `json:"feature_stats"`
}

// GetDatasetStats computes the descriptive summary printed before modeling.
func (dv *DataValidator) GetDatasetStats(X [][]decimal.Decimal, y []int, headers []string) *DatasetStats {
	if len(X) == 0 {
		return &DatasetStats{}
	}

	classCount := make(map[int]int)
	for _, label := range y {
		classCount[label]++
	}

	nFeatures := len(X[0])
	featureStats := make([]FeatureSummary, nFeatures)

	for j := 0; j < nFeatures; j++ {
		values := make([]float64, len(X))
		for i := 0; i < len(X); i++ {
			values[i], _ = X[i][j].Float64()
		}

		name := fmt.Sprintf("feature_%d", j)
		if j < len(headers) {
			name = headers[j]
		}

		featureStats[j] = FeatureSummary{
			Name:   name,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
			Mean:   stat.Mean(values, nil),
			StdDev: stat.StdDev(values, nil),
		}
	}

	return &DatasetStats{
		Samples:           len(X),
		Features:          nFeatures,
		Classes:           len(classCount),
		ClassDistribution: classCount,
		FeatureStats:      featureStats,
	}
}
