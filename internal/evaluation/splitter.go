package evaluation

import (
	"math"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"knntune/internal/models"
)

type TrainTestSplitter struct {
	trainFraction float64
	randomSeed    int64
}

func NewTrainTestSplitter(trainFraction float64, randomSeed int64) *TrainTestSplitter {
	return &TrainTestSplitter{
		trainFraction: trainFraction,
		randomSeed:    randomSeed,
	}
}

// StratifiedSplit partitions (X, y) into train and test subsets. Each class
// is shuffled independently and the first round(trainFraction * classCount)
// indices go to train, so class proportions in both subsets stay within one
// sample of the dataset's proportions. Deterministic for a fixed seed.
func (tts *TrainTestSplitter) StratifiedSplit(X [][]decimal.Decimal, y []int) ([][]decimal.Decimal, [][]decimal.Decimal, []int, []int, error) {
	if len(X) != len(y) {
		return nil, nil, nil, nil, &models.InputValidationError{Field: "dataset", Reason: "features and labels have different lengths"}
	}

	if len(X) == 0 {
		return nil, nil, nil, nil, &models.InputValidationError{Field: "dataset", Reason: "empty"}
	}

	if tts.trainFraction <= 0 || tts.trainFraction >= 1 {
		return nil, nil, nil, nil, &models.InputValidationError{Field: "train fraction", Reason: "must be strictly between 0 and 1"}
	}

	classIndices := make(map[int][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}

	for _, indices := range classIndices {
		if len(indices) < 2 {
			return nil, nil, nil, nil, &models.InputValidationError{Field: "dataset", Reason: "each class needs at least 2 samples"}
		}
	}

	classes := models.ExtractClasses(y)
	rng := rand.New(rand.NewSource(tts.randomSeed))

	var trainIndices, testIndices []int

	for _, class := range classes {
		indices := classIndices[class]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		trainCount := int(math.Round(tts.trainFraction * float64(len(indices))))
		if trainCount == 0 {
			trainCount = 1
		}
		if trainCount == len(indices) {
			trainCount = len(indices) - 1
		}

		trainIndices = append(trainIndices, indices[:trainCount]...)
		testIndices = append(testIndices, indices[trainCount:]...)
	}

	sort.Ints(trainIndices)
	sort.Ints(testIndices)

	XTrain := make([][]decimal.Decimal, len(trainIndices))
	XTest := make([][]decimal.Decimal, len(testIndices))
	yTrain := make([]int, len(trainIndices))
	yTest := make([]int, len(testIndices))

	for i, idx := range trainIndices {
		XTrain[i] = make([]decimal.Decimal, len(X[idx]))
		copy(XTrain[i], X[idx])
		yTrain[i] = y[idx]
	}

	for i, idx := range testIndices {
		XTest[i] = make([]decimal.Decimal, len(X[idx]))
		copy(XTest[i], X[idx])
		yTest[i] = y[idx]
	}

	return XTrain, XTest, yTrain, yTest, nil
}
